// # Realtime Voice Session Gateway
//
// This repository bridges live voice calls (telephone media streams or browser clients) to the OpenAI Realtime API. It owns the session lifecycle, runs the two concurrent pumps that move audio and events between the caller and the upstream model, and intercepts function-call events so tools execute locally instead of being forwarded to the caller.
package bridge
