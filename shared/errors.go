package shared

import "errors"

// Session-fatal failures. Configuration and upstream errors end the session
// that hit them; tool-level errors never do (the registry converts them to
// failure-shaped results instead).
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrClientDisconnect    = errors.New("client disconnected")
)

// Tool-level failures, recoverable per call.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrExecution        = errors.New("tool execution error")
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentInactive   = errors.New("agent is not active")
	ErrTierNotEligible = errors.New("tier not eligible")

	ErrNoLogger              = errors.New("no logger provided")
	ErrNoConfig              = errors.New("no config provided")
	ErrNoAPIKey              = errors.New("no API key provided")
	ErrSessionAlreadyRunning = errors.New("session already running")
	ErrSessionClosed         = errors.New("session closed")
	ErrDuplicateToolCall     = errors.New("duplicate tool call id")
)
