package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/bt-bridge/voice-gateway/shared"
)

// FrameKind distinguishes the two inbound frame shapes on the client
// boundary: raw audio payloads and JSON control messages.
type FrameKind int

const (
	FrameAudio FrameKind = iota
	FrameControl
)

type ClientFrame struct {
	Kind    FrameKind
	Audio   []byte         // set when Kind == FrameAudio
	Control map[string]any // set when Kind == FrameControl
}

// ClientTransport is the inbound connection from the calling party. ReadFrame
// blocks until the next frame or returns shared.ErrClientDisconnect when the
// peer hangs up. Close is safe to call more than once.
type ClientTransport interface {
	ReadFrame() (*ClientFrame, error)
	WriteEvent(eventType string, payload map[string]any) error
	Close() error
}

const (
	clientWriteWait     = 10 * time.Second
	clientMaxFrameBytes = 1 << 20
)

// wsClientTransport adapts a websocket connection (phone media stream or
// browser client) to the ClientTransport boundary.
type wsClientTransport struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewWSClientTransport(conn *websocket.Conn) ClientTransport {
	conn.SetReadLimit(clientMaxFrameBytes)
	return &wsClientTransport{conn: conn}
}

func (t *wsClientTransport) ReadFrame() (*ClientFrame, error) {
	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, shared.ErrClientDisconnect
		}
		return nil, fmt.Errorf("reading client frame: %w", err)
	}
	switch msgType {
	case websocket.BinaryMessage:
		return &ClientFrame{Kind: FrameAudio, Audio: data}, nil
	case websocket.TextMessage:
		var control map[string]any
		if err := sonic.Unmarshal(data, &control); err != nil {
			return nil, fmt.Errorf("parsing client control frame: %w", err)
		}
		return &ClientFrame{Kind: FrameControl, Control: control}, nil
	default:
		return nil, fmt.Errorf("unexpected websocket message type: %d", msgType)
	}
}

func (t *wsClientTransport) WriteEvent(eventType string, payload map[string]any) error {
	body := map[string]any{
		"type":  eventType,
		"event": payload,
	}
	data, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling client event: %w", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(clientWriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing client event: %w", err)
	}
	return nil
}

func (t *wsClientTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		deadline := time.Now().Add(clientWriteWait)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		t.writeMu.Unlock()
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// WriteErrorFrame sends the single best-effort error frame that precedes a
// Failed teardown.
func WriteErrorFrame(t ClientTransport, reason string) {
	_ = t.WriteEvent("error", map[string]any{"error": reason})
}
