package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/realtime"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"

	"github.com/bt-bridge/voice-gateway/registry"
	"github.com/bt-bridge/voice-gateway/shared"
	"github.com/bt-bridge/voice-gateway/store"
)

// Session configuration defaults, mirroring the values the voice agents were
// tuned with.
const (
	upstreamVoice                  string  = "shimmer"
	upstreamAudioPCMRate           int64   = 24000
	upstreamTranscriptionModel     string  = "whisper-1"
	upstreamVADThreshold           float64 = 0.5
	upstreamVADPrefixPaddingMs     int64   = 300
	upstreamVADSilenceDurationMs   int64   = 500
	upstreamWriteWait                      = 10 * time.Second
	upstreamMaxMessageBytes                = 64 * 1024 * 1024
	defaultUpstreamConnectTimeout          = 10 * time.Second
)

// SessionConfig is what one session needs to configure its upstream
// connection.
type SessionConfig struct {
	SessionId    string
	UserId       string
	Instructions string
	Language     string
	Tools        []registry.Schema
}

// UpstreamConn is one live connection to the realtime model service. The
// event sequence is single-consumer and forward-only: once the connection
// ends, it ends permanently for that session.
type UpstreamConn interface {
	// Events yields inbound events until the connection closes; the channel
	// is then closed and never reopened.
	Events() <-chan *ServerEvent
	// Err reports why the event sequence ended. It is nil for a clean close
	// handshake or a local Close, non-nil when the connection dropped. Only
	// meaningful after Events is closed.
	Err() error
	SendAudio(ctx context.Context, pcm []byte) error
	SendControl(ctx context.Context, eventType ClientEventType) error
	SendToolResult(ctx context.Context, callId string, output []byte) error
	Close() error
}

// UpstreamManager establishes configured upstream connections. The concrete
// Manager dials the realtime websocket; tests substitute fakes.
type UpstreamManager interface {
	Connect(ctx context.Context, cfg *SessionConfig) (UpstreamConn, error)
}

type Manager struct {
	logger         shared.LoggerAdapter
	baseURL        string
	model          string
	connectTimeout time.Duration
	eventBuffer    int
	credentials    store.CredentialSource
	defaultAPIKey  string
}

var _ UpstreamManager = (*Manager)(nil)

func NewManager(
	logger shared.LoggerAdapter,
	baseURL, model string,
	connectTimeout time.Duration,
	eventBuffer int,
	credentials store.CredentialSource,
	defaultAPIKey string,
) (*Manager, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if baseURL == "" {
		baseURL = "wss://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-realtime"
	}
	if connectTimeout <= 0 {
		connectTimeout = defaultUpstreamConnectTimeout
	}
	if eventBuffer <= 0 {
		eventBuffer = 64
	}
	return &Manager{
		logger:         logger,
		baseURL:        baseURL,
		model:          model,
		connectTimeout: connectTimeout,
		eventBuffer:    eventBuffer,
		credentials:    credentials,
		defaultAPIKey:  defaultAPIKey,
	}, nil
}

// resolveAPIKey checks the per-user credential store first, then the
// process-wide default. Absence of both is fatal for the session.
func (m *Manager) resolveAPIKey(ctx context.Context, userId string) (string, error) {
	if m.credentials != nil && userId != "" {
		key, err := m.credentials.APIKey(ctx, userId)
		if err != nil {
			return "", fmt.Errorf("looking up user credentials: %w", err)
		}
		if key != "" {
			return key, nil
		}
	}
	if m.defaultAPIKey != "" {
		return m.defaultAPIKey, nil
	}
	return "", fmt.Errorf("%w: no API key for user and no process default", shared.ErrConfiguration)
}

func (m *Manager) Connect(ctx context.Context, cfg *SessionConfig) (UpstreamConn, error) {
	if cfg == nil {
		return nil, shared.ErrNoConfig
	}
	apiKey, err := m.resolveAPIKey(ctx, cfg.UserId)
	if err != nil {
		return nil, err
	}

	wsURL := strings.TrimSuffix(m.baseURL, "/") + "/realtime?model=" + m.model
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: m.connectTimeout}
	ws, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: dialing %s: %v", shared.ErrUpstreamUnavailable, wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	ws.SetReadLimit(upstreamMaxMessageBytes)

	conn := &upstreamConn{
		logger: m.logger.With(zap.String("session_id", cfg.SessionId)),
		ws:     ws,
		events: make(chan *ServerEvent, m.eventBuffer),
		done:   make(chan struct{}),
	}

	sessionUpdate, err := buildSessionUpdate(m.model, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("building session configuration: %w", err)
	}
	if err := conn.sendJSON(ctx, sessionUpdate); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: applying session configuration: %v", shared.ErrUpstreamUnavailable, err)
	}

	go conn.readLoop()
	m.logger.Info(
		"upstream connected",
		zap.String("session_id", cfg.SessionId),
		zap.String("model", m.model),
		zap.Int("tool_count", len(cfg.Tools)),
	)
	return conn, nil
}

// buildSessionUpdate assembles the session.update payload from the realtime
// request params: instructions, voice, PCM audio both ways, inbound
// transcription, server VAD turn detection, the tool schema list, and
// tool-choice auto.
func buildSessionUpdate(model string, cfg *SessionConfig) (map[string]any, error) {
	tools := make(realtime.RealtimeToolsConfigParam, 0, len(cfg.Tools))
	for _, schema := range cfg.Tools {
		tools = append(tools, realtime.RealtimeToolsConfigUnionParam{
			OfFunction: &realtime.RealtimeFunctionToolParam{
				Name:        param.NewOpt(schema.Name),
				Description: param.NewOpt(schema.Description),
				Parameters:  schema.Parameters,
				Type:        "function",
			},
		})
	}

	pcm := realtime.RealtimeAudioFormatsUnionParam{
		OfAudioPCM: &realtime.RealtimeAudioFormatsAudioPCMParam{
			Rate: upstreamAudioPCMRate,
			Type: "audio/pcm",
		},
	}
	transcription := realtime.AudioTranscriptionParam{
		Model: realtime.AudioTranscriptionModel(upstreamTranscriptionModel),
	}
	if cfg.Language != "" {
		transcription.Language = param.NewOpt(cfg.Language)
	}

	session := &realtime.RealtimeSessionCreateRequestParam{
		Type:             "realtime",
		Model:            realtime.RealtimeSessionCreateRequestModel(model),
		OutputModalities: []string{"audio"},
		Instructions:     param.NewOpt(cfg.Instructions),
		Audio: realtime.RealtimeAudioConfigParam{
			Input: realtime.RealtimeAudioConfigInputParam{
				Format:        pcm,
				Transcription: transcription,
				TurnDetection: realtime.RealtimeAudioInputTurnDetectionUnionParam{
					OfServerVad: &realtime.RealtimeAudioInputTurnDetectionServerVadParam{
						Type:              "server_vad",
						Threshold:         param.NewOpt(upstreamVADThreshold),
						PrefixPaddingMs:   param.NewOpt(upstreamVADPrefixPaddingMs),
						SilenceDurationMs: param.NewOpt(upstreamVADSilenceDurationMs),
						CreateResponse:    param.NewOpt(true),
						InterruptResponse: param.NewOpt(true),
					},
				},
			},
			Output: realtime.RealtimeAudioConfigOutputParam{
				Format: pcm,
				Voice:  realtime.RealtimeAudioConfigOutputVoice(upstreamVoice),
			},
		},
		Tools: tools,
		ToolChoice: realtime.RealtimeToolChoiceConfigUnionParam{
			OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptions("auto")),
		},
	}

	raw, err := session.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling session params: %w", err)
	}
	var payload map[string]any
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding session params: %w", err)
	}
	return map[string]any{
		"type":    string(ClientEventTypeSessionUpdate),
		"session": payload,
	}, nil
}

type upstreamConn struct {
	logger  shared.LoggerAdapter
	ws      *websocket.Conn
	events  chan *ServerEvent
	done    chan struct{}
	readErr error // written only by readLoop, read after events closes

	// writeMu is the single-writer guarantee for the socket. Audio and tool
	// results contend only for the duration of one transport write.
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ UpstreamConn = (*upstreamConn)(nil)

func (c *upstreamConn) Events() <-chan *ServerEvent {
	return c.events
}

// Err is written by readLoop before the events channel closes; the channel
// close is the synchronization point for readers.
func (c *upstreamConn) Err() error {
	return c.readErr
}

func (c *upstreamConn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// expected: Close tore the socket down
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("upstream read failed", zap.Error(err))
					c.readErr = fmt.Errorf("%w: upstream read: %v", shared.ErrUpstreamUnavailable, err)
				}
			}
			return
		}
		event := new(ServerEvent)
		if err := event.UnmarshalJSON(data); err != nil {
			c.logger.Error("decoding upstream event", err, zap.ByteString("data", data))
			continue
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *upstreamConn) sendJSON(ctx context.Context, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling outbound message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(upstreamWriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing upstream message: %w", err)
	}
	return nil
}

func (c *upstreamConn) SendAudio(ctx context.Context, pcm []byte) error {
	event := &ClientEvent{
		Type: ClientEventTypeInputAudioBufferAppend,
		Param: &ClientEventParamInputAudioBufferAppend{
			Audio: base64.StdEncoding.EncodeToString(pcm),
		},
	}
	return c.sendJSON(ctx, event)
}

// SendControl relays a bare control event such as input_audio_buffer.commit
// or response.create.
func (c *upstreamConn) SendControl(ctx context.Context, eventType ClientEventType) error {
	return c.sendJSON(ctx, &ClientEvent{Type: eventType, Param: &ClientEventParamEmpty{}})
}

// SendToolResult appends a function_call_output conversation item and asks
// for a new response so the model speaks the result.
func (c *upstreamConn) SendToolResult(ctx context.Context, callId string, output []byte) error {
	if err := c.sendJSON(ctx, NewFunctionCallOutputItem(callId, output)); err != nil {
		return err
	}
	return c.sendJSON(ctx, &ClientEvent{
		Type:  ClientEventTypeResponseCreate,
		Param: &ClientEventParamResponseCreate{},
	})
}

func (c *upstreamConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		deadline := time.Now().Add(upstreamWriteWait)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
