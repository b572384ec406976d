package bridge

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bt-bridge/voice-gateway/registry"
	"github.com/bt-bridge/voice-gateway/shared"
	"github.com/bt-bridge/voice-gateway/store"
)

func TestResolveAPIKeyPrefersUserStore(t *testing.T) {
	m, err := NewManager(
		shared.NewNopLogger(),
		"", "", 0, 0,
		store.StaticCredentials{"user-7": "sk-user"},
		"sk-default",
	)
	require.NoError(t, err)

	key, err := m.resolveAPIKey(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, "sk-user", key)

	key, err = m.resolveAPIKey(context.Background(), "stranger")
	require.NoError(t, err)
	assert.Equal(t, "sk-default", key)
}

func TestResolveAPIKeyMissingEverywhere(t *testing.T) {
	m, err := NewManager(shared.NewNopLogger(), "", "", 0, 0, nil, "")
	require.NoError(t, err)

	_, err = m.resolveAPIKey(context.Background(), "user-7")
	assert.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestConnectRefusedIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	m, err := NewManager(shared.NewNopLogger(), baseURL, "gpt-realtime", time.Second, 0, nil, "sk-test")
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), &SessionConfig{SessionId: "sess-1"})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
}

// upstreamServer is a scripted stand-in for the realtime service.
type upstreamServer struct {
	t        *testing.T
	server   *httptest.Server
	received chan map[string]any
	conn     chan *websocket.Conn
	auth     chan string
}

func newUpstreamServer(t *testing.T) *upstreamServer {
	t.Helper()
	s := &upstreamServer{
		t:        t,
		received: make(chan map[string]any, 16),
		conn:     make(chan *websocket.Conn, 1),
		auth:     make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		s.conn <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(s.received)
				return
			}
			var body map[string]any
			require.NoError(t, sonic.Unmarshal(data, &body))
			s.received <- body
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *upstreamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *upstreamServer) next() map[string]any {
	s.t.Helper()
	select {
	case body, ok := <-s.received:
		require.True(s.t, ok, "connection closed before message arrived")
		return body
	case <-time.After(2 * time.Second):
		s.t.Fatal("no message from client")
		return nil
	}
}

func TestConnectSendsSessionUpdateFirst(t *testing.T) {
	server := newUpstreamServer(t)
	m, err := NewManager(
		shared.NewNopLogger(),
		server.wsURL(),
		"gpt-realtime",
		time.Second,
		8,
		nil,
		"sk-test",
	)
	require.NoError(t, err)

	cfg := &SessionConfig{
		SessionId:    "sess-1",
		UserId:       "user-7",
		Instructions: "You answer the front desk line.",
		Language:     "en",
		Tools: []registry.Schema{{
			Name:        "lookup_contact",
			Description: "Look up a CRM contact.",
			Parameters:  map[string]any{"type": "object"},
		}},
	}
	conn, err := m.Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.Equal(t, "Bearer sk-test", <-server.auth)

	update := server.next()
	assert.Equal(t, "session.update", update["type"])
	session, ok := update["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "You answer the front desk line.", session["instructions"])
	tools, ok := session["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	tool, ok := tools[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lookup_contact", tool["name"])
}

func TestUpstreamConnRoundTrip(t *testing.T) {
	server := newUpstreamServer(t)
	m, err := NewManager(shared.NewNopLogger(), server.wsURL(), "gpt-realtime", time.Second, 8, nil, "sk-test")
	require.NoError(t, err)

	conn, err := m.Connect(context.Background(), &SessionConfig{SessionId: "sess-1"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	server.next() // session.update

	// audio goes out base64-encoded
	pcm := []byte{0x00, 0x01, 0x02}
	require.NoError(t, conn.SendAudio(context.Background(), pcm))
	appendMsg := server.next()
	assert.Equal(t, "input_audio_buffer.append", appendMsg["type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pcm), appendMsg["audio"])

	// tool result is an item plus a response request
	require.NoError(t, conn.SendToolResult(context.Background(), "call_1", []byte(`{"success":true}`)))
	itemMsg := server.next()
	assert.Equal(t, "conversation.item.create", itemMsg["type"])
	item, ok := itemMsg["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_1", item["call_id"])
	respMsg := server.next()
	assert.Equal(t, "response.create", respMsg["type"])

	// control events are bare type tags
	require.NoError(t, conn.SendControl(context.Background(), ClientEventTypeInputAudioBufferCommit))
	commitMsg := server.next()
	assert.Equal(t, "input_audio_buffer.commit", commitMsg["type"])

	// inbound server events surface on the channel
	peer := <-server.conn
	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte(`{
		"event_id": "evt_1",
		"type": "response.created",
		"response": {"id": "resp_1"}
	}`)))
	select {
	case event := <-conn.Events():
		assert.Equal(t, ServerEventTypeResponseCreated, event.Type)
		assert.Equal(t, "evt_1", event.EventId)
	case <-time.After(2 * time.Second):
		t.Fatal("no event from upstream connection")
	}
}

func TestUpstreamConnAbruptPeerCloseIsAnError(t *testing.T) {
	server := newUpstreamServer(t)
	m, err := NewManager(shared.NewNopLogger(), server.wsURL(), "gpt-realtime", time.Second, 8, nil, "sk-test")
	require.NoError(t, err)

	conn, err := m.Connect(context.Background(), &SessionConfig{SessionId: "sess-1"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	server.next() // session.update

	// no close handshake: the socket just dies under the reader
	peer := <-server.conn
	require.NoError(t, peer.UnderlyingConn().Close())

	select {
	case _, ok := <-conn.Events():
		assert.False(t, ok, "events channel must close when the peer goes away")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}
	assert.ErrorIs(t, conn.Err(), shared.ErrUpstreamUnavailable)
}

func TestUpstreamConnCleanCloseHasNoError(t *testing.T) {
	server := newUpstreamServer(t)
	m, err := NewManager(shared.NewNopLogger(), server.wsURL(), "gpt-realtime", time.Second, 8, nil, "sk-test")
	require.NoError(t, err)

	conn, err := m.Connect(context.Background(), &SessionConfig{SessionId: "sess-1"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	server.next() // session.update

	peer := <-server.conn
	deadline := time.Now().Add(time.Second)
	require.NoError(t, peer.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	))

	select {
	case _, ok := <-conn.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}
	assert.NoError(t, conn.Err())
}

// The full bridge over a real upstream connection: when the socket dies, the
// session must land in Failed with the upstream-unavailable error frame, not
// pass as a clean close.
func TestBridgeRealUpstreamDrop(t *testing.T) {
	server := newUpstreamServer(t)
	m, err := NewManager(shared.NewNopLogger(), server.wsURL(), "gpt-realtime", time.Second, 8, nil, "sk-test")
	require.NoError(t, err)

	conn, err := m.Connect(context.Background(), &SessionConfig{SessionId: "sess-1"})
	require.NoError(t, err)

	reg, err := registry.New(shared.NewNopLogger())
	require.NoError(t, err)
	session := NewSession("sess-1", &AgentSnapshot{Id: "agent-1", Tier: TierPremium, Active: true})
	transport := newFakeTransport(nil)
	b, err := NewBridge(shared.NewNopLogger(), shared.NopMetrics(), reg, session, transport, conn, testDrainGrace)
	require.NoError(t, err)

	errC := runBridge(b)
	server.next() // session.update

	peer := <-server.conn
	require.NoError(t, peer.UnderlyingConn().Close())

	runErr := waitErr(t, errC)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, shared.ErrUpstreamUnavailable)
	assert.Equal(t, SessionStateFailed, session.State())
	assert.Contains(t, transport.writtenEvents(), "error")
}
