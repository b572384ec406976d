package bridge

import (
	"sync"
	"time"

	"github.com/bt-bridge/voice-gateway/shared"
)

// SessionState is the bridge lifecycle. Failed is reachable from any
// non-terminal state; Closed and Failed are terminal.
type SessionState int

const (
	SessionStateInitializing SessionState = iota
	SessionStateConfiguring
	SessionStateActive
	SessionStateDraining
	SessionStateClosed
	SessionStateFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionStateInitializing:
		return "initializing"
	case SessionStateConfiguring:
		return "configuring"
	case SessionStateActive:
		return "active"
	case SessionStateDraining:
		return "draining"
	case SessionStateClosed:
		return "closed"
	case SessionStateFailed:
		return "failed"
	}
	return "unknown"
}

func (s SessionState) Terminal() bool {
	return s == SessionStateClosed || s == SessionStateFailed
}

// AgentTier gates feature availability. Only TierPremium may use the
// realtime path.
type AgentTier string

const (
	TierBudget   AgentTier = "budget"
	TierBalanced AgentTier = "balanced"
	TierPremium  AgentTier = "premium"
)

// AgentSnapshot is the agent configuration captured at session start. It is
// immutable for the session's duration; picking up changes requires a new
// session.
type AgentSnapshot struct {
	Id               string
	UserId           string
	Name             string
	Instructions     string
	EnabledTools     []string
	Language         string
	Tier             AgentTier
	Active           bool
	EnableRecording  bool
	EnableTranscript bool
}

type ToolCallStatus int

const (
	ToolCallPending ToolCallStatus = iota
	ToolCallExecuting
	ToolCallCompleted
	ToolCallFailed
)

func (s ToolCallStatus) Terminal() bool {
	return s == ToolCallCompleted || s == ToolCallFailed
}

// ToolCall tracks one upstream-issued function call from the done-event to
// the acknowledged result.
type ToolCall struct {
	CallId    string
	Name      string
	Arguments []byte
	Status    ToolCallStatus
}

// callTable enforces the at-most-one-open-call-per-id invariant. Upstream
// never reuses identifiers, but the table rejects duplicates anyway.
type callTable struct {
	mu    sync.Mutex
	calls map[string]*ToolCall
}

func newCallTable() *callTable {
	return &callTable{calls: make(map[string]*ToolCall)}
}

// open registers a call id. Ids are never legitimately reused within a
// session, so any repeat is a duplicate delivery and fails.
func (t *callTable) open(callId, name string, args []byte) (*ToolCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[callId]; ok {
		return nil, shared.ErrDuplicateToolCall
	}
	call := &ToolCall{
		CallId:    callId,
		Name:      name,
		Arguments: args,
		Status:    ToolCallPending,
	}
	t.calls[callId] = call
	return call, nil
}

func (t *callTable) setStatus(callId string, status ToolCallStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if call, ok := t.calls[callId]; ok {
		call.Status = status
	}
}

// Session carries the identity and lifecycle of one live call. It is owned
// exclusively by its bridge.
type Session struct {
	Id        string
	Agent     *AgentSnapshot
	CreatedAt time.Time

	mu    sync.Mutex
	state SessionState
	calls *callTable
}

func NewSession(id string, agent *AgentSnapshot) *Session {
	return &Session{
		Id:        id,
		Agent:     agent,
		CreatedAt: time.Now(),
		state:     SessionStateInitializing,
		calls:     newCallTable(),
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session forward. Terminal states are sticky:
// re-entering Closed is idempotent and Failed is never overwritten.
func (s *Session) transition(next SessionState) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return s.state
	}
	s.state = next
	return s.state
}
