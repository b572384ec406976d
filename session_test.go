package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bt-bridge/voice-gateway/shared"
)

func TestSessionStateTransitions(t *testing.T) {
	s := NewSession("sess-1", &AgentSnapshot{Id: "agent-1"})
	assert.Equal(t, SessionStateInitializing, s.State())

	assert.Equal(t, SessionStateConfiguring, s.transition(SessionStateConfiguring))
	assert.Equal(t, SessionStateActive, s.transition(SessionStateActive))
	assert.Equal(t, SessionStateDraining, s.transition(SessionStateDraining))
	assert.Equal(t, SessionStateClosed, s.transition(SessionStateClosed))
}

func TestSessionTerminalStatesAreSticky(t *testing.T) {
	tests := []struct {
		name     string
		terminal SessionState
	}{
		{name: "closed", terminal: SessionStateClosed},
		{name: "failed", terminal: SessionStateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession("sess-1", &AgentSnapshot{})
			s.transition(tc.terminal)
			assert.Equal(t, tc.terminal, s.transition(SessionStateActive))
			assert.Equal(t, tc.terminal, s.State())
		})
	}
}

func TestSessionFailedReachableFromAnyState(t *testing.T) {
	for _, from := range []SessionState{
		SessionStateInitializing,
		SessionStateConfiguring,
		SessionStateActive,
		SessionStateDraining,
	} {
		s := NewSession("sess-1", &AgentSnapshot{})
		if from != SessionStateInitializing {
			s.transition(from)
		}
		assert.Equal(t, SessionStateFailed, s.transition(SessionStateFailed), "from %s", from)
	}
}

func TestSessionStateStrings(t *testing.T) {
	assert.Equal(t, "initializing", SessionStateInitializing.String())
	assert.Equal(t, "draining", SessionStateDraining.String())
	assert.Equal(t, "failed", SessionStateFailed.String())
	assert.Equal(t, "unknown", SessionState(99).String())
}

func TestCallTableRejectsDuplicateIds(t *testing.T) {
	table := newCallTable()

	call, err := table.open("call_1", "lookup_contact", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, ToolCallPending, call.Status)

	_, err = table.open("call_1", "lookup_contact", []byte(`{}`))
	assert.ErrorIs(t, err, shared.ErrDuplicateToolCall)

	// terminal status does not free the id
	table.setStatus("call_1", ToolCallCompleted)
	_, err = table.open("call_1", "lookup_contact", []byte(`{}`))
	assert.ErrorIs(t, err, shared.ErrDuplicateToolCall)

	_, err = table.open("call_2", "book_appointment", nil)
	assert.NoError(t, err)
}

func TestToolCallStatusTerminal(t *testing.T) {
	assert.False(t, ToolCallPending.Terminal())
	assert.False(t, ToolCallExecuting.Terminal())
	assert.True(t, ToolCallCompleted.Terminal())
	assert.True(t, ToolCallFailed.Terminal())
}
