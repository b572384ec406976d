package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bt-bridge/voice-gateway/registry"
	"github.com/bt-bridge/voice-gateway/shared"
	"github.com/bt-bridge/voice-gateway/store"
)

// Outcome summarizes one finished session attempt.
type Outcome struct {
	SessionId string
	State     SessionState
}

// Gateway admits client connections: it resolves the agent, enforces
// eligibility, dials upstream and hands the pair of connections to a bridge.
// Ineligible or unresolvable agents are refused with a single error frame
// and never cause an upstream dial.
type Gateway struct {
	logger     shared.LoggerAdapter
	metrics    *shared.Metrics
	registry   *registry.Registry
	agents     store.AgentSource
	upstream   UpstreamManager
	drainGrace time.Duration
}

func NewGateway(
	logger shared.LoggerAdapter,
	metrics *shared.Metrics,
	reg *registry.Registry,
	agents store.AgentSource,
	upstream UpstreamManager,
	drainGrace time.Duration,
) (*Gateway, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if metrics == nil {
		metrics = shared.NopMetrics()
	}
	return &Gateway{
		logger:     logger,
		metrics:    metrics,
		registry:   reg,
		agents:     agents,
		upstream:   upstream,
		drainGrace: drainGrace,
	}, nil
}

func snapshotAgent(agent *store.Agent) *AgentSnapshot {
	return &AgentSnapshot{
		Id:               agent.Id,
		UserId:           agent.UserId,
		Name:             agent.Name,
		Instructions:     agent.Instructions,
		EnabledTools:     append([]string(nil), agent.EnabledTools...),
		Language:         agent.Language,
		Tier:             AgentTier(agent.Tier),
		Active:           agent.Active,
		EnableRecording:  agent.EnableRecording,
		EnableTranscript: agent.EnableTranscript,
	}
}

// refuse sends the one error frame an admitted-then-rejected client gets and
// closes the transport.
func (g *Gateway) refuse(client ClientTransport, sessionId, reason string, err error) (*Outcome, error) {
	WriteErrorFrame(client, reason)
	_ = client.Close()
	g.metrics.SessionsTotal.WithLabelValues(SessionStateFailed.String()).Inc()
	g.logger.Warn("session refused", zap.String("session_id", sessionId), zap.String("reason", reason))
	return &Outcome{SessionId: sessionId, State: SessionStateFailed}, err
}

// Open runs a full session on the given client transport and blocks until it
// ends. The transport is closed before Open returns, on every path.
func (g *Gateway) Open(ctx context.Context, client ClientTransport, agentId string) (*Outcome, error) {
	sessionId := uuid.NewString()
	logger := g.logger.With(zap.String("session_id", sessionId), zap.String("agent_id", agentId))

	agent, err := g.agents.Agent(ctx, agentId)
	if err != nil {
		if errors.Is(err, shared.ErrAgentNotFound) {
			return g.refuse(client, sessionId, "agent not found", err)
		}
		return g.refuse(client, sessionId, "agent lookup failed", err)
	}
	if !agent.Active {
		return g.refuse(client, sessionId, "agent is not active", fmt.Errorf("%w: %s", shared.ErrAgentInactive, agentId))
	}
	if AgentTier(agent.Tier) != TierPremium {
		return g.refuse(client, sessionId, "tier not eligible", fmt.Errorf("%w: %s", shared.ErrTierNotEligible, agent.Tier))
	}

	session := NewSession(sessionId, snapshotAgent(agent))
	session.transition(SessionStateConfiguring)

	cfg := &SessionConfig{
		SessionId:    sessionId,
		UserId:       agent.UserId,
		Instructions: agent.Instructions,
		Language:     agent.Language,
		Tools:        g.registry.Definitions(agent.EnabledTools),
	}
	upstream, err := g.upstream.Connect(ctx, cfg)
	if err != nil {
		session.transition(SessionStateFailed)
		WriteErrorFrame(client, failureReason(err))
		_ = client.Close()
		g.metrics.SessionsTotal.WithLabelValues(SessionStateFailed.String()).Inc()
		logger.Error("upstream connect failed", err)
		return &Outcome{SessionId: sessionId, State: SessionStateFailed}, err
	}

	// the client learns the session is live, and under which identity,
	// before any media flows
	readyErr := client.WriteEvent("session.ready", map[string]any{
		"session_id": sessionId,
		"agent": map[string]any{
			"id":   agent.Id,
			"name": agent.Name,
			"tier": agent.Tier,
		},
	})
	if readyErr != nil {
		session.transition(SessionStateFailed)
		_ = upstream.Close()
		_ = client.Close()
		g.metrics.SessionsTotal.WithLabelValues(SessionStateFailed.String()).Inc()
		logger.Error("announcing session", readyErr)
		return &Outcome{SessionId: sessionId, State: SessionStateFailed}, fmt.Errorf("announcing session: %w", readyErr)
	}

	b, err := NewBridge(logger, g.metrics, g.registry, session, client, upstream, g.drainGrace)
	if err != nil {
		session.transition(SessionStateFailed)
		_ = upstream.Close()
		_ = client.Close()
		return &Outcome{SessionId: sessionId, State: SessionStateFailed}, err
	}

	logger.Info(
		"session starting",
		zap.String("agent", agent.Name),
		zap.Int("tool_count", len(cfg.Tools)),
	)
	runErr := b.Run(ctx)
	return &Outcome{SessionId: sessionId, State: session.State()}, runErr
}
