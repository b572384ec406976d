package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bt-bridge/voice-gateway/registry"
	"github.com/bt-bridge/voice-gateway/shared"
)

// errUpstreamEnded marks the normal end of the upstream event sequence. It
// cancels the pump group without counting as a session failure.
var errUpstreamEnded = errors.New("upstream event sequence ended")

// clientControlAllowlist names the control event types a client may relay
// upstream. Everything else is dropped.
var clientControlAllowlist = map[ClientEventType]struct{}{
	ClientEventTypeInputAudioBufferCommit: {},
	ClientEventTypeResponseCreate:         {},
}

// Bridge runs one live session: two pumps moving traffic between the client
// transport and the upstream connection, with function calls intercepted and
// executed locally. A bridge runs exactly once.
type Bridge struct {
	logger   shared.LoggerAdapter
	metrics  *shared.Metrics
	registry *registry.Registry
	session  *Session
	client   ClientTransport
	upstream UpstreamConn

	drainGrace time.Duration

	// clientGone switches the upstream pump into drain mode: the client
	// boundary is dead, but in-flight work gets drainGrace to settle.
	clientGone chan struct{}

	failOnce sync.Once
}

func NewBridge(
	logger shared.LoggerAdapter,
	metrics *shared.Metrics,
	reg *registry.Registry,
	session *Session,
	client ClientTransport,
	upstream UpstreamConn,
	drainGrace time.Duration,
) (*Bridge, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if metrics == nil {
		metrics = shared.NopMetrics()
	}
	if drainGrace <= 0 {
		drainGrace = 5 * time.Second
	}
	return &Bridge{
		logger:     logger.With(zap.String("session_id", session.Id)),
		metrics:    metrics,
		registry:   reg,
		session:    session,
		client:     client,
		upstream:   upstream,
		drainGrace: drainGrace,
		clientGone: make(chan struct{}),
	}, nil
}

// Run pumps until one side ends or fails, then tears both sides down. It
// returns nil for a clean close (client hangup or upstream completion) and
// the fatal error otherwise; the session lands in Closed or Failed
// accordingly.
func (b *Bridge) Run(ctx context.Context) error {
	if b.session.transition(SessionStateActive) != SessionStateActive {
		return shared.ErrSessionClosed
	}
	b.metrics.ActiveSessions.Inc()
	defer b.metrics.ActiveSessions.Dec()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// The transports have no context-aware reads. Closing them is the only
	// way to unblock a pump, so tie both lifetimes to the group context.
	go func() {
		<-gctx.Done()
		_ = b.client.Close()
		_ = b.upstream.Close()
	}()

	g.Go(func() error { return b.clientPump(gctx) })
	g.Go(func() error { return b.upstreamPump(gctx) })

	err := g.Wait()
	if errors.Is(err, errUpstreamEnded) || errors.Is(err, context.Canceled) {
		err = nil
	}

	if err != nil {
		b.session.transition(SessionStateFailed)
		_ = b.fail(err) // no-op when the failing pump already sent the frame
		b.logger.Error("session failed", err, zap.String("state", b.session.State().String()))
	} else {
		b.session.transition(SessionStateClosed)
		b.logger.Info("session closed", zap.Duration("lifetime", time.Since(b.session.CreatedAt)))
	}
	_ = b.client.Close()
	_ = b.upstream.Close()
	b.metrics.SessionsTotal.WithLabelValues(b.session.State().String()).Inc()
	return err
}

// fail emits the single error frame for the first fatal error and passes
// the error through. Pumps call it at the point of failure, while the
// client transport is still open: the group context is not cancelled until
// the failing pump returns, so the frame deterministically precedes the
// teardown close.
func (b *Bridge) fail(err error) error {
	b.failOnce.Do(func() {
		WriteErrorFrame(b.client, failureReason(err))
	})
	return err
}

// failureReason maps a fatal error to the single error frame the client
// receives before teardown.
func failureReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return "upstream unavailable"
	case errors.Is(err, shared.ErrConfiguration):
		return "configuration error"
	default:
		return "session error"
	}
}

// clientPump moves client frames upstream: binary frames as audio, text
// frames as allowlisted control events. A client hangup is a clean exit that
// starts the drain window.
func (b *Bridge) clientPump(ctx context.Context) error {
	for {
		frame, err := b.client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				// the other pump ended the session and closed the transport
				return nil
			}
			if errors.Is(err, shared.ErrClientDisconnect) {
				b.session.transition(SessionStateDraining)
				close(b.clientGone)
				b.logger.Info("client disconnected, draining")
				return nil
			}
			return b.fail(fmt.Errorf("client read: %w", err))
		}
		switch frame.Kind {
		case FrameAudio:
			b.metrics.AudioFramesIn.Inc()
			if err := b.upstream.SendAudio(ctx, frame.Audio); err != nil {
				return b.fail(fmt.Errorf("%w: relaying audio: %v", shared.ErrUpstreamUnavailable, err))
			}
		case FrameControl:
			if err := b.handleControl(ctx, frame.Control); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) handleControl(ctx context.Context, control map[string]any) error {
	name, _ := control["type"].(string)
	eventType := ClientEventType(name)
	if _, ok := clientControlAllowlist[eventType]; !ok {
		b.logger.Warn("dropping disallowed client control event", zap.String("type", name))
		return nil
	}
	if err := b.upstream.SendControl(ctx, eventType); err != nil {
		return b.fail(fmt.Errorf("%w: relaying control event %s: %v", shared.ErrUpstreamUnavailable, name, err))
	}
	return nil
}

// upstreamPump consumes the upstream event sequence one event at a time.
// Function call events are executed and answered before the next event is
// taken off the channel; everything is forwarded to the client verbatim.
func (b *Bridge) upstreamPump(ctx context.Context) error {
	clientGone := b.clientGone
	var drainDeadline <-chan time.Time
	for {
		select {
		case ev, ok := <-b.upstream.Events():
			if !ok {
				// a dropped connection is terminal, a close handshake is a
				// normal end of conversation
				if err := b.upstream.Err(); err != nil {
					return b.fail(err)
				}
				b.session.transition(SessionStateDraining)
				return errUpstreamEnded
			}
			if err := b.handleUpstreamEvent(ctx, ev); err != nil {
				return b.fail(err)
			}
		case <-clientGone:
			clientGone = nil
			drainDeadline = time.After(b.drainGrace)
		case <-drainDeadline:
			b.logger.Debug("drain grace elapsed")
			return errUpstreamEnded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) handleUpstreamEvent(ctx context.Context, ev *ServerEvent) error {
	b.metrics.UpstreamEvents.Inc()

	if err := b.forwardToClient(ev); err != nil {
		return err
	}

	if done, ok := ev.FunctionCallDone(); ok {
		return b.interceptToolCall(ctx, done)
	}
	return nil
}

// forwardToClient relays one upstream event. During drain the client is
// gone, so the write is skipped rather than failed.
func (b *Bridge) forwardToClient(ev *ServerEvent) error {
	if b.session.State() == SessionStateDraining {
		return nil
	}
	payload := map[string]any{}
	if ev.Param != nil {
		payload = ev.Param.Json()
	}
	if ev.EventId != "" {
		payload["event_id"] = ev.EventId
	}
	if err := b.client.WriteEvent(string(ev.Type), payload); err != nil {
		if b.session.State() == SessionStateDraining {
			return nil
		}
		return fmt.Errorf("forwarding %s to client: %w", ev.Type, err)
	}
	b.metrics.ClientEventsOut.Inc()
	return nil
}

// interceptToolCall executes one function call and submits its result before
// the pump consumes another event. Tool failures stay inside the session: a
// failed execution produces a failure-shaped result, never a teardown. Only
// a broken upstream write is fatal.
func (b *Bridge) interceptToolCall(ctx context.Context, done *ServerEventParamResponseFunctionCallArgumentsDone) error {
	call, err := b.session.calls.open(done.CallId, done.Name, []byte(done.Arguments))
	if err != nil {
		b.logger.Warn(
			"ignoring duplicate tool call",
			zap.String("call_id", done.CallId),
			zap.String("tool", done.Name),
		)
		b.metrics.ToolCallsTotal.WithLabelValues(done.Name, "duplicate").Inc()
		return nil
	}
	b.session.calls.setStatus(call.CallId, ToolCallExecuting)
	b.logger.Info(
		"executing tool call",
		zap.String("call_id", call.CallId),
		zap.String("tool", call.Name),
	)

	result := b.registry.Execute(ctx, call.Name, call.Arguments)
	payload, err := result.Payload()
	if err != nil {
		payload, _ = sonic.Marshal(map[string]any{
			"success": false,
			"error":   "internal error serializing tool result",
		})
	}

	if err := b.upstream.SendToolResult(ctx, call.CallId, payload); err != nil {
		b.session.calls.setStatus(call.CallId, ToolCallFailed)
		b.metrics.ToolCallsTotal.WithLabelValues(call.Name, "submit_error").Inc()
		return fmt.Errorf("%w: submitting tool result for %s: %v", shared.ErrUpstreamUnavailable, call.CallId, err)
	}

	if result.Success {
		b.session.calls.setStatus(call.CallId, ToolCallCompleted)
		b.metrics.ToolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	} else {
		b.session.calls.setStatus(call.CallId, ToolCallFailed)
		b.metrics.ToolCallsTotal.WithLabelValues(call.Name, "failed").Inc()
		b.logger.Warn(
			"tool call failed",
			zap.String("call_id", call.CallId),
			zap.String("tool", call.Name),
			zap.String("error", result.Error),
		)
	}
	return nil
}
