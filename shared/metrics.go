package shared

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the session-bridge collectors. A single instance is shared
// by every session; all collectors are concurrency-safe.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	ToolCallsTotal  *prometheus.CounterVec
	UpstreamEvents  prometheus.Counter
	AudioFramesIn   prometheus.Counter
	ClientEventsOut prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voice_gateway",
			Name:      "active_sessions",
			Help:      "Sessions currently in the Active state.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice_gateway",
			Name:      "sessions_total",
			Help:      "Sessions by terminal state.",
		}, []string{"state"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice_gateway",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		UpstreamEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice_gateway",
			Name:      "upstream_events_total",
			Help:      "Events consumed from the upstream connection.",
		}),
		AudioFramesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice_gateway",
			Name:      "client_audio_frames_total",
			Help:      "Audio frames received from clients.",
		}),
		ClientEventsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice_gateway",
			Name:      "client_events_forwarded_total",
			Help:      "Upstream events forwarded to clients.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ActiveSessions,
			m.SessionsTotal,
			m.ToolCallsTotal,
			m.UpstreamEvents,
			m.AudioFramesIn,
			m.ClientEventsOut,
		)
	}
	return m
}

// NopMetrics returns unregistered collectors for tests.
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}
