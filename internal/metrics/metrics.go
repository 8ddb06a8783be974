package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interviewhub_active_sessions",
		Help: "Number of live interview sessions",
	})
	QueuedCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interviewhub_queued_candidates",
		Help: "Number of candidates waiting across all sessions",
	})
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interviewhub_active_connections",
		Help: "Number of open WebSocket connections",
	})
)

// Counters
var (
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewhub_sessions_created_total",
		Help: "Total sessions created",
	})
	InterviewsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewhub_interviews_started_total",
		Help: "Total candidates promoted into an interview",
	})
	RelayMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewhub_relay_messages_total",
		Help: "Relayed signaling messages by kind and outcome",
	}, []string{"kind", "outcome"})
	DroppedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewhub_dropped_frames_total",
		Help: "Outbound frames dropped because a connection buffer was full or closed",
	})
	RecordingsStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewhub_recordings_stored_total",
		Help: "Total recording blobs saved",
	})
)

// Relay outcomes
const (
	OutcomeDelivered   = "delivered"
	OutcomeUnavailable = "unavailable"
	OutcomeRateLimited = "rate_limited"
)

// SetSessionStats publishes the store counters.
func SetSessionStats(stats map[string]int) {
	ActiveSessions.Set(float64(stats["active_sessions"]))
	QueuedCandidates.Set(float64(stats["queued_candidates"]))
}
