// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnDuration tracks end-to-end conversational turn duration against
	// the platform inference endpoint.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teach_turn_duration_seconds",
			Help:    "Conversational turn duration in seconds",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"status"},
	)

	// TurnsTotal tracks conversational turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_turns_total",
			Help: "Total conversational turns",
		},
		[]string{"agent_id", "status"},
	)

	// MessagesTotal tracks messages appended to the local store.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_messages_total",
			Help: "Total messages recorded",
		},
		[]string{"role"},
	)

	// ChatsTotal tracks chat lifecycle transitions.
	ChatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_chats_total",
			Help: "Total chat lifecycle operations",
		},
		[]string{"operation"},
	)

	// ProposalsTotal tracks change proposals by type and outcome.
	ProposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_proposals_total",
			Help: "Total change proposals",
		},
		[]string{"type", "outcome"},
	)

	// CacheReconciles tracks reconcile decisions on the message cache.
	CacheReconciles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_cache_reconciles_total",
			Help: "Message cache reconcile decisions",
		},
		[]string{"winner"},
	)

	// EventsPublished tracks change events published on the bus.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_events_published_total",
			Help: "Change events published",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for a conversational turn.
func RecordTurn(agentID, status string, duration float64) {
	TurnDuration.WithLabelValues(status).Observe(duration)
	TurnsTotal.WithLabelValues(agentID, status).Inc()
}
