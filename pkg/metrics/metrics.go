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

	// ThreadsCreatedTotal tracks chat threads created lazily on first access.
	ThreadsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_threads_created_total",
			Help: "Total chat threads created",
		},
	)

	// MessagesTotal tracks messages appended to thread ledgers.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages appended",
		},
		[]string{"sender_role", "kind"},
	)

	// DuplicateSendsTotal tracks idempotent replays of an already stored message.
	DuplicateSendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_duplicate_sends_total",
			Help: "Sends answered from an existing idempotency key",
		},
	)

	// PickupsTotal tracks pickup attempts by outcome.
	PickupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_pickups_total",
			Help: "Thread pickup attempts",
		},
		[]string{"result"},
	)

	// NotificationsTotal tracks in-app notification records written.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "In-app notifications persisted",
		},
		[]string{"type"},
	)

	// PushDeliveriesTotal tracks push tokens attempted by outcome.
	PushDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push tokens attempted",
		},
		[]string{"result"},
	)

	// PushBatchDuration tracks multicast call latency.
	PushBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_batch_duration_seconds",
			Help:    "Push multicast batch duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// EventsPublishedTotal tracks chat events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_published_total",
			Help: "Chat events published",
		},
		[]string{"type", "result"},
	)

	// SuggestionsTotal tracks LLM reply drafts.
	SuggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_suggestions_total",
			Help: "Reply suggestions requested",
		},
		[]string{"provider", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordPush records the outcome of one multicast batch.
func RecordPush(success, failure int, duration float64) {
	PushDeliveriesTotal.WithLabelValues("success").Add(float64(success))
	PushDeliveriesTotal.WithLabelValues("failure").Add(float64(failure))
	PushBatchDuration.Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
