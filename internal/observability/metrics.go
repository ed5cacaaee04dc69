package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatResolutions counts private chat resolutions by outcome
	// (existing, created, conflict, error).
	ChatResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directchat_chat_resolutions_total",
		Help: "Private chat resolutions by outcome",
	}, []string{"outcome"})

	// MessagesAppended counts committed messages by type.
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directchat_messages_appended_total",
		Help: "Messages committed by type",
	}, []string{"type"})

	// DuplicateMessages counts appends answered from an earlier client message id.
	DuplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "directchat_messages_deduplicated_total",
		Help: "Message appends resolved to an existing message by client message id",
	})

	// StoreErrors counts translated store failures by error code.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directchat_store_errors_total",
		Help: "Store errors by classified code",
	}, []string{"code"})

	// ActivityEventsDropped counts chat activity events that could not be published.
	ActivityEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "directchat_activity_events_dropped_total",
		Help: "Chat activity events that failed to publish",
	})

	// DatabaseQueryLatency records store latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "directchat_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
