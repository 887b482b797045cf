package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peloton_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "peloton_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped because a client's
	// send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationsCreatedTotal counts notifications persisted, by type.
	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_notifications_created_total",
		Help: "Total number of notifications created, by notification type",
	}, []string{"type"})

	// PushDeliveriesTotal counts Web Push delivery attempts by outcome.
	// Outcomes: delivered, failed, pruned.
	PushDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_push_deliveries_total",
		Help: "Total number of Web Push delivery attempts by outcome",
	}, []string{"outcome"})

	// RealtimeEmitsTotal counts socket emit attempts by outcome.
	// Outcomes: delivered, offline, dropped.
	RealtimeEmitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peloton_realtime_emits_total",
		Help: "Total number of realtime event emits by outcome",
	}, []string{"outcome"})

	// NotificationFanoutDuration records the duration of a notification
	// fan-out, from dispatch to last delivery attempt.
	NotificationFanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "peloton_notification_fanout_duration_seconds",
		Help:    "Duration of notification fan-out in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PresenceOnlineUsers is the gauge of users currently marked online.
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "peloton_presence_online_users",
		Help: "Number of users currently marked online in the presence registry",
	})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordWebSocketEvent increments the WebSocket events counter for the event type.
func RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}
