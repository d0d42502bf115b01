package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	UrgentCountsLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urgent_counts_lookups_total",
			Help: "Urgent-action count lookups by cache outcome",
		},
		[]string{"outcome"}, // hit, miss, error
	)

	UrgentCountsRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urgent_counts_refresh_duration_seconds",
			Help:    "Time spent recomputing urgent-action counts",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Delivery pipeline outcomes per event type",
		},
		[]string{"event_type", "status"}, // status: sent, failed, rejected
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications persisted by type",
		},
		[]string{"type"},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordUrgentCountsLookup(outcome string) {
	UrgentCountsLookups.WithLabelValues(outcome).Inc()
}

func RecordUrgentCountsRefresh(duration time.Duration) {
	UrgentCountsRefreshDuration.Observe(duration.Seconds())
}

func RecordDelivery(eventType, status string) {
	NotificationDeliveries.WithLabelValues(eventType, status).Inc()
}

func RecordNotificationCreated(notificationType string) {
	NotificationsCreated.WithLabelValues(notificationType).Inc()
}

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}
