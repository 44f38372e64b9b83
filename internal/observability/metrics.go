package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facemark",
		Name:      "attempts_total",
		Help:      "Recognition attempts by outcome",
	}, []string{"outcome", "trigger"})

	MatchConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facemark",
		Name:      "match_confidence",
		Help:      "Confidence of accepted matches",
		Buckets:   prometheus.LinearBuckets(0.6, 0.05, 8),
	})

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facemark",
		Name:      "attempt_duration_seconds",
		Help:      "Wall time of a full recognition attempt",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
	})

	RecordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facemark",
		Name:      "records_created_total",
		Help:      "Attendance records persisted",
	})

	NotificationsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facemark",
		Name:      "notifications_evicted_total",
		Help:      "Notifications dropped by the retention bound",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facemark",
		Name:      "ws_connections",
		Help:      "Active dashboard WebSocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facemark",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
