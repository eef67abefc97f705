package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "requests_created_total",
		Help:      "Total number of requests created.",
	},
		[]string{"created_by", "type"},
	)

	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "request_transitions_total",
		Help:      "Request status transitions by target status.",
	},
		[]string{"to"},
	)

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "notifications_sent_total",
		Help:      "Fan-out notifications delivered to carriers.",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "notification_failures_total",
		Help:      "Fan-out notifications that failed to send.",
	})

	OffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "offers_total",
		Help:      "Offers by outcome (submitted, accepted, rejected, claimed).",
	},
		[]string{"outcome"},
	)

	StaleWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "stale_writes_total",
		Help:      "Conditional request writes that lost a concurrent race.",
	},
		[]string{"operation"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "operation_errors_total",
		Help:      "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	UpdatesHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carpool",
		Name:      "updates_handled_total",
		Help:      "Chat updates handled by kind.",
	},
		[]string{"kind"},
	)
)
