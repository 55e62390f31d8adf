package statusdashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentrelay"

// Request operations.
const (
	operationSign    = "sign"
	operationDeliver = "deliver"
)

var (
	signatureRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statusdashboard",
			Name:      "signature_requests_total",
			Help:      "Total signature requests by outcome",
		},
		[]string{"outcome"},
	)

	webhooksSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statusdashboard",
			Name:      "webhooks_total",
			Help:      "Total webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "statusdashboard",
			Name:      "request_duration_seconds",
			Help:      "Time to complete a dashboard request",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

func recordSignature(outcome string) {
	signatureRequests.WithLabelValues(outcome).Inc()
}

func recordWebhook(outcome string) {
	webhooksSent.WithLabelValues(outcome).Inc()
}

func recordDuration(operation string, d time.Duration) {
	requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// webhookOutcome buckets a dashboard response code for metrics.
func webhookOutcome(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	default:
		return "other"
	}
}
