package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "yuno"

// Outcome labels for ChatRequests.
const (
	OutcomeStreamed        = "streamed"
	OutcomeRateLimited     = "rate_limited"
	OutcomePaymentRequired = "payment_required"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeInternalError   = "internal_error"
	OutcomeBadRequest      = "bad_request"
)

type Metrics struct {
	// ChatRequests counts /chat requests. Labels: mode, outcome.
	ChatRequests *prometheus.CounterVec
	// UpstreamLatency measures time until the gateway answers with headers. Labels: status.
	UpstreamLatency *prometheus.HistogramVec
	// ActiveStreams is the number of SSE bodies currently being relayed.
	ActiveStreams prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "chat_requests_total",
			Help:      "Chat proxy requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "upstream_response_seconds",
			Help:      "Time until the AI gateway returned response headers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "active_streams",
			Help:      "Streams currently relayed to clients.",
		}),
	}
}
