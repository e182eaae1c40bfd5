package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the aggregation service.
type PipelineMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ProviderFetches *prometheus.CounterVec
	ProviderEvents  *prometheus.CounterVec
	EventsReturned  prometheus.Histogram
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig_scout",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code.",
		}, []string{"route", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gig_scout",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ProviderFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig_scout",
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Total provider fetches by provider ID and outcome.",
		}, []string{"provider", "outcome"}), // outcome: ok, cached, error_<kind>
		ProviderEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig_scout",
			Subsystem: "provider",
			Name:      "events_total",
			Help:      "Total events produced per provider before merging.",
		}, []string{"provider"}),
		EventsReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gig_scout",
			Subsystem: "api",
			Name:      "events_returned",
			Help:      "Events per aggregation response.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Outcome builds the fetches_total label value for one provider result.
func Outcome(ok, cached bool, kind string) string {
	switch {
	case ok && cached:
		return "cached"
	case ok:
		return "ok"
	default:
		return "error_" + kind
	}
}

// RecordProvider records one provider's contribution to an aggregation.
func (m *PipelineMetrics) RecordProvider(provider, outcome string, total int) {
	m.ProviderFetches.WithLabelValues(provider, outcome).Inc()
	m.ProviderEvents.WithLabelValues(provider).Add(float64(total))
}
