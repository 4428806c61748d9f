// Package metrics holds the Prometheus collectors shared by the lookup pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
	OutcomeCancelled   = "cancelled"
	OutcomeRateLimited = "rate_limited"
)

// Metrics bundles the collectors registered on one registry.
type Metrics struct {
	registry         *prometheus.Registry
	upstreamRequests *prometheus.CounterVec
	queries          *prometheus.CounterVec
	queryDuration    prometheus.Histogram
	metadataInflight prometheus.Gauge
}

// New creates collectors on a fresh registry, including the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenidx",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the indexing API and name service, by method and outcome.",
		}, []string{"method", "outcome"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenidx",
			Name:      "queries_total",
			Help:      "Balance lookups, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tokenidx",
			Name:      "query_duration_seconds",
			Help:      "Wall time of complete balance lookups.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		metadataInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tokenidx",
			Name:      "metadata_inflight",
			Help:      "Token metadata requests currently outstanding.",
		}),
	}

	reg.MustRegister(
		m.upstreamRequests,
		m.queries,
		m.queryDuration,
		m.metadataInflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpstream counts one upstream call. Safe on a nil receiver.
func (m *Metrics) ObserveUpstream(method, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(method, outcome).Inc()
}

// ObserveQuery records a finished lookup. Safe on a nil receiver.
func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

// MetadataStarted and MetadataFinished track the in-flight gauge. Safe on a nil receiver.
func (m *Metrics) MetadataStarted() {
	if m == nil {
		return
	}
	m.metadataInflight.Inc()
}

func (m *Metrics) MetadataFinished() {
	if m == nil {
		return
	}
	m.metadataInflight.Dec()
}
