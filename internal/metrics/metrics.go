package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by the history service.
type Metrics struct {
	registry *prometheus.Registry

	ComputeDuration *prometheus.HistogramVec
	Computations    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	SnapshotCount   prometheus.Histogram
}

// New registers the history collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ComputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "history_compute_duration_seconds",
			Help:    "Time spent computing entity histories",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"source"}),
		Computations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "history_computations_total",
			Help: "History computations by outcome",
		}, []string{"outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "history_cache_lookups_total",
			Help: "History cache lookups by result",
		}, []string{"result"}),
		SnapshotCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "history_snapshots_per_computation",
			Help:    "Number of snapshots diffed per computation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
