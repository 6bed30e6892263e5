// Package metrics exposes the Prometheus instrumentation for the
// backtest service: cache effectiveness, run latency, and prefetch
// outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the service records.
type Registry struct {
	reg *prometheus.Registry

	RunDuration   prometheus.Histogram
	RunsTotal     *prometheus.CounterVec // result: hit|computed|error
	CacheHits     *prometheus.CounterVec // layer: result|bars
	CacheMisses   *prometheus.CounterVec
	PrefetchFails prometheus.Counter
	ActiveRuns    prometheus.Gauge
}

// NewRegistry builds and registers the full metric set on a private
// Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dualmomentum_run_duration_seconds",
			Help:    "Wall-clock duration of one composite simulation",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualmomentum_runs_total",
			Help: "Simulation requests by outcome",
		}, []string{"result"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualmomentum_cache_hits_total",
			Help: "Cache hits by layer",
		}, []string{"layer"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualmomentum_cache_misses_total",
			Help: "Cache misses by layer",
		}, []string{"layer"}),
		PrefetchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dualmomentum_prefetch_failures_total",
			Help: "Ticker prefetch tasks that failed after retries",
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dualmomentum_active_runs",
			Help: "Simulations currently in flight",
		}),
	}
	r.reg.MustRegister(r.RunDuration, r.RunsTotal, r.CacheHits, r.CacheMisses,
		r.PrefetchFails, r.ActiveRuns)
	return r
}

// Handler exposes the registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
