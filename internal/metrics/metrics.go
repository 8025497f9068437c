// Package metrics exposes rtx's own Prometheus instrumentation: provider
// call counts/latency, cache hit/miss, and orchestrator run duration. It
// does not score or evaluate the scanned project — rtx's Non-goals exclude
// runtime behavioral analysis of scanned code, not observability of the
// scanner process itself.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rtx"

// Registry holds every metric rtx records. Construct once with New and
// share it across the Cache Layer, Advisory/Metadata Providers, and the
// Orchestrator.
type Registry struct {
	ProviderCallsTotal  *prometheus.CounterVec
	ProviderCallSeconds *prometheus.HistogramVec
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	RunVerdictsTotal    *prometheus.CounterVec
	RunsInFlight        prometheus.Gauge
}

// New registers rtx's metrics against reg. Pass prometheus.NewRegistry()
// for an isolated registry in tests, or prometheus.DefaultRegisterer for
// the process-wide one.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		ProviderCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Advisory/metadata provider calls by provider name and outcome.",
		}, []string{"provider", "outcome"}),

		ProviderCallSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_seconds",
			Help:      "Provider call latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that returned a fresh entry, by source.",
		}, []string{"source"}),

		CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that missed or were stale, by source.",
		}, []string{"source"}),

		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of one orchestrator Run from dispatch to sorted Report.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		RunVerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "verdicts_total",
			Help:      "Dependency verdicts produced, by severity.",
		}, []string{"severity"}),

		RunsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "in_flight",
			Help:      "Orchestrator runs currently executing.",
		}),
	}
}

// ObserveProviderCall records one provider call's outcome and duration.
func (r *Registry) ObserveProviderCall(provider string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
	r.ProviderCallSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveCacheLookup records a cache hit or miss for source.
func (r *Registry) ObserveCacheLookup(source string, hit bool) {
	if hit {
		r.CacheHitsTotal.WithLabelValues(source).Inc()
		return
	}
	r.CacheMissesTotal.WithLabelValues(source).Inc()
}

// ObserveRun records one orchestrator Run's duration and its verdicts'
// severity distribution.
func (r *Registry) ObserveRun(elapsed time.Duration, severityCounts map[string]int) {
	r.RunDurationSeconds.Observe(elapsed.Seconds())
	for severity, count := range severityCounts {
		r.RunVerdictsTotal.WithLabelValues(severity).Add(float64(count))
	}
}

// Handler returns the /metrics HTTP handler for this registry. Only
// meaningful when reg was a *prometheus.Registry gatherer; for
// prometheus.DefaultRegisterer callers typically use promhttp.Handler()
// directly instead.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
