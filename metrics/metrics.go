// Package metrics registers counters and gauges for the Monte-Carlo
// driver: trials completed, undefined-probability occurrences, and
// divergence recomputation passes. No HTTP endpoint is wired here --
// serving /metrics is an external-collaborator concern (spec.md §1)
// outside this module's scope; a caller that wants one registers
// Registry with its own promhttp handler.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this package exposes, so a caller
// passes one value around instead of package-level globals.
type Registry struct {
	reg *prometheus.Registry

	TrialsCompleted      prometheus.Counter
	UndefinedProbability prometheus.Counter
	DivergenceRecomputed prometheus.Counter
	ActiveWorkers        prometheus.Gauge
}

// New builds a Registry with every metric registered against a fresh
// prometheus.Registry (never the global DefaultRegisterer, so multiple
// experiment runs in one process don't collide).
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		TrialsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpsim_trials_completed_total",
			Help: "Monte-Carlo trials completed across all workers.",
		}),
		UndefinedProbability: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpsim_undefined_probability_total",
			Help: "Queries that resolved to the undefined-probability sentinel.",
		}),
		DivergenceRecomputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpsim_divergence_recomputed_total",
			Help: "DataBank.UpdateDivergence passes performed.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpsim_active_workers",
			Help: "Monte-Carlo worker goroutines currently running trials.",
		}),
	}
	reg.MustRegister(r.TrialsCompleted, r.UndefinedProbability, r.DivergenceRecomputed, r.ActiveWorkers)
	return r
}

// Gatherer exposes the underlying prometheus.Registry for a caller
// that wants to serve /metrics itself (via promhttp.HandlerFor) or
// gather a snapshot for another exporter, without this package taking
// a dependency on net/http.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
