package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSolverMetrics() {
	r.SolverDispatchTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gac_solver_bridge_dispatch_total",
			Help: "Total number of Solver Bridge subprocess dispatches, by formulation and outcome",
		},
		[]string{"formulation", "status"},
	)

	r.SolverDispatchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gac_solver_bridge_duration_seconds",
			Help:    "Solver Bridge round-trip duration in seconds, by formulation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"formulation"},
	)
}
