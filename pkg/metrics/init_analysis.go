package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysisTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gac_analysis_requests_total",
			Help: "Total number of analysis requests dispatched, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gac_analysis_duration_seconds",
			Help:    "Analysis request duration in seconds, by kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"kind"},
	)

	r.AnalysisConverged = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gac_analysis_converged_total",
			Help: "Total number of iterative analyses (AC-PF, OPF) that converged, by kind",
		},
		[]string{"kind"},
	)

	r.AnalysisIterations = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gac_analysis_iterations",
			Help:    "Iteration count of iterative analyses, by kind",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"kind"},
	)
}
