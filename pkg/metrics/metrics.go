package metrics

import (
	"time"
)

// RecordAnalysis records one dispatched analysis request's outcome and
// duration (the per-analysis log event, mirrored here as a metric).
func (r *Registry) RecordAnalysis(kind, status string, duration time.Duration) {
	r.AnalysisTotal.WithLabelValues(kind, status).Inc()
	r.AnalysisDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordConvergence records an iterative analysis' convergence outcome
// and iteration count (AC-PF, AC-OPF/NLP-OPF). DC-PF, DC-OPF, and PTDF
// never fail to converge by construction and should not call this.
func (r *Registry) RecordConvergence(kind string, converged bool, iterations int) {
	if converged {
		r.AnalysisConverged.WithLabelValues(kind).Inc()
	}
	r.AnalysisIterations.WithLabelValues(kind).Observe(float64(iterations))
}

// RecordCacheOutcome increments the Result Cache hit or miss counter.
func (r *Registry) RecordCacheOutcome(hit bool) {
	if hit {
		r.CacheHitsTotal.Inc()
		return
	}
	r.CacheMissesTotal.Inc()
}

// SetCacheUsage reports the Result Cache's current footprint, as
// returned by cache.Cache.Stats.
func (r *Registry) SetCacheUsage(usedBytes, budgetBytes, entries int) {
	r.CacheUsedBytes.Set(float64(usedBytes))
	r.CacheBudgetBytes.Set(float64(budgetBytes))
	r.CacheEntries.Set(float64(entries))
}

// RecordReliabilityRun records one completed reliability aggregation:
// how many scenarios it evaluated and the resulting LOLE/EUE.
func (r *Registry) RecordReliabilityRun(scenarios int, lole, eue float64) {
	r.ReliabilityRunsTotal.Inc()
	r.ReliabilityScenariosTotal.Add(float64(scenarios))
	r.ReliabilityLOLE.Set(lole)
	r.ReliabilityEUE.Set(eue)
}

// RecordSolverDispatch records one Solver Bridge subprocess round trip.
func (r *Registry) RecordSolverDispatch(formulation, status string, duration time.Duration) {
	r.SolverDispatchTotal.WithLabelValues(formulation, status).Inc()
	r.SolverDispatchDuration.WithLabelValues(formulation).Observe(duration.Seconds())
}
