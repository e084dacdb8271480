package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCacheMetrics() {
	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "gac_cache_hits_total",
			Help: "Total number of Result Cache hits",
		},
	)

	r.CacheMissesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "gac_cache_misses_total",
			Help: "Total number of Result Cache misses",
		},
	)

	r.CacheUsedBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gac_cache_used_bytes",
			Help: "Uncompressed bytes currently charged against the Result Cache budget",
		},
	)

	r.CacheBudgetBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gac_cache_budget_bytes",
			Help: "Configured Result Cache byte budget",
		},
	)

	r.CacheEntries = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gac_cache_entries",
			Help: "Number of entries currently held in the Result Cache",
		},
	)
}
