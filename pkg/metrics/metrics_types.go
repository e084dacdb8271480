package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this module exports.
type Registry struct {
	// Analysis dispatch metrics: one counter/histogram family shared
	// across every request Kind (ybus, dcpf, acpf, ptdf_row, dcopf, acopf,
	// reliability, n1_screen).
	AnalysisTotal      *prometheus.CounterVec
	AnalysisDuration   *prometheus.HistogramVec
	AnalysisConverged  *prometheus.CounterVec
	AnalysisIterations *prometheus.HistogramVec

	// Result Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheUsedBytes   prometheus.Gauge
	CacheBudgetBytes prometheus.Gauge
	CacheEntries     prometheus.Gauge

	// Reliability engine metrics
	ReliabilityScenariosTotal prometheus.Counter
	ReliabilityRunsTotal      prometheus.Counter
	ReliabilityLOLE           prometheus.Gauge
	ReliabilityEUE            prometheus.Gauge

	// Solver Bridge metrics: the subprocess protocol itself is
	// out of scope, but dispatch/latency/failure of calls through it is
	// ambient observability this module owns.
	SolverDispatchTotal    *prometheus.CounterVec
	SolverDispatchDuration *prometheus.HistogramVec

	// System metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initAnalysisMetrics()
	r.initCacheMetrics()
	r.initReliabilityMetrics()
	r.initSolverMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
