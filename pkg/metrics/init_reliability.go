package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initReliabilityMetrics() {
	r.ReliabilityScenariosTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "gac_reliability_scenarios_total",
			Help: "Total number of outage scenarios evaluated across all reliability runs",
		},
	)

	r.ReliabilityRunsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "gac_reliability_runs_total",
			Help: "Total number of reliability aggregation runs completed",
		},
	)

	r.ReliabilityLOLE = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gac_reliability_lole_hours_per_year",
			Help: "Loss of load expectation, hours per year, from the most recent reliability run",
		},
	)

	r.ReliabilityEUE = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gac_reliability_eue_mwh_per_year",
			Help: "Expected unserved energy, MWh per year, from the most recent reliability run",
		},
	)
}
