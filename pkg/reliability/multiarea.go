package reliability

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dd0wney/gac/pkg/outage"
	"github.com/dd0wney/gac/pkg/topology"
)

// AreaID identifies one area (a balancing-authority-sized subnetwork) in
// a multi-area system.
type AreaID int

// Corridor is a directed inter-area transmission limit: up to CapacityMW
// can flow from AreaA to AreaB. Modeled as a simple MW limit rather than
// a branch in either area's Network; corridors are system-level links
// outside any one area's topology.
type Corridor struct {
	ID         int
	AreaA      AreaID
	AreaB      AreaID
	CapacityMW float64
}

// MultiAreaSystem groups per-area networks with the corridors linking
// them.
type MultiAreaSystem struct {
	Areas     map[AreaID]*topology.Network
	Corridors []Corridor
}

// IncidentCorridors returns every corridor touching area.
func (s MultiAreaSystem) IncidentCorridors(area AreaID) []Corridor {
	var out []Corridor
	for _, c := range s.Corridors {
		if c.AreaA == area || c.AreaB == area {
			out = append(out, c)
		}
	}
	return out
}

// sortedAreas returns the system's area ids in ascending order. Every
// per-scenario walk over areas uses this order so floating-point sums
// never depend on map iteration order.
func (s MultiAreaSystem) sortedAreas() []AreaID {
	ids := maps.Keys(s.Areas)
	slices.Sort(ids)
	return ids
}

// MultiAreaScenario is one joint draw across every area's own outage
// scenario plus which corridors are offline.
type MultiAreaScenario struct {
	Index            int
	AreaScenarios    map[AreaID]outage.Scenario
	OfflineCorridors map[int]bool
	Probability      float64
}

// MultiAreaResult is one joint scenario's outcome, retaining the
// per-area shortfall split for zone-level aggregation.
type MultiAreaResult struct {
	ScenarioResult
	AreaShortfallMW map[AreaID]float64
}

// MultiAreaSummary extends the single-system Summary with a per-area
// LOLE breakdown: how many hours per year each area individually fails
// to serve its own import-adjusted demand.
type MultiAreaSummary struct {
	Summary
	AreaLOLEHoursPerYr map[AreaID]float64
}

// EvaluateMultiArea computes per-area demand/supply and the 0.5x
// corridor-capacity import heuristic (an acknowledged v0
// approximation): each area's shortfall is
// max(0, demand - (own deliverable supply + available import)), and
// the scenario's total shortfall is the sum across areas. Splitting
// corridor capacity evenly between both directions stands in for a real
// inter-area power flow, which is not solved here.
func EvaluateMultiArea(sys MultiAreaSystem, ms MultiAreaScenario) MultiAreaResult {
	total := 0.0
	perArea := make(map[AreaID]float64, len(sys.Areas))
	for _, area := range sys.sortedAreas() {
		net := sys.Areas[area]
		sc, ok := ms.AreaScenarios[area]
		if !ok {
			sc = outage.Scenario{DemandScale: 1.0, Probability: ms.Probability}
		}

		areaResult := Evaluate(net, sc)

		availableImport := 0.0
		for _, c := range sys.IncidentCorridors(area) {
			if ms.OfflineCorridors[c.ID] {
				continue
			}
			availableImport += 0.5 * c.CapacityMW
		}

		shortfall := areaResult.ShortfallMW - availableImport
		if shortfall < 0 {
			shortfall = 0
		}
		perArea[area] = shortfall
		total += shortfall
	}

	return MultiAreaResult{
		ScenarioResult: ScenarioResult{
			Index:        ms.Index,
			Probability:  ms.Probability,
			ShortfallMW:  total,
			HasShortfall: total != 0,
		},
		AreaShortfallMW: perArea,
	}
}

// AggregateMultiArea evaluates every joint scenario and folds them with
// the same sort-by-index, sums-only reduction Aggregate uses, plus a
// per-area LOLE map: an area accrues LOLE for a scenario iff its own
// import-adjusted shortfall is nonzero, regardless of how the other
// areas fared.
func AggregateMultiArea(sys MultiAreaSystem, scenarios []MultiAreaScenario) MultiAreaSummary {
	results := make([]MultiAreaResult, len(scenarios))
	for i, ms := range scenarios {
		results[i] = EvaluateMultiArea(sys, ms)
	}
	slices.SortFunc(results, func(a, b MultiAreaResult) int { return a.Index - b.Index })

	flat := make([]ScenarioResult, len(results))
	for i, r := range results {
		flat[i] = r.ScenarioResult
	}

	areaLOLE := make(map[AreaID]float64, len(sys.Areas))
	for _, area := range sys.sortedAreas() {
		sum := 0.0
		for _, r := range results {
			if r.AreaShortfallMW[area] > 0 {
				sum += r.Probability
			}
		}
		areaLOLE[area] = HoursPerYear * sum
	}

	return MultiAreaSummary{
		Summary:            fold(flat),
		AreaLOLEHoursPerYr: areaLOLE,
	}
}
