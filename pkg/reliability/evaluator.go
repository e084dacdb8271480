// Package reliability implements the Scenario Evaluator and
// Reliability Aggregator: for each outage scenario, determine
// which load is deliverable from online generation through online
// branches only, then fold every scenario's shortfall into LOLE/EUE
// across the whole run.
package reliability

import (
	"strconv"

	"github.com/dd0wney/gac/pkg/outage"
	"github.com/dd0wney/gac/pkg/pools"
	"github.com/dd0wney/gac/pkg/topology"
)

// HoursPerYear scales per-scenario probabilities up to annual LOLE/EUE.
// 365.25 days accounts for leap years.
const HoursPerYear = 365.25 * 24.0

// ScenarioResult is one scenario's evaluated outcome: enough to fold into
// the aggregate without re-touching the Network.
type ScenarioResult struct {
	Index         int
	Probability   float64
	ShortfallMW   float64
	HasShortfall  bool
}

// Evaluate runs one scenario against net. The bus-reach
// scratch set is drawn from a pool so repeated calls across many
// scenarios don't allocate a fresh map per call; see EvaluateScratch for
// the explicit-reuse form a hot loop should prefer.
func Evaluate(net *topology.Network, s outage.Scenario) ScenarioResult {
	scratch := pools.GetStringMap()
	defer pools.PutStringMap(scratch)
	return evaluate(net, s, scratch)
}

// EvaluateScratch runs one scenario reusing a caller-owned scratch map
// across many calls (an arena-reset pattern: the map is
// cleared and reused rather than reallocated between scenarios).
func EvaluateScratch(net *topology.Network, s outage.Scenario, scratch map[string]any) ScenarioResult {
	clear(scratch)
	return evaluate(net, s, scratch)
}

func evaluate(net *topology.Network, s outage.Scenario, scratch map[string]any) ScenarioResult {
	return evaluateAdjusted(net, s, scratch, 0, nil)
}

// evaluateAdjusted is evaluate with two knobs the ELCC search needs:
// extraLoadMW is added to the scenario's scaled demand, and generators
// in exclude are treated as offline on top of the scenario's own outage
// draw.
func evaluateAdjusted(net *topology.Network, s outage.Scenario, scratch map[string]any, extraLoadMW float64, exclude map[topology.GenID]bool) ScenarioResult {
	online := func(b topology.BranchID) bool {
		return net.Branch(b).Status && !s.OfflineBranches[b]
	}

	loadBuses := make(map[topology.BusID]struct{})
	for i := range net.Buses() {
		bid := topology.BusID(i)
		if len(net.LoadsAt(bid)) > 0 {
			loadBuses[bid] = struct{}{}
		}
	}

	// scratch caches one BFS result per distinct online-generator bus:
	// several generators at the same bus share the same reach set, and
	// this arena-style map is reset by the caller between scenarios
	// rather than reallocated.
	reachesLoadFromBus := func(bus topology.BusID) bool {
		key := strconv.FormatUint(uint64(bus), 10)
		if v, ok := scratch[key]; ok {
			return v.(bool)
		}
		reach := topology.ReachableSet(net, bus, online)
		reachesLoad := false
		for bid := range reach {
			if _, ok := loadBuses[bid]; ok {
				reachesLoad = true
				break
			}
		}
		scratch[key] = reachesLoad
		return reachesLoad
	}

	deliverable := 0.0
	for i := range net.Gens() {
		gid := topology.GenID(i)
		g := net.Gen(gid)
		if !g.Status || s.OfflineGenerators[gid] || exclude[gid] {
			continue
		}
		if reachesLoadFromBus(g.Bus) {
			deliverable += g.PMax
		}
	}

	loadTotal := net.TotalLoadMW()*s.DemandScale + extraLoadMW
	shortfall := loadTotal - deliverable
	if shortfall < 0 {
		shortfall = 0
	}

	return ScenarioResult{
		Index:        s.Index,
		Probability:  s.Probability,
		ShortfallMW:  shortfall,
		HasShortfall: shortfall != 0,
	}
}
