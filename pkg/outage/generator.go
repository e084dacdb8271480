// Package outage generates deterministic Monte Carlo outage scenarios:
// for each scenario, independently sample every generator and
// branch against its failure rate and draw a demand scaling factor, all
// from one linear-congruential PRNG so that two runs sharing (seed,
// num_scenarios, rates) produce bit-identical scenarios.
package outage

import (
	"hash/fnv"
	"encoding/binary"

	"github.com/dd0wney/gac/pkg/topology"
)

// Scenario is one Monte Carlo draw: which generators and branches are
// offline, the demand scaling factor applied to every load, and the
// scenario's probability weight (1/N in v0).
type Scenario struct {
	Index             int
	OfflineGenerators map[topology.GenID]bool
	OfflineBranches   map[topology.BranchID]bool
	DemandScale       float64
	Probability       float64
}

// Rates configures per-scenario failure probabilities and demand spread.
type Rates struct {
	GenFailureRate    float64
	BranchFailureRate float64
	DemandMin         float64 // default 0.8
	DemandMax         float64 // default 1.2
}

func (r Rates) demandRange() (lo, hi float64) {
	lo, hi = r.DemandMin, r.DemandMax
	if lo == 0 && hi == 0 {
		return 0.8, 1.2
	}
	return lo, hi
}

// lcgMultiplier and lcgIncrement are the classic glibc-style LCG
// constants, matching the outage generator this one is grounded on.
// Go's unsigned integer overflow is defined and wraps, giving the same
// semantics as the original's wrapping_mul/wrapping_add.
const (
	lcgMultiplier uint64 = 1103515245
	lcgIncrement  uint64 = 12345
)

// rng is the LCG state machine. Draw returns a uniform float64 in [0, 1).
type rng struct {
	state uint64
}

// seedState hashes seed into an initial LCG state. The exact hash
// algorithm is not a compatibility surface (only draws from a fixed seed
// need to reproduce within this implementation, not across languages);
// FNV-1a is used for a well-distributed, dependency-free seed expansion.
func seedState(seed uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	return h.Sum64()
}

func newRNG(seed uint64) *rng {
	return &rng{state: seedState(seed)}
}

func (r *rng) draw() float64 {
	r.state = r.state*lcgMultiplier + lcgIncrement
	return float64((r.state>>16)&0x7fff) / 32768.0
}

// Generate produces numScenarios deterministic scenarios for net under
// rates. Each scenario advances the shared PRNG state by
// exactly len(net.Gens()) + len(net.Branches()) + 1 draws, so scenario i+1
// always starts from the same state regardless of what downstream code
// does with scenario i's result.
func Generate(net *topology.Network, seed uint64, numScenarios int, rates Rates) []Scenario {
	r := newRNG(seed)
	demandLo, demandHi := rates.demandRange()

	scenarios := make([]Scenario, numScenarios)
	for s := 0; s < numScenarios; s++ {
		offlineGens := make(map[topology.GenID]bool)
		for i := range net.Gens() {
			if r.draw() < rates.GenFailureRate {
				offlineGens[topology.GenID(i)] = true
			}
		}

		offlineBranches := make(map[topology.BranchID]bool)
		for i := range net.Branches() {
			if r.draw() < rates.BranchFailureRate {
				offlineBranches[topology.BranchID(i)] = true
			}
		}

		demandR := r.draw()
		demandScale := demandLo + (demandHi-demandLo)*demandR

		scenarios[s] = Scenario{
			Index:             s,
			OfflineGenerators: offlineGens,
			OfflineBranches:   offlineBranches,
			DemandScale:       demandScale,
			Probability:       1.0 / float64(numScenarios),
		}
	}
	return scenarios
}

// HasCapacity reports whether a scenario's online generation can in
// principle cover its scaled demand, ignoring network topology — a cheap
// pre-check the Scenario Evaluator can use to skip the BFS
// deliverability pass for scenarios that are infeasible on capacity alone
//.
func (s Scenario) HasCapacity(net *topology.Network, totalLoadMW float64) bool {
	available := 0.0
	for i := range net.Gens() {
		gid := topology.GenID(i)
		g := net.Gen(gid)
		if !g.Status || s.OfflineGenerators[gid] {
			continue
		}
		available += g.PMax
	}
	return available >= totalLoadMW*s.DemandScale
}
