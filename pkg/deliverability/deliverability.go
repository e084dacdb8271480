// Package deliverability computes the PTDF-based Deliverability Score:
// for each bus and each stress case, how much additional MW of
// injection that bus could absorb before any monitored branch's thermal
// rating binds, normalized by the bus's own generation capacity.
package deliverability

import (
	"math"

	"github.com/dd0wney/gac/pkg/ptdf"
	"github.com/dd0wney/gac/pkg/topology"
)

// ptdfFloorAbs is the minimum |PTDF| magnitude a branch must have before
// it is considered binding on a bus's injection
const ptdfFloorAbs = 1e-9

// StressCase is one (scenario, time) snapshot: the branch flow vector the
// Deliverability Score is measured against.
type StressCase struct {
	ID           string
	BranchFlowMW map[topology.BranchID]float64
}

// Engine caches one PTDF row per bus across every stress case scored
// against it ("cache per-bus row across all cases") — callers
// scoring many buses against the same stress cases amortize the
// underlying B'_r factorization through the wrapped ptdf.Engine.
type Engine struct {
	net      *topology.Network
	ptdf     *ptdf.Engine
	rowCache map[topology.BusID]map[topology.BranchID]float64
}

// NewEngine wraps a PTDF engine for the given slack bus. Callers must
// call Release when done.
func NewEngine(net *topology.Network, slack topology.BusID) (*Engine, error) {
	pe, err := ptdf.NewEngine(net, slack)
	if err != nil {
		return nil, err
	}
	return &Engine{net: net, ptdf: pe, rowCache: make(map[topology.BusID]map[topology.BranchID]float64)}, nil
}

// Release frees the underlying PTDF factorization.
func (e *Engine) Release() { e.ptdf.Release() }

func (e *Engine) row(bus topology.BusID) (map[topology.BranchID]float64, error) {
	if r, ok := e.rowCache[bus]; ok {
		return r, nil
	}
	r, err := e.ptdf.Row(bus)
	if err != nil {
		return nil, err
	}
	e.rowCache[bus] = r
	return r, nil
}

// busCapacityMW sums PMax over every in-service generator at bus, the
// P_max(i) normalizer ΔP_max is divided by.
func busCapacityMW(net *topology.Network, bus topology.BusID) float64 {
	total := 0.0
	for _, gid := range net.GensAt(bus) {
		g := net.Gen(gid)
		if g.Status {
			total += g.PMax
		}
	}
	return total
}

// scoreOne computes DS^k_i for one bus and one stress case: the
// largest ΔP that can be injected at bus before any branch with
// a non-negligible PTDF sensitivity to it would exceed its thermal
// rating, normalized to [0, 1] by the bus's own capacity.
func scoreOne(net *topology.Network, row map[topology.BranchID]float64, flows map[topology.BranchID]float64, pmax float64) float64 {
	if pmax == 0 {
		return 0
	}

	deltaMax := math.Inf(1)
	constrained := false
	found := false

	for i := range net.Branches() {
		brid := topology.BranchID(i)
		br := net.Branch(brid)
		if !br.Status {
			continue
		}
		coef := row[brid]
		if math.Abs(coef) < ptdfFloorAbs {
			continue
		}

		rating := br.EffectiveRateMVA()
		if math.IsInf(rating, 1) {
			continue
		}
		f := flows[brid]
		constrained = true

		// |f + coef*dP| <= rating  <=>  dP between (-rating-f)/coef and
		// (rating-f)/coef (bounds swap order when coef < 0).
		boundA := (rating - f) / coef
		boundB := (-rating - f) / coef

		for _, bound := range [2]float64{boundA, boundB} {
			if bound > 0 && bound < deltaMax {
				deltaMax = bound
				found = true
			}
		}
	}

	if !constrained {
		// No branch limit couples to this bus at all; injection is
		// unconstrained and the score clamps to its ceiling.
		return 1
	}
	if !found {
		return 0
	}

	ds := deltaMax / pmax
	if ds < 0 {
		ds = 0
	}
	if ds > 1 {
		ds = 1
	}
	return ds
}

// Score computes DS_mean(i) over the given stress cases as a plain
// arithmetic mean; a weighted mean is a future extension, not
// implemented here.
func (e *Engine) Score(bus topology.BusID, cases []StressCase) (float64, error) {
	if len(cases) == 0 {
		return 0, nil
	}

	row, err := e.row(bus)
	if err != nil {
		return 0, err
	}
	pmax := busCapacityMW(e.net, bus)

	sum := 0.0
	for _, c := range cases {
		sum += scoreOne(e.net, row, c.BranchFlowMW, pmax)
	}
	return sum / float64(len(cases)), nil
}

// Status bands a mean Deliverability Score into a presentation label.
// This is a display convenience only; it never changes the score
// itself.
func Status(dsMean float64) string {
	pct := dsMean * 100
	switch {
	case pct >= 90:
		return "Excellent"
	case pct >= 80:
		return "Good"
	case pct >= 70:
		return "Fair"
	case pct >= 60:
		return "Poor"
	default:
		return "Critical"
	}
}

// CaseScore is one (bus, stress case) score with the capacity it was
// normalized by.
type CaseScore struct {
	Bus     topology.BusID
	CaseID  string
	DS      float64
	PMaxMW  float64
}

// ScoreSet is the full deliverability surface for a bus set: every
// per-case score plus the per-bus arithmetic mean.
type ScoreSet struct {
	PerBusPerCase []CaseScore
	PerBusMean    map[topology.BusID]float64
}

// ScoreCase computes DS for a single bus under a single stress case.
func (e *Engine) ScoreCase(bus topology.BusID, c StressCase) (CaseScore, error) {
	row, err := e.row(bus)
	if err != nil {
		return CaseScore{}, err
	}
	pmax := busCapacityMW(e.net, bus)
	return CaseScore{
		Bus:    bus,
		CaseID: c.ID,
		DS:     scoreOne(e.net, row, c.BranchFlowMW, pmax),
		PMaxMW: pmax,
	}, nil
}

// ScoreAll scores every bus against every stress case. Buses and cases
// are walked in the order given, so the PerBusPerCase table is stable
// for identical inputs.
func (e *Engine) ScoreAll(buses []topology.BusID, cases []StressCase) (*ScoreSet, error) {
	set := &ScoreSet{PerBusMean: make(map[topology.BusID]float64, len(buses))}
	for _, bus := range buses {
		sum := 0.0
		for _, c := range cases {
			cs, err := e.ScoreCase(bus, c)
			if err != nil {
				return nil, err
			}
			set.PerBusPerCase = append(set.PerBusPerCase, cs)
			sum += cs.DS
		}
		if len(cases) > 0 {
			set.PerBusMean[bus] = sum / float64(len(cases))
		}
	}
	return set, nil
}
