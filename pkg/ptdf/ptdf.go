// Package ptdf computes power transfer distribution factors and related
// shift factors by reusing a single B'_r factorization across many
// right-hand sides — the same reduced-matrix machinery DC power flow uses,
// but run once and solved against a column per bus instead of once against
// net injections.
package ptdf

import (
	"github.com/dd0wney/gac/pkg/admittance"
	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/linalg"
	"github.com/dd0wney/gac/pkg/topology"
)

// Engine owns one factorization of B'_r for a fixed slack bus, letting
// callers compute many rows (or the full matrix) without refactoring.
type Engine struct {
	net   *topology.Network
	slack topology.BusID
	index []int          // reduced-row position -> BusID
	pos   map[int]int    // BusID -> reduced-row position
	fact  *linalg.Factorization
}

// NewEngine factors B'_r once for the given slack bus. Callers must call
// Release when done. A slack that is out of range or not on an active
// component resolves to the network's default, same as the power flow
// entry points.
func NewEngine(net *topology.Network, slack topology.BusID) (*Engine, error) {
	slack = net.ResolveSlack(slack, true)
	bprime := admittance.BuildBPrime(net)
	reachable := topology.ReachableSet(net, slack, topology.InService(net))

	index := make([]int, 0, net.NumBuses()-1)
	pos := make(map[int]int, net.NumBuses()-1)
	for i := 0; i < net.NumBuses(); i++ {
		if _, ok := reachable[topology.BusID(i)]; i == int(slack) || !ok {
			continue
		}
		pos[i] = len(index)
		index = append(index, i)
	}

	b := linalg.NewCOOBuilder(len(index))
	for _, i := range index {
		ri := pos[i]
		for k := bprime.RowPtr[i]; k < bprime.RowPtr[i+1]; k++ {
			j := bprime.ColIdx[k]
			if rj, ok := pos[j]; ok {
				b.Add(ri, rj, bprime.Val[k])
			}
		}
	}
	reduced := b.Build(0)

	fact, err := linalg.Factor(reduced, linalg.BackendSparseLU)
	if err != nil {
		return nil, gacerrors.Singular("ptdf.NewEngine")
	}

	return &Engine{net: net, slack: slack, index: index, pos: pos, fact: fact}, nil
}

// Release frees the underlying factorization.
func (e *Engine) Release() { e.fact.Release() }

// Row computes PTDF[*, source]: the branch flows (MW per MW of transfer)
// resulting from +1 MW injected at source and -1 MW withdrawn at the
// engine's slack bus.
func (e *Engine) Row(source topology.BusID) (map[topology.BranchID]float64, error) {
	pr := make([]float64, len(e.index))
	if ri, ok := e.pos[int(source)]; ok {
		pr[ri] = 1.0
	}
	// source == slack: injection and withdrawal cancel, row is all zero.

	thetaR, err := e.fact.Solve(pr)
	if err != nil {
		return nil, err
	}

	angles := make([]float64, e.net.NumBuses())
	for i, bid := range e.index {
		angles[bid] = thetaR[i]
	}
	angles[int(e.slack)] = 0

	row := make(map[topology.BranchID]float64, e.net.NumBranches())
	for i := range e.net.Branches() {
		br := e.net.Branch(topology.BranchID(i))
		if !br.Status {
			continue
		}
		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		xt := br.X * tap
		if xt == 0 {
			continue
		}
		row[topology.BranchID(i)] = (angles[br.From] - angles[br.To]) / xt
	}
	return row, nil
}

// FullMatrix computes PTDF[*, i] for every bus i. Column i is the
// vector of branch flows from unit injection at bus i withdrawn at the
// engine's slack bus.
func (e *Engine) FullMatrix() (map[topology.BusID]map[topology.BranchID]float64, error) {
	out := make(map[topology.BusID]map[topology.BranchID]float64, e.net.NumBuses())
	for i := 0; i < e.net.NumBuses(); i++ {
		bid := topology.BusID(i)
		row, err := e.Row(bid)
		if err != nil {
			return nil, err
		}
		out[bid] = row
	}
	return out, nil
}

// ShiftFactor returns PTDF[branch,from] - PTDF[branch,to], the shift factor
// for a transfer from -> to on branch
func ShiftFactor(fromRow, toRow map[topology.BranchID]float64, branch topology.BranchID) float64 {
	return fromRow[branch] - toRow[branch]
}
