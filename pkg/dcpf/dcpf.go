// Package dcpf implements the DC power flow approximation: build
// B', solve a single reduced linear system for bus angles, and derive
// branch flows from angle differences. This is the fast linear path PTDF
// and DC-OPF's constraint Jacobian reuse directly.
package dcpf

import (
	"github.com/dd0wney/gac/pkg/admittance"
	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/linalg"
	"github.com/dd0wney/gac/pkg/logging"
	"github.com/dd0wney/gac/pkg/topology"
)

// Result holds the solved angles and derived branch flows of one DC power
// flow run.
type Result struct {
	Slack       topology.BusID
	AngleRad    []float64 // indexed by BusID
	BranchFlows []float64 // MW, indexed by BranchID; 0 for out-of-service branches
	Islanded    bool       // true if any non-slack component was left at angle 0
}

// Options configures one Solve call. SlackBus is optional; zero value
// (BusID(0)) is only treated as "unset" via the HasSlack flag, since 0 is
// also a valid bus id.
type Options struct {
	SlackBus    topology.BusID
	HasSlack    bool
	BackendKind linalg.BackendKind
}

// Solve runs DC power flow. It never returns an error for a
// well-formed, validated Network except when the reduced B'_r is
// numerically singular (gacerrors KindSingular) — typically an islanded
// component that happens to contain the chosen slack's row but no path to
// it, which validation does not catch.
func Solve(net *topology.Network, opts Options) (*Result, error) {
	slack := net.ResolveSlack(opts.SlackBus, opts.HasSlack)

	bprime := admittance.BuildBPrime(net)
	n := net.NumBuses()

	reachable := topology.ReachableSet(net, slack, func(b topology.BranchID) bool {
		return net.Branch(b).Status
	})

	reduced, index := reduceMatrix(bprime, int(slack), reachable)
	pr := make([]float64, len(index))
	for i, bid := range index {
		pr[i] = net.NetInjectionMW(topology.BusID(bid)) / net.BaseMVA
	}

	angles := make([]float64, n)
	islanded := len(reachable) != n
	if islanded {
		logging.Warn("DisconnectedIslandsWithoutSlack",
			logging.String("op", "dcpf.Solve"),
			logging.Int("unreachable_buses", n-len(reachable)))
	}

	if len(index) > 0 {
		backend := opts.BackendKind
		f, err := linalg.Factor(reduced, backend)
		if err != nil {
			return nil, gacerrors.Singular("dcpf.Solve")
		}
		defer f.Release()

		thetaR, err := f.Solve(pr)
		if err != nil {
			return nil, err
		}
		for i, bid := range index {
			angles[bid] = thetaR[i]
		}
	}
	angles[int(slack)] = 0

	flows := branchFlows(net, angles)

	return &Result{
		Slack:       slack,
		AngleRad:    angles,
		BranchFlows: flows,
		Islanded:    islanded,
	}, nil
}

// reduceMatrix deletes the slack's row/column and restricts to buses
// reachable from the slack, returning the reduced CSR and the dense-index
// mapping back to original BusIDs (slack excluded).
func reduceMatrix(m *linalg.CSR, slack int, reachable map[topology.BusID]struct{}) (*linalg.CSR, []int) {
	index := make([]int, 0, m.N-1)
	pos := make(map[int]int, m.N-1)
	for i := 0; i < m.N; i++ {
		if _, ok := reachable[topology.BusID(i)]; i == slack || !ok {
			continue
		}
		pos[i] = len(index)
		index = append(index, i)
	}

	b := linalg.NewCOOBuilder(len(index))
	for _, i := range index {
		ri := pos[i]
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			j := m.ColIdx[k]
			rj, ok := pos[j]
			if !ok {
				continue
			}
			b.Add(ri, rj, m.Val[k])
		}
	}
	return b.Build(0), index
}

// branchFlows computes f_ij = ((theta_i - theta_j) - shift_ij) / (x*t) *
// baseMVA for every in-service branch.
func branchFlows(net *topology.Network, angles []float64) []float64 {
	flows := make([]float64, net.NumBranches())
	for i := range net.Branches() {
		br := net.Branch(topology.BranchID(i))
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
		dTheta := angles[br.From] - angles[br.To]
		flows[i] = ((dTheta - br.ShiftRad) / xt) * net.BaseMVA
	}
	return flows
}
