// Package opf builds the variable-and-constraint IR shared by the three
// OPF formulations and translates it into a Solver Bridge problem
// batch. DC-OPF, SOCP-OPF and full NLP-OPF differ only in which fields of
// the IR they populate and how the returned solution is interpreted — the
// wire protocol and subprocess lifecycle are entirely pkg/solverbridge's.
package opf

import (
	"context"

	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/solverbridge"
	"github.com/dd0wney/gac/pkg/topology"
)

// Formulation selects which OPF variant the bridge problem is tagged for.
// The solver subprocess itself is external and is expected to
// dispatch on this the same way GAC's own caller does.
type Formulation uint8

const (
	FormulationDC Formulation = iota
	FormulationSOCP
	FormulationNLP
)

// Options configures one OPF solve.
type Options struct {
	Formulation        Formulation
	Tolerance          float64
	MaxIter            uint32
	SlackBus           topology.BusID
	HasSlack           bool
	PiecewiseSegments  int // passed to linearizeCost (default 4); no current cost reduction uses it
}

func (o Options) piecewiseSegments() int {
	if o.PiecewiseSegments > 0 {
		return o.PiecewiseSegments
	}
	return 4
}

// Result is the solved OPF outcome: generator dispatch, bus voltages/
// angles, LMPs (DC-OPF) or full AC quantities (SOCP/NLP), and branch
// flows, translated back from the solver's bus/gen/branch-indexed arrays
// into Network dense IDs.
type Result struct {
	ObjectiveDollarsPerHr float64
	GenMW                 map[topology.GenID]float64
	GenMVAR               map[topology.GenID]float64
	BusVoltagePU          map[topology.BusID]float64
	BusAngleRad           map[topology.BusID]float64
	BusLMP                map[topology.BusID]float64
	BranchFlowMW          map[topology.BranchID]float64
	Iterations            int
	SolveTimeMS           float64
}

// Solve builds the problem batch for net under opts, calls the bridge,
// and translates the returned solution. Infeasible/Unbounded/Timeout
// propagate as typed errors; infeasible results
// carry the solver's reported binding constraint name as the error's
// Detail when available.
func Solve(ctx context.Context, net *topology.Network, opts Options, bridge *solverbridge.Bridge) (*Result, error) {
	slack := net.ResolveSlack(opts.SlackBus, opts.HasSlack)

	problem := BuildProblem(net, slack, opts)

	sol, err := bridge.Call(ctx, problem)
	if err != nil {
		return nil, err
	}

	switch sol.Status {
	case solverbridge.StatusOptimal:
		return translateSolution(net, problem, sol), nil
	case solverbridge.StatusInfeasible:
		return nil, gacerrors.Infeasible("opf.Solve", sol.ErrorMessage)
	case solverbridge.StatusUnbounded:
		return nil, gacerrors.Unbounded("opf.Solve")
	case solverbridge.StatusTimeout:
		return nil, gacerrors.Timeout("opf.Solve")
	case solverbridge.StatusIterationLimit:
		return nil, gacerrors.NotConverged("opf.Solve")
	default:
		return nil, gacerrors.SolverProtocol("opf.Solve", gacerrors.ErrSubprocessExit)
	}
}

// BuildProblem translates a Network and slack choice into a columnar
// problem batch, applying the piecewise-linearized cost for every
// generator's CostModel
func BuildProblem(net *topology.Network, slack topology.BusID, opts Options) *solverbridge.Problem {
	p := &solverbridge.Problem{
		Meta: solverbridge.Meta{
			ProtocolVersion: solverbridge.ProtocolVersion,
			BaseMVA:         net.BaseMVA,
			Tolerance:       opts.Tolerance,
			MaxIter:         opts.MaxIter,
		},
	}

	for i := range net.Buses() {
		bid := topology.BusID(i)
		bus := net.Bus(bid)
		busType := solverbridge.BusTypePQ
		if bid == slack {
			busType = solverbridge.BusTypeSlack
		} else if len(net.GensAt(bid)) > 0 {
			busType = solverbridge.BusTypePV
		}

		var pLoad, qLoad float64
		for _, lid := range net.LoadsAt(bid) {
			l := net.Load(lid)
			pLoad += l.PMW
			qLoad += l.QMVAR
		}

		p.Buses = append(p.Buses, solverbridge.BusRow{
			BusID:    uint32(bid),
			VMin:     bus.VMin,
			VMax:     bus.VMax,
			PLoad:    pLoad,
			QLoad:    qLoad,
			BusType:  busType,
			VMagInit: orDefault(bus.VoltagePU, 1.0),
			VAngInit: bus.AngleRad,
		})
	}

	for i := range net.Gens() {
		gid := topology.GenID(i)
		g := net.Gen(gid)
		if !g.Status {
			continue
		}
		c0, c1, c2 := linearizeCost(g.Cost, opts.piecewiseSegments())
		p.Gens = append(p.Gens, solverbridge.GenRow{
			GenID:  uint32(gid),
			BusID:  uint32(g.Bus),
			PMin:   g.PMin,
			PMax:   g.PMax,
			QMin:   g.QMin,
			QMax:   g.QMax,
			CostC0: c0,
			CostC1: c1,
			CostC2: c2,
		})
	}

	for i := range net.Branches() {
		brid := topology.BranchID(i)
		br := net.Branch(brid)
		if !br.Status {
			continue
		}
		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		p.Branches = append(p.Branches, solverbridge.BranchRow{
			BranchID: uint32(brid),
			From:     uint32(br.From),
			To:       uint32(br.To),
			R:        br.R,
			X:        br.X,
			B:        br.B,
			Rate:     br.EffectiveRateMVA(),
			Tap:      tap,
			Shift:    br.ShiftRad,
		})
	}

	return p
}

// linearizeCost reduces a CostModel to the (c0, c1, c2) triple the wire
// protocol carries. Polynomial costs pass through as their c0, c1, c2
// coefficients; any coefficient beyond c2 is dropped, not approximated.
// Piecewise-linear curves are replaced by their least-squares quadratic
// through the knots — the bridge's problem schema has no room for more
// than 3 cost coefficients. segments does not affect either reduction.
func linearizeCost(cost topology.CostModel, segments int) (c0, c1, c2 float64) {
	switch cost.Kind {
	case topology.CostPolynomial:
		if len(cost.Poly) > 0 {
			c0 = cost.Poly[0]
		}
		if len(cost.Poly) > 1 {
			c1 = cost.Poly[1]
		}
		if len(cost.Poly) > 2 {
			c2 = cost.Poly[2]
		}
		return
	case topology.CostPiecewiseLinear:
		return fitQuadratic(cost.PWL, segments)
	default:
		return 0, 0, 0
	}
}

// fitQuadratic least-squares fits a quadratic through the piecewise-linear
// curve's explicit knots only; segments adds no sample points.
func fitQuadratic(points []topology.PWLPoint, segments int) (c0, c1, c2 float64) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	if len(points) == 1 {
		return points[0].CostHr, 0, 0
	}

	// Normal equations for y = c0 + c1*x + c2*x^2 over the knots (already
	// at most a handful per curve; segments bounds how many evaluation
	// points a Polynomial source would have generated, not how many knots
	// a PiecewiseLinear curve actually has).
	var sx, sx2, sx3, sx4, sy, sxy, sx2y float64
	n := float64(len(points))
	for _, pt := range points {
		x, y := pt.PMW, pt.CostHr
		x2 := x * x
		sx += x
		sx2 += x2
		sx3 += x2 * x
		sx4 += x2 * x2
		sy += y
		sxy += x * y
		sx2y += x2 * y
	}

	a := [3][4]float64{
		{n, sx, sx2, sy},
		{sx, sx2, sx3, sxy},
		{sx2, sx3, sx4, sx2y},
	}
	solved := solve3x3(a)
	return solved[0], solved[1], solved[2]
}

// solve3x3 Gaussian-eliminates a 3x3 augmented system. Used only for the
// tiny cost-curve fit above; the real sparse solves go through pkg/linalg.
func solve3x3(a [3][4]float64) [3]float64 {
	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if abs(a[r][col]) > abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		if abs(a[col][col]) < 1e-15 {
			continue
		}
		for r := 0; r < 3; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for c := col; c < 4; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		if abs(a[i][i]) > 1e-15 {
			out[i] = a[i][3] / a[i][i]
		}
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// translateSolution maps the solution batch back onto Network dense IDs
// through the problem's own row order rather than raw array position:
// BuildProblem emits one bus row per bus, but skips offline generators
// and out-of-service branches, so sol.Gens[i]/sol.Branches[i] line up
// with problem.Gens[i].GenID/problem.Branches[i].BranchID, not with i
// itself.
func translateSolution(net *topology.Network, problem *solverbridge.Problem, sol *solverbridge.Solution) *Result {
	res := &Result{
		ObjectiveDollarsPerHr: sol.Objective,
		GenMW:                 make(map[topology.GenID]float64),
		GenMVAR:               make(map[topology.GenID]float64),
		BusVoltagePU:          make(map[topology.BusID]float64),
		BusAngleRad:           make(map[topology.BusID]float64),
		BusLMP:                make(map[topology.BusID]float64),
		BranchFlowMW:          make(map[topology.BranchID]float64),
		Iterations:            int(sol.Iterations),
		SolveTimeMS:           sol.SolveTimeMS,
	}

	for i, br := range sol.Buses {
		if i >= net.NumBuses() {
			break
		}
		bid := topology.BusID(i)
		res.BusVoltagePU[bid] = br.VMag
		res.BusAngleRad[bid] = br.VAng
		res.BusLMP[bid] = br.LMP
	}
	for i, gr := range sol.Gens {
		if i >= len(problem.Gens) {
			break
		}
		gid := topology.GenID(problem.Gens[i].GenID)
		res.GenMW[gid] = gr.P
		res.GenMVAR[gid] = gr.Q
	}
	for i, brr := range sol.Branches {
		if i >= len(problem.Branches) {
			break
		}
		bid := topology.BranchID(problem.Branches[i].BranchID)
		res.BranchFlowMW[bid] = brr.PFrom
	}
	return res
}
