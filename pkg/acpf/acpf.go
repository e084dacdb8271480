// Package acpf implements full AC power flow by Newton-Raphson:
// polar mismatch equations, an analytic Jacobian reusing the same linear
// algebra facade DC-PF and PTDF use, PV/PQ bus classification, and optional
// Q-limit enforcement with a two-iteration re-promotion hysteresis.
package acpf

import (
	"context"
	"math"

	"github.com/dd0wney/gac/pkg/admittance"
	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/linalg"
	"github.com/dd0wney/gac/pkg/topology"
)

// BusKind is a power flow bus's current role. It can move from PV to PQ
// (and back) across iterations when Q-limit enforcement is enabled.
type BusKind uint8

const (
	BusSlack BusKind = iota
	BusPV
	BusPQ
)

// DefaultTol is the default mismatch convergence tolerance.
const DefaultTol = 1e-6

// DefaultMaxIter is the default iteration cap.
const DefaultMaxIter = 25

// qLimitHoldIterations is the number of consecutive stable iterations a
// pinned PQ bus's voltage must sit back across its setpoint before it is
// re-promoted to PV. The two-iteration hold is a documented contract;
// do not change it without a conformance test backing the new value.
const qLimitHoldIterations = 2

// Options configures one Solve call.
type Options struct {
	SlackBus       topology.BusID
	HasSlack       bool
	FlatStart      bool
	Tol            float64
	MaxIter        int
	EnforceQLimits bool
}

func (o Options) tol() float64 {
	if o.Tol > 0 {
		return o.Tol
	}
	return DefaultTol
}

func (o Options) maxIter() int {
	if o.MaxIter > 0 {
		return o.MaxIter
	}
	return DefaultMaxIter
}

// Result holds the solved (or best-effort, if not converged) state.
type Result struct {
	Converged     bool
	Iterations    int
	VoltagePU     []float64
	AngleRad      []float64
	PCalcPU       []float64
	QCalcPU       []float64
	FinalBusKinds []BusKind
}

// Solve runs Newton-Raphson AC power flow. It returns an error for a
// singular Jacobian (gacerrors KindSingular) or a cancelled/expired ctx,
// checked at each outer-iteration boundary; a non-converged iteration
// limit is reported via Result.Converged=false, not an error.
func Solve(ctx context.Context, net *topology.Network, opts Options) (*Result, error) {
	ybus, err := admittance.BuildYBus(net)
	if err != nil {
		return nil, err
	}
	yDense := ybus.Complex.Dense()

	slack := net.ResolveSlack(opts.SlackBus, opts.HasSlack)

	kinds, vSetpoint, qMin, qMax := classifyBuses(net, slack)
	v, theta := initialState(net, opts.FlatStart, kinds, vSetpoint)

	pSched, qSched, qLoad := schedule(net)

	pins := map[topology.BusID]*pinState{}

	var iter int
	var converged bool
	var pCalc, qCalc []float64

	for iter = 0; iter < opts.maxIter(); iter++ {
		if err := ctxErr(ctx, "acpf.Solve"); err != nil {
			return nil, err
		}
		pCalc, qCalc = calcPQ(yDense, v, theta)

		if opts.EnforceQLimits {
			applyQLimitSwitching(kinds, qCalc, qLoad, qMin, qMax, qSched, v, vSetpoint, pins)
		}

		unknowns := buildUnknownIndex(kinds)
		mismatch := buildMismatch(unknowns, pSched, qSched, pCalc, qCalc)

		if maxAbs(mismatch) < opts.tol() {
			converged = true
			break
		}

		jac := buildJacobian(yDense, v, theta, unknowns)
		f, err := linalg.Factor(jac, linalg.BackendSparseLU)
		if err != nil {
			return nil, gacerrors.Singular("acpf.Solve")
		}
		negMismatch := make([]float64, len(mismatch))
		for i, m := range mismatch {
			negMismatch[i] = -m
		}
		dx, err := f.Solve(negMismatch)
		f.Release()
		if err != nil {
			return nil, gacerrors.Singular("acpf.Solve")
		}

		applyUpdate(unknowns, dx, v, theta)
	}

	if !converged {
		pCalc, qCalc = calcPQ(yDense, v, theta)
	}

	return &Result{
		Converged:     converged,
		Iterations:    iter + boolToInt(converged),
		VoltagePU:     v,
		AngleRad:      theta,
		PCalcPU:       pCalc,
		QCalcPU:       qCalc,
		FinalBusKinds: kinds,
	}, nil
}

// ctxErr maps a finished context to the matching analysis error kind.
func ctxErr(ctx context.Context, op string) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return gacerrors.Timeout(op)
	default:
		return gacerrors.Cancelled(op)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// classifyBuses: slack is fixed, PV buses are those
// with an in-service generator carrying a voltage setpoint, everything
// else is PQ.
func classifyBuses(net *topology.Network, slack topology.BusID) (kinds []BusKind, vSetpoint []float64, qMin, qMax []float64) {
	n := net.NumBuses()
	kinds = make([]BusKind, n)
	vSetpoint = make([]float64, n)
	qMin = make([]float64, n)
	qMax = make([]float64, n)

	for i := 0; i < n; i++ {
		bid := topology.BusID(i)
		kinds[i] = BusPQ
		qMinSum, qMaxSum := 0.0, 0.0
		hasSetpoint := false
		for _, gid := range net.GensAt(bid) {
			g := net.Gen(gid)
			if !g.Status {
				continue
			}
			qMinSum += g.QMin
			qMaxSum += g.QMax
			if g.VSetpoint != nil {
				hasSetpoint = true
				vSetpoint[i] = *g.VSetpoint
			}
		}
		// Stored per-unit so limit checks compare directly against the
		// per-unit Q the iteration computes.
		qMin[i] = qMinSum / net.BaseMVA
		qMax[i] = qMaxSum / net.BaseMVA
		if hasSetpoint {
			kinds[i] = BusPV
		}
	}
	kinds[slack] = BusSlack
	if vSetpoint[slack] == 0 {
		vSetpoint[slack] = net.Bus(slack).VoltagePU
		if vSetpoint[slack] == 0 {
			vSetpoint[slack] = 1.0
		}
	}
	return
}

func initialState(net *topology.Network, flatStart bool, kinds []BusKind, vSetpoint []float64) (v, theta []float64) {
	n := net.NumBuses()
	v = make([]float64, n)
	theta = make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case flatStart:
			v[i] = 1.0
			theta[i] = 0
		default:
			bv := net.Bus(topology.BusID(i)).VoltagePU
			if bv == 0 {
				bv = 1.0
			}
			v[i] = bv
			theta[i] = net.Bus(topology.BusID(i)).AngleRad
		}
		if kinds[i] == BusPV || kinds[i] == BusSlack {
			if vSetpoint[i] != 0 {
				v[i] = vSetpoint[i]
			}
		}
	}
	return v, theta
}

// schedule returns per-unit scheduled (net) P and Q injections per bus, and
// per-bus load Q (needed to recover implied generator Q during Q-limit
// checks).
func schedule(net *topology.Network) (pSched, qSched, qLoad []float64) {
	n := net.NumBuses()
	pSched = make([]float64, n)
	qSched = make([]float64, n)
	qLoad = make([]float64, n)
	base := net.BaseMVA

	for i := 0; i < n; i++ {
		bid := topology.BusID(i)
		p, q := 0.0, 0.0
		for _, gid := range net.GensAt(bid) {
			g := net.Gen(gid)
			if !g.Status {
				continue
			}
			p += g.PMW
			q += g.QMVAR
		}
		var ql float64
		for _, lid := range net.LoadsAt(bid) {
			l := net.Load(lid)
			p -= l.PMW
			q -= l.QMVAR
			ql += l.QMVAR
		}
		pSched[i] = p / base
		qSched[i] = q / base
		qLoad[i] = ql / base
	}
	return
}

// calcPQ evaluates P_i = V_i * sum_k V_k (G_ik cos(th_ik) + B_ik sin(th_ik))
// and Q_i = V_i * sum_k V_k (G_ik sin(th_ik) - B_ik cos(th_ik)) for every
// bus.
func calcPQ(y [][]complex128, v, theta []float64) (p, q []float64) {
	n := len(v)
	p = make([]float64, n)
	q = make([]float64, n)
	for i := 0; i < n; i++ {
		var pi, qi float64
		for k := 0; k < n; k++ {
			if y[i][k] == 0 {
				continue
			}
			g, b := real(y[i][k]), imag(y[i][k])
			thIK := theta[i] - theta[k]
			c, s := math.Cos(thIK), math.Sin(thIK)
			pi += v[k] * (g*c + b*s)
			qi += v[k] * (g*s - b*c)
		}
		p[i] = v[i] * pi
		q[i] = v[i] * qi
	}
	return
}

type pinState struct {
	atMin        bool
	stableIters  int
}

// applyQLimitSwitching: PV buses whose implied
// generator Q falls outside [qmin, qmax] are pinned to PQ at the violated
// limit; pinned buses are re-promoted to PV only after qLimitHoldIterations
// consecutive iterations with voltage back across the setpoint.
func applyQLimitSwitching(kinds []BusKind, qCalc, qLoad, qMin, qMax, qSched, v, vSetpoint []float64, pins map[topology.BusID]*pinState) {
	for i := range kinds {
		bid := topology.BusID(i)
		switch kinds[i] {
		case BusPV:
			impliedQGen := qCalc[i] + qLoad[i]
			switch {
			case impliedQGen < qMin[i]:
				kinds[i] = BusPQ
				qSched[i] = qMin[i] - qLoad[i]
				pins[bid] = &pinState{atMin: true}
			case impliedQGen > qMax[i]:
				kinds[i] = BusPQ
				qSched[i] = qMax[i] - qLoad[i]
				pins[bid] = &pinState{atMin: false}
			}
		case BusPQ:
			pin, ok := pins[bid]
			if !ok {
				continue
			}
			crossedBack := (pin.atMin && v[i] <= vSetpoint[i]) || (!pin.atMin && v[i] >= vSetpoint[i])
			if crossedBack {
				pin.stableIters++
			} else {
				pin.stableIters = 0
			}
			if pin.stableIters >= qLimitHoldIterations {
				kinds[i] = BusPV
				delete(pins, bid)
			}
		}
	}
}

// unknownIndex maps a dense Jacobian/mismatch row position to (bus, isVoltage).
type unknownIndex struct {
	bus       int
	isVoltage bool // false: theta unknown; true: V unknown
}

// buildUnknownIndex orders unknowns theta-block first (every non-slack
// bus), then V-block (PQ buses only) Jacobian
// block order [dP/dtheta dP/dv; dQ/dtheta dQ/dv].
func buildUnknownIndex(kinds []BusKind) []unknownIndex {
	var idx []unknownIndex
	for i, k := range kinds {
		if k != BusSlack {
			idx = append(idx, unknownIndex{bus: i, isVoltage: false})
		}
	}
	for i, k := range kinds {
		if k == BusPQ {
			idx = append(idx, unknownIndex{bus: i, isVoltage: true})
		}
	}
	return idx
}

func buildMismatch(unknowns []unknownIndex, pSched, qSched, pCalc, qCalc []float64) []float64 {
	out := make([]float64, len(unknowns))
	for r, u := range unknowns {
		if !u.isVoltage {
			out[r] = pCalc[u.bus] - pSched[u.bus]
		} else {
			out[r] = qCalc[u.bus] - qSched[u.bus]
		}
	}
	return out
}

// buildJacobian assembles the analytic Newton-Raphson Jacobian using the
// standard polar-form partials, densified into a CSR (GAC's facade
// densifies internally for LU regardless).
func buildJacobian(y [][]complex128, v, theta []float64, unknowns []unknownIndex) *linalg.CSR {
	n := len(unknowns)
	pCalc, qCalc := calcPQ(y, v, theta)

	b := linalg.NewCOOBuilder(n)
	for r, ur := range unknowns {
		i := ur.bus
		for c, uc := range unknowns {
			k := uc.bus
			gii, bii := real(y[i][i]), imag(y[i][i])

			var val float64
			switch {
			case !ur.isVoltage && !uc.isVoltage && i == k:
				val = -qCalc[i] - v[i]*v[i]*bii
			case !ur.isVoltage && !uc.isVoltage:
				gik, bik := real(y[i][k]), imag(y[i][k])
				thIK := theta[i] - theta[k]
				val = v[i] * v[k] * (gik*math.Sin(thIK) - bik*math.Cos(thIK))
			case !ur.isVoltage && uc.isVoltage && i == k:
				val = pCalc[i]/v[i] + v[i]*gii
			case !ur.isVoltage && uc.isVoltage:
				gik, bik := real(y[i][k]), imag(y[i][k])
				thIK := theta[i] - theta[k]
				val = v[i] * (gik*math.Cos(thIK) + bik*math.Sin(thIK))
			case ur.isVoltage && !uc.isVoltage && i == k:
				val = pCalc[i] - v[i]*v[i]*gii
			case ur.isVoltage && !uc.isVoltage:
				gik, bik := real(y[i][k]), imag(y[i][k])
				thIK := theta[i] - theta[k]
				val = -v[i] * v[k] * (gik*math.Cos(thIK) + bik*math.Sin(thIK))
			case ur.isVoltage && uc.isVoltage && i == k:
				val = qCalc[i]/v[i] - v[i]*bii
			default: // ur.isVoltage && uc.isVoltage, i != k
				gik, bik := real(y[i][k]), imag(y[i][k])
				thIK := theta[i] - theta[k]
				val = v[i] * (gik*math.Sin(thIK) - bik*math.Cos(thIK))
			}
			if val != 0 {
				b.Add(r, c, val)
			}
		}
	}
	return b.Build(0)
}

func applyUpdate(unknowns []unknownIndex, dx []float64, v, theta []float64) {
	for r, u := range unknowns {
		if u.isVoltage {
			v[u.bus] += dx[r]
		} else {
			theta[u.bus] += dx[r]
		}
	}
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if math.Abs(x) > m {
			m = math.Abs(x)
		}
	}
	return m
}
