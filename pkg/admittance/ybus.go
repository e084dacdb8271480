// Package admittance builds the sparse admittance matrices every power
// flow and OPF formulation assembles from: the complex Y-bus and
// the real DC-approximation B' matrix used by DC-PF, DC-OPF and PTDF.
package admittance

import (
	"math"
	"math/cmplx"

	"github.com/dd0wney/gac/pkg/linalg"
	"github.com/dd0wney/gac/pkg/logging"
	"github.com/dd0wney/gac/pkg/topology"
)

// YBus is the complex bus-admittance matrix: Complex holds G + jB in
// one CSRComplex; no separate real G or B matrices are kept. BusOrdering is the BusID for row/
// column i, which for GAC is always the identity but is carried
// explicitly so downstream code never assumes it.
type YBus struct {
	Complex     *linalg.CSRComplex
	BusOrdering []topology.BusID
}

// BuildYBus assembles the complex bus-admittance matrix: series
// and shunt admittance from every in-service branch (using the standard
// π-model with off-nominal tap on the "from" side), plus shunt
// admittance at shunt buses. Zero-impedance branches are a validation-
// time rejection, not handled here.
func BuildYBus(net *topology.Network) (*YBus, error) {
	n := net.NumBuses()
	b := linalg.NewCOOBuilderComplex(n)

	for i := range net.Branches() {
		br := net.Branch(topology.BranchID(i))
		if !br.Status {
			continue
		}
		addBranchAdmittance(b, br)
	}

	for i := range net.Shunts() {
		sh := net.Shunt(topology.ShuntID(i))
		if !sh.Status {
			continue
		}
		b.Add(int(sh.Bus), int(sh.Bus), complex(sh.G, sh.B))
	}

	ordering := make([]topology.BusID, n)
	for i := range ordering {
		ordering[i] = topology.BusID(i)
	}

	return &YBus{Complex: b.Build(), BusOrdering: ordering}, nil
}

// addBranchAdmittance applies one branch's contribution to the four
// Y-bus entries it touches.
//
//	z = r + jx, y_series = 1/z, b_sh = b/2
//	T = tap * e^{j*shift}
//	Y_ff += y_series/|T|^2 + j*b_sh
//	Y_tt += y_series + j*b_sh
//	Y_ft -= y_series / conj(T)
//	Y_tf -= y_series / T
func addBranchAdmittance(b *linalg.COOBuilderComplex, br *topology.Branch) {
	z := complex(br.R, br.X)
	ySeries := 1 / z
	bSh := complex(0, br.B/2)

	tap := br.Tap
	if tap == 0 {
		tap = 1
	}
	T := complex(tap*math.Cos(br.ShiftRad), tap*math.Sin(br.ShiftRad))
	absT2 := real(T)*real(T) + imag(T)*imag(T)

	from, to := int(br.From), int(br.To)

	b.Add(from, from, ySeries/complex(absT2, 0)+bSh)
	b.Add(to, to, ySeries+bSh)
	b.Add(from, to, -ySeries/cmplx.Conj(T))
	b.Add(to, from, -ySeries/T)
}

// BuildBPrime assembles the real DC-approximation susceptance matrix:
// B'[i,j] = -1/(x*t) for each in-service branch (i,j); the
// diagonal is the negated sum of its row's off-diagonals. Out-of-service
// branches are skipped; branches with |x*t| below the reactance floor are
// skipped with a Warn-level log event rather than an error, since this
// path runs inside DC-PF/PTDF/DC-OPF where such a branch has already
// passed network validation and is treated as a benign near-zero-reactance
// outlier.
func BuildBPrime(net *topology.Network) *linalg.CSR {
	n := net.NumBuses()
	b := linalg.NewCOOBuilder(n)
	log := logging.DefaultLogger()

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
		if math.Abs(xt) < topology.MinReactance {
			log.Warn("skipping near-zero-reactance branch in B' assembly",
				logging.String("branch", br.ID.String()),
				logging.Float64("x_times_tap", xt))
			continue
		}

		val := -1 / xt
		from, to := int(br.From), int(br.To)
		b.Add(from, to, val)
		b.Add(to, from, val)
		b.Add(from, from, -val)
		b.Add(to, to, -val)
	}

	return b.Build(0)
}
