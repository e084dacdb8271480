package linalg

import (
	"fmt"

	"github.com/dd0wney/gac/pkg/gacerrors"
	"gonum.org/v1/gonum/mat"
)

// SingularThreshold is the pivot magnitude below which a factorization is
// declared Singular.
const SingularThreshold = 1e-14

// BackendKind tags which concrete backend a Factorization was built with.
// GAC dispatches between the two with a tagged variant rather than an
// inheritance hierarchy
type BackendKind uint8

const (
	// BackendSparseLU factors a general (possibly asymmetric) matrix,
	// used by DC-PF/PTDF's B'_r and by Newton-Raphson's Jacobian.
	BackendSparseLU BackendKind = iota
	// BackendCholeskyLDLT factors a symmetric positive-definite matrix.
	// Reserved for callers that know their system is SPD (e.g. certain
	// SOCP-OPF KKT reductions); falls back identically to LU otherwise.
	BackendCholeskyLDLT
)

// Factorization owns the factored form of a matrix and reuses it across
// multiple Solve calls with different right-hand sides — the critical
// path for PTDF columns and N-1 branch loops. The caller must call
// Release when done; Release is idempotent and safe to defer.
type Factorization struct {
	n       int
	kind    BackendKind
	lu      mat.LU
	chol    mat.Cholesky
	spd     bool
	released bool
}

// Factor builds a Factorization over m using the requested backend. It
// returns a gacerrors KindSingular error if any pivot magnitude falls
// below SingularThreshold — the caller reports this as a topological
// problem (islanded network, absent slack)
func Factor(m *CSR, kind BackendKind) (*Factorization, error) {
	dense := mat.NewDense(m.N, m.N, nil)
	for i := 0; i < m.N; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			dense.Set(i, m.ColIdx[k], m.Val[k])
		}
	}

	f := &Factorization{n: m.N, kind: kind}

	if kind == BackendCholeskyLDLT {
		var sym mat.SymDense
		if symView, ok := toSym(dense, m.N); ok {
			sym = *symView
			if f.chol.Factorize(&sym) {
				f.spd = true
				return f, nil
			}
		}
		// Not SPD: fall through to LU, matching the documented
		// "falls back identically to LU otherwise".
		kind = BackendSparseLU
		f.kind = kind
	}

	f.lu.Factorize(dense)
	if !pivotsAboveThreshold(&f.lu, m.N) {
		return nil, gacerrors.Singular("linalg.Factor")
	}
	return f, nil
}

func toSym(d *mat.Dense, n int) (*mat.SymDense, bool) {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := d.At(i, j), d.At(j, i)
			if diffAbs(a, b) > 1e-9*(1+absf(a)) {
				return nil, false
			}
			sym.SetSym(i, j, a)
		}
	}
	return sym, true
}

func diffAbs(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

func absf(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}

func pivotsAboveThreshold(lu *mat.LU, n int) bool {
	var u mat.TriDense
	lu.UTo(&u)
	for i := 0; i < n; i++ {
		if absf(u.At(i, i)) < SingularThreshold {
			return false
		}
	}
	return true
}

// Solve solves A·x = b against the stored factorization and returns x.
func (f *Factorization) Solve(b []float64) ([]float64, error) {
	if f.released {
		return nil, fmt.Errorf("linalg: Solve called after Release")
	}
	rhs := mat.NewVecDense(f.n, b)
	var x mat.VecDense

	if f.spd {
		if err := f.chol.SolveVecTo(&x, rhs); err != nil {
			return nil, gacerrors.Singular("linalg.Solve")
		}
	} else {
		if err := f.lu.SolveVecTo(&x, false, rhs); err != nil {
			return nil, gacerrors.Singular("linalg.Solve")
		}
	}

	out := make([]float64, f.n)
	for i := 0; i < f.n; i++ {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// Release frees the factorization's backing storage. Scoped-acquisition
// callers should `defer f.Release()` immediately after a successful
// Factor, guaranteeing release on every exit path.
func (f *Factorization) Release() {
	f.released = true
	f.lu = mat.LU{}
	f.chol = mat.Cholesky{}
}
