// Package topology defines the Network graph data model: buses, branches,
// generators, loads, and shunts addressed by dense, stable handles, plus
// the connectivity queries every assembly and solve path in GAC builds on.
//
// A Network is an immutable value once built. Analyses hold it by
// read-only reference and never mutate it; solved quantities are written
// into result objects owned by the caller, never back into the Network.
package topology

import (
	"fmt"
	"math"
)

// BusID, BranchID, GenID, LoadID and ShuntID are dense handles, unique
// within one Network and stable across every result derived from it. They
// double as the row/column index into every matrix built over the
// Network: bus ordering is simply BusID order, 0..NumBuses()-1.
type BusID uint32
type BranchID uint32
type GenID uint32
type LoadID uint32
type ShuntID uint32

// ElementType distinguishes a transmission line from a transformer. Both
// share the same branch fields; ElementType only affects how downstream
// tooling labels the element, never the admittance math (tap=1, shift=0
// degenerates a transformer branch into a plain line).
type ElementType uint8

const (
	ElementLine ElementType = iota
	ElementTransformer
)

func (t ElementType) String() string {
	if t == ElementTransformer {
		return "transformer"
	}
	return "line"
}

// CostKind tags the variant held by a Gen's CostModel.
type CostKind uint8

const (
	CostNone CostKind = iota
	CostPolynomial
	CostPiecewiseLinear
)

// PWLPoint is one knot of a piecewise-linear cost curve, ordered by P.
type PWLPoint struct {
	PMW    float64
	CostHr float64 // $/hr at this output level
}

// CostModel is a tagged union over {NoCost, Polynomial, PiecewiseLinear}.
// Polynomial coefficients are ordered [c0, c1, c2, ...] for
// c0 + c1*p + c2*p^2 + .... PiecewiseLinear points must be sorted by PMW
// ascending; this is enforced at validation time, not construction time.
type CostModel struct {
	Kind  CostKind
	Poly  []float64
	PWL   []PWLPoint
}

// NoCost returns a CostModel with no generation cost.
func NoCost() CostModel { return CostModel{Kind: CostNone} }

// Polynomial returns a polynomial CostModel with coefficients [c0, c1, ...].
func Polynomial(coeffs ...float64) CostModel {
	return CostModel{Kind: CostPolynomial, Poly: append([]float64(nil), coeffs...)}
}

// PiecewiseLinear returns a piecewise-linear CostModel over the given
// (p, cost) knots.
func PiecewiseLinear(points ...PWLPoint) CostModel {
	return CostModel{Kind: CostPiecewiseLinear, PWL: append([]PWLPoint(nil), points...)}
}

// Bus is an electrical node. VoltagePU and AngleRad are initial estimates
// consumed by solvers; solved values are written into result objects, not
// back into the Bus.
type Bus struct {
	ID        BusID
	SourceID  string
	Name      string
	BaseKV    float64
	VoltagePU float64
	AngleRad  float64
	VMin      float64
	VMax      float64
	Area      int
	Zone      int
}

// Branch is a two-terminal line or transformer.
type Branch struct {
	ID          BranchID
	SourceID    string
	From        BusID
	To          BusID
	R           float64 // p.u.
	X           float64 // p.u.
	B           float64 // shunt susceptance, p.u. (full, split in half at each end)
	Tap         float64 // off-nominal tap ratio, > 0 (1.0 = nominal)
	ShiftRad    float64 // phase shift, radians
	RateAMVA    *float64
	RateBMVA    *float64
	RateCMVA    *float64
	Status      bool
	ElementType ElementType
}

// EffectiveRateMVA returns the branch's normal (RateA) thermal limit, or
// +Inf if unspecified.
func (b *Branch) EffectiveRateMVA() float64 {
	if b.RateAMVA != nil {
		return *b.RateAMVA
	}
	return math.Inf(1)
}

// Gen is a generator (or synchronous condenser, when IsSynchronousCondenser
// is true and PMW/PMax are pinned near zero).
type Gen struct {
	ID                     GenID
	SourceID               string
	Bus                    BusID
	Status                 bool
	PMW                    float64
	QMVAR                  float64
	PMin                   float64
	PMax                   float64
	QMin                   float64
	QMax                   float64
	VSetpoint              *float64
	Cost                   CostModel
	IsSynchronousCondenser bool
}

// Load is treated as constant PQ at its bus. Negative P/Q is permitted
// (negative demand is treated as negative load).
type Load struct {
	ID       LoadID
	SourceID string
	Bus      BusID
	PMW      float64
	QMVAR    float64
}

// Shunt contributes a fixed g+jb admittance to the Y-bus diagonal at its
// bus when Status is true.
type Shunt struct {
	ID       ShuntID
	SourceID string
	Bus      BusID
	G        float64
	B        float64
	Status   bool
}

// Edge is one directed traversal step returned by Network.Neighbors: the
// branch connecting the queried bus to OtherBus, and the dense BranchID
// that identifies it.
type Edge struct {
	Branch   BranchID
	OtherBus BusID
}

func (id BusID) String() string    { return fmt.Sprintf("bus#%d", uint32(id)) }
func (id BranchID) String() string { return fmt.Sprintf("branch#%d", uint32(id)) }
func (id GenID) String() string    { return fmt.Sprintf("gen#%d", uint32(id)) }
func (id LoadID) String() string   { return fmt.Sprintf("load#%d", uint32(id)) }
func (id ShuntID) String() string  { return fmt.Sprintf("shunt#%d", uint32(id)) }
