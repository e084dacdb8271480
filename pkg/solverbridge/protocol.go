// Package solverbridge implements the caller side of the single external
// solver protocol shared by DC-OPF, SOCP-OPF, NLP-OPF and MILP network
// expansion: a length-prefixed columnar binary stream over a child
// process's stdin/stdout. The solver subprocess itself is external:
// this package only assembles problems, spawns and speaks to whatever
// binary the caller names, and decodes solutions.
package solverbridge

// ProtocolVersion is the schema version this package reads and writes.
// Bump when a field is added; readers reject an unrecognized version
// with a SolverProtocol/ErrSchemaMismatch error rather than guessing.
const ProtocolVersion = 1

// BusType tags a bus's role in the problem batch
type BusType uint8

const (
	BusTypePQ    BusType = 1
	BusTypePV    BusType = 2
	BusTypeSlack BusType = 3
)

// Status is the solver's reported outcome.
type Status uint8

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusTimeout
	StatusIterationLimit
	StatusNumericalError
	StatusError
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimeout:
		return "timeout"
	case StatusIterationLimit:
		return "iteration_limit"
	case StatusNumericalError:
		return "numerical_error"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Meta is problem-batch record 0: run-wide scalars.
type Meta struct {
	ProtocolVersion uint32
	BaseMVA         float64
	Tolerance       float64
	MaxIter         uint32
}

// BusRow is one row of the problem batch's bus arrays.
type BusRow struct {
	BusID    uint32
	VMin     float64
	VMax     float64
	PLoad    float64
	QLoad    float64
	BusType  BusType
	VMagInit float64
	VAngInit float64
}

// GenRow is one row of the problem batch's generator arrays.
type GenRow struct {
	GenID  uint32
	BusID  uint32
	PMin   float64
	PMax   float64
	QMin   float64
	QMax   float64
	CostC0 float64
	CostC1 float64
	CostC2 float64
}

// BranchRow is one row of the problem batch's branch arrays.
type BranchRow struct {
	BranchID uint32
	From     uint32
	To       uint32
	R        float64
	X        float64
	B        float64
	Rate     float64
	Tap      float64
	Shift    float64
}

// Problem is the full columnar problem batch
type Problem struct {
	Meta     Meta
	Buses    []BusRow
	Gens     []GenRow
	Branches []BranchRow
}

// BusResult is one row of the solution batch's bus arrays.
type BusResult struct {
	VMag float64
	VAng float64
	LMP  float64
}

// GenResult is one row of the solution batch's generator arrays.
type GenResult struct {
	P float64
	Q float64
}

// BranchResult is one row of the solution batch's branch arrays.
type BranchResult struct {
	PFrom float64
	QFrom float64
	PTo   float64
	QTo   float64
}

// Solution is the full columnar solution batch.
type Solution struct {
	Status       Status
	Objective    float64
	Iterations   uint32
	SolveTimeMS  float64
	ErrorMessage string
	Buses        []BusResult
	Gens         []GenResult
	Branches     []BranchResult
}
