// Package gacerrors defines the typed error kinds shared across the grid
// analysis core. Every fallible operation in GAC returns one of these kinds
// wrapped in an AnalysisError; nothing panics on input that has already
// passed validation.
package gacerrors

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure so callers can branch on it with
// errors.Is without parsing message strings.
type Kind int

const (
	// KindTopology covers missing bus references, islands without a
	// slack, and zero-impedance branches discovered at analysis time.
	KindTopology Kind = iota
	// KindSingular marks a linear solve whose pivot fell below threshold.
	KindSingular
	// KindNotConverged marks a Newton-Raphson run that hit iter_max
	// without meeting tolerance. Not always fatal: AC-PF returns a
	// non-converged result rather than this error; AC-OPF escalates it.
	KindNotConverged
	// KindInfeasible marks an OPF solve the solver reported infeasible.
	KindInfeasible
	// KindUnbounded marks an OPF solve the solver reported unbounded.
	KindUnbounded
	// KindCancelled marks cooperative cancellation observed at a loop
	// or subprocess boundary.
	KindCancelled
	// KindTimeout marks a wall-clock budget exceeded.
	KindTimeout
	// KindSolverProtocol covers subprocess spawn failure, premature
	// exit, schema mismatch, and deserialization failure.
	KindSolverProtocol
	// KindInvalidInput marks a malformed option combination caught at
	// the request interface (e.g. pmin > pmax).
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindTopology:
		return "topology"
	case KindSingular:
		return "singular"
	case KindNotConverged:
		return "not_converged"
	case KindInfeasible:
		return "infeasible"
	case KindUnbounded:
		return "unbounded"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	case KindSolverProtocol:
		return "solver_protocol"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Sentinel causes. AnalysisError.Is matches against these so callers can
// write errors.Is(err, gacerrors.ErrUnknownBus) without reaching for Kind.
var (
	ErrUnknownBus                    = errors.New("unknown bus")
	ErrIslandWithoutSlack             = errors.New("island without slack bus")
	ErrZeroImpedance                  = errors.New("zero impedance branch")
	ErrSingularPivot                  = errors.New("pivot magnitude below threshold")
	ErrIterationLimit                 = errors.New("iteration limit reached without convergence")
	ErrAllGeneratorsOffline           = errors.New("all generators offline")
	ErrCancelled                      = errors.New("operation cancelled")
	ErrBudgetExceeded                 = errors.New("wall-clock budget exceeded")
	ErrSubprocessSpawn                = errors.New("solver subprocess failed to spawn")
	ErrSubprocessExit                 = errors.New("solver subprocess exited prematurely")
	ErrSchemaMismatch                 = errors.New("solver protocol schema version mismatch")
	ErrDeserialize                    = errors.New("solver protocol batch deserialization failed")
	ErrCircuitOpen                    = errors.New("solver bridge circuit breaker open")
)

// AnalysisError carries a Kind, the failing operation name, and an
// optional cause and binding-constraint detail (populated for
// KindInfeasible/KindUnbounded per spec).
type AnalysisError struct {
	Kind    Kind
	Op      string
	Detail  string // e.g. binding constraint name, reported by the solver
	Cause   error
}

func (e *AnalysisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Op, e.Detail, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

func (e *AnalysisError) Is(target error) bool {
	if target == nil {
		return false
	}
	if ae, ok := target.(*AnalysisError); ok {
		return ae.Kind == e.Kind
	}
	return errors.Is(e.Cause, target)
}

// New constructs an AnalysisError for the given kind and operation.
func New(kind Kind, op string, cause error) *AnalysisError {
	return &AnalysisError{Kind: kind, Op: op, Cause: cause}
}

// WithDetail attaches a binding-constraint or diagnostic detail string.
func (e *AnalysisError) WithDetail(detail string) *AnalysisError {
	e.Detail = detail
	return e
}

// Topology builds a KindTopology error.
func Topology(op string, cause error) *AnalysisError { return New(KindTopology, op, cause) }

// Singular builds a KindSingular error.
func Singular(op string) *AnalysisError { return New(KindSingular, op, ErrSingularPivot) }

// NotConverged builds a KindNotConverged error.
func NotConverged(op string) *AnalysisError { return New(KindNotConverged, op, ErrIterationLimit) }

// Infeasible builds a KindInfeasible error with an optional binding
// constraint name.
func Infeasible(op, binding string) *AnalysisError {
	return New(KindInfeasible, op, nil).WithDetail(binding)
}

// Unbounded builds a KindUnbounded error.
func Unbounded(op string) *AnalysisError { return New(KindUnbounded, op, nil) }

// Cancelled builds a KindCancelled error.
func Cancelled(op string) *AnalysisError { return New(KindCancelled, op, ErrCancelled) }

// Timeout builds a KindTimeout error.
func Timeout(op string) *AnalysisError { return New(KindTimeout, op, ErrBudgetExceeded) }

// SolverProtocol builds a KindSolverProtocol error.
func SolverProtocol(op string, cause error) *AnalysisError {
	return New(KindSolverProtocol, op, cause)
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(op string, cause error) *AnalysisError {
	return New(KindInvalidInput, op, cause)
}

// Is reports whether err is an AnalysisError of the given kind.
func Is(err error, kind Kind) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// IsSingular reports whether err is a KindSingular AnalysisError.
func IsSingular(err error) bool { return Is(err, KindSingular) }

// IsTimeout reports whether err is a KindTimeout AnalysisError.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }

// IsCancelled reports whether err is a KindCancelled AnalysisError.
func IsCancelled(err error) bool { return Is(err, KindCancelled) }

// IsInfeasible reports whether err is a KindInfeasible AnalysisError.
func IsInfeasible(err error) bool { return Is(err, KindInfeasible) }

// IsSolverProtocol reports whether err is a KindSolverProtocol AnalysisError.
func IsSolverProtocol(err error) bool { return Is(err, KindSolverProtocol) }
