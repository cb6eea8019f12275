package ddp

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, matched with errors.Is against SolverError.Wrapped.
var (
	// ErrBadInput indicates invalid times, an empty partitioning, a
	// non-finite initial state, or inconsistent min/max learning rate.
	ErrBadInput = errors.New("ddp: bad input")

	// ErrBadController indicates a caller-supplied controller is not of
	// the affine time-varying shape, or its count does not match the
	// number of partitions.
	ErrBadController = errors.New("ddp: bad controller")

	// ErrRolloutDiverged indicates the final state of a rollout contains
	// a non-finite component.
	ErrRolloutDiverged = errors.New("ddp: rollout diverged")

	// ErrConstraintDimOverflow indicates a reported active-constraint
	// count exceeds the input dimension m.
	ErrConstraintDimOverflow = errors.New("ddp: constraint dimension overflow")

	// ErrCacheInconsistent indicates a debug-mode cache splice mismatch.
	ErrCacheInconsistent = errors.New("ddp: cache inconsistent")

	// ErrNumericalInstability indicates an LQ or Riccati sub-step
	// produced non-finite output while CheckNumericalStability is on.
	ErrNumericalInstability = errors.New("ddp: numerical instability")
)

// SolverError wraps a sentinel error kind with the partition/node/time
// context in which it was raised.
type SolverError struct {
	Wrapped   error
	Partition int
	Node      int
	Time      float64
	Detail    string
}

func (e *SolverError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v (partition %d, node %d, t=%.6f)", e.Wrapped, e.Partition, e.Node, e.Time)
	}
	return fmt.Sprintf("%v: %s (partition %d, node %d, t=%.6f)", e.Wrapped, e.Detail, e.Partition, e.Node, e.Time)
}

func (e *SolverError) Unwrap() error { return e.Wrapped }

func newErr(kind error, partition, node int, t float64, detail string) *SolverError {
	return &SolverError{Wrapped: kind, Partition: partition, Node: node, Time: t, Detail: detail}
}

func BadInput(detail string) error {
	return newErr(ErrBadInput, -1, -1, 0, detail)
}

func BadController(detail string) error {
	return newErr(ErrBadController, -1, -1, 0, detail)
}

func RolloutDiverged(partition int, t float64) error {
	return newErr(ErrRolloutDiverged, partition, -1, t, "final state is not finite")
}

func ConstraintDimOverflow(partition, node int, t float64, kind string, count, m int) error {
	return newErr(ErrConstraintDimOverflow, partition, node, t, fmt.Sprintf("%s count %d exceeds m=%d", kind, count, m))
}

func CacheInconsistent(partition int, t float64, detail string) error {
	return newErr(ErrCacheInconsistent, partition, -1, t, detail)
}

func NumericalInstability(partition, node int, t float64, quantity string) error {
	return newErr(ErrNumericalInstability, partition, node, t, "non-finite "+quantity)
}
