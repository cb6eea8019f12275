package ddp

import (
	"errors"
	"testing"
)

func TestBadInputWrapsSentinel(t *testing.T) {
	err := BadInput("bad horizon")
	if !errors.Is(err, ErrBadInput) {
		t.Error("BadInput should wrap ErrBadInput")
	}
	var se *SolverError
	if !errors.As(err, &se) {
		t.Fatal("BadInput should produce a *SolverError")
	}
	if se.Detail != "bad horizon" {
		t.Errorf("Detail = %q, want %q", se.Detail, "bad horizon")
	}
}

func TestConstraintDimOverflowContext(t *testing.T) {
	err := ConstraintDimOverflow(2, 5, 1.25, "state-input equality", 3, 1)
	if !errors.Is(err, ErrConstraintDimOverflow) {
		t.Error("should wrap ErrConstraintDimOverflow")
	}
	var se *SolverError
	if !errors.As(err, &se) {
		t.Fatal("expected a *SolverError")
	}
	if se.Partition != 2 || se.Node != 5 || se.Time != 1.25 {
		t.Errorf("context = (%d,%d,%v), want (2,5,1.25)", se.Partition, se.Node, se.Time)
	}
}

func TestNumericalInstability(t *testing.T) {
	err := NumericalInstability(0, 1, 0.5, "riccati value function")
	if !errors.Is(err, ErrNumericalInstability) {
		t.Error("should wrap ErrNumericalInstability")
	}
}

func TestSolverErrorUnwrap(t *testing.T) {
	err := RolloutDiverged(1, 2.0)
	if errors.Unwrap(err) != ErrRolloutDiverged {
		t.Error("Unwrap should return the sentinel")
	}
}
