package examples

import (
	"math"
	"testing"

	"github.com/san-kum/ddpsolve/internal/ddp"
)

func TestScalarLQRDynamics(t *testing.T) {
	plant := ScalarLQR()
	if plant.StateDim() != 1 || plant.ControlDim() != 1 {
		t.Fatalf("dims = (%d,%d), want (1,1)", plant.StateDim(), plant.ControlDim())
	}
	// dx/dt = u for the scalar integrator plant.
	dx := plant.Derive(ddp.State{5}, ddp.Input{3}, 0)
	if dx[0] != 3 {
		t.Errorf("Derive = %v, want 3", dx[0])
	}
}

func TestScalarLQRRunningCost(t *testing.T) {
	plant := ScalarLQR()
	nv, err := plant.ReadNode(0, ddp.State{2}, ddp.Input{3})
	if err != nil {
		t.Fatalf("ReadNode returned %v", err)
	}
	// l = 0.5*(x^2+u^2) = 0.5*(4+9) = 6.5
	if math.Abs(nv.Cost-6.5) > 1e-9 {
		t.Errorf("Cost = %v, want 6.5", nv.Cost)
	}
}

func TestEXP1SubsystemSwitching(t *testing.T) {
	plant := EXP1()
	if plant.StateDim() != 2 || plant.ControlDim() != 1 {
		t.Fatalf("dims = (%d,%d), want (2,1)", plant.StateDim(), plant.ControlDim())
	}
	if got := plant.Schedule.SubsystemAt(0.5); got != 0 {
		t.Errorf("subsystem at t=0.5 = %d, want 0", got)
	}
	if got := plant.Schedule.SubsystemAt(1.5); got != 1 {
		t.Errorf("subsystem at t=1.5 = %d, want 1", got)
	}
	if got := plant.Schedule.SubsystemAt(2.5); got != 2 {
		t.Errorf("subsystem at t=2.5 = %d, want 2", got)
	}
}

func TestEXP1InitialConditions(t *testing.T) {
	x0 := EXP1InitState()
	if x0[0] != 2 || x0[1] != 3 {
		t.Errorf("EXP1InitState = %v, want [2 3]", x0)
	}
	P := EXP1Partitioning()
	if len(P) != 4 || P[0] != 0 || P[3] != 3 {
		t.Errorf("EXP1Partitioning = %v, want [0 1 2 3]", P)
	}
}

func TestLinearQuadraticNoTerminalCostByDefault(t *testing.T) {
	plant := ScalarLQR()
	if plant.TerminalCost(1, ddp.State{5}) != 0 {
		t.Error("TerminalCost should be zero when Qf is nil")
	}
}

func TestReadNodeHasNoInequalityByDefault(t *testing.T) {
	plant := ScalarLQR()
	nv, err := plant.ReadNode(0, ddp.State{1}, ddp.Input{0.5})
	if err != nil {
		t.Fatalf("ReadNode returned %v", err)
	}
	if len(nv.IneqH) != 0 {
		t.Errorf("IneqH = %v, want none when UMax is unset", nv.IneqH)
	}
}

func TestReadNodeReportsSaturationInequality(t *testing.T) {
	plant := EXP1()
	nv, err := plant.ReadNode(0, ddp.State{2, 3}, ddp.Input{1})
	if err != nil {
		t.Fatalf("ReadNode returned %v", err)
	}
	// h = UMax - u = 3 - 1 = 2, and UMax + u = 3 + 1 = 4.
	if len(nv.IneqH) != 2 || math.Abs(nv.IneqH[0]-2) > 1e-9 || math.Abs(nv.IneqH[1]-4) > 1e-9 {
		t.Errorf("IneqH = %v, want [2 4]", nv.IneqH)
	}

	md, err := plant.Approximate(0, ddp.State{2, 3}, ddp.Input{1}, 0)
	if err != nil {
		t.Fatalf("Approximate returned %v", err)
	}
	if md.NumIneq != 2 {
		t.Errorf("NumIneq = %d, want 2", md.NumIneq)
	}
}

func TestLinearQuadraticWithTerminalWeight(t *testing.T) {
	plant := ScalarLQR()
	plant.Qf = ddp.Matrix{{2}}
	// 0.5 * Qf * x^2 = 0.5*2*9 = 9
	if got := plant.TerminalCost(1, ddp.State{3}); math.Abs(got-9) > 1e-9 {
		t.Errorf("TerminalCost = %v, want 9", got)
	}
}
