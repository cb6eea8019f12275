package lq

import (
	"math"
	"testing"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/examples"
	"github.com/san-kum/ddpsolve/internal/trajectory"
	"github.com/san-kum/ddpsolve/internal/workerpool"
)

func buildStore(t *testing.T, plant *examples.LinearQuadratic, times []float64, states []ddp.State) *trajectory.Store {
	t.Helper()
	store := trajectory.NewStore(1)
	for i, tm := range times {
		u := make(ddp.Input, plant.InputM)
		store.Partitions[0].Append(tm, states[i], u, ddp.ModelData{})
	}
	return store
}

func TestApproximatorPopulatesModelData(t *testing.T) {
	plant := examples.ScalarLQR()
	store := buildStore(t, plant, []float64{0, 0.5, 1}, []ddp.State{{1}, {0.5}, {0}})

	a := &Approximator{
		Nodes:    plant,
		Events:   plant,
		Terminal: plant,
		Pool:     workerpool.New(2),
		MakePSD:  true,
		InputDim: plant.InputM,
	}

	seed, err := a.Approximate(store, plant.Schedule, 0, 0, 0, 1)
	if err != nil {
		t.Fatalf("Approximate returned %v", err)
	}
	if seed.Sm.Rows() != 1 {
		t.Fatalf("terminal seed Sm shape = %dx%d, want 1x1", seed.Sm.Rows(), seed.Sm.Cols())
	}

	for i, md := range store.Partitions[0].ModelData {
		if md.Qm.Rows() != 1 || md.Rm.Rows() != 1 {
			t.Fatalf("node %d: model data not populated: %+v", i, md)
		}
		if math.IsNaN(md.Cost) {
			t.Errorf("node %d: cost is NaN", i)
		}
	}
}

func TestApproximatorRejectsConstraintOverflow(t *testing.T) {
	plant := examples.ScalarLQR()
	store := buildStore(t, plant, []float64{0, 1}, []ddp.State{{1}, {0}})

	a := &Approximator{
		Nodes:    overflowNode{},
		Events:   plant,
		Terminal: plant,
		Pool:     workerpool.New(1),
		InputDim: plant.InputM, // = 1, but overflowNode reports 2
	}
	_, err := a.Approximate(store, plant.Schedule, 0, 0, 0, 1)
	if err == nil {
		t.Fatal("expected a constraint-dimension-overflow error")
	}
}

func TestApproximatorCatchesNonFiniteNodeData(t *testing.T) {
	plant := examples.ScalarLQR()
	store := buildStore(t, plant, []float64{0, 1}, []ddp.State{{1}, {0}})

	a := &Approximator{
		Nodes:                   nanNode{},
		Events:                  plant,
		Terminal:                plant,
		Pool:                    workerpool.New(1),
		InputDim:                plant.InputM,
		CheckNumericalStability: true,
	}
	_, err := a.Approximate(store, plant.Schedule, 0, 0, 0, 1)
	if err == nil {
		t.Fatal("expected a numerical-instability error for a NaN-valued node")
	}
}

type overflowNode struct{}

func (overflowNode) Approximate(t float64, x ddp.State, u ddp.Input, subsystem int) (ddp.ModelData, error) {
	return ddp.ModelData{
		Qm:              ddp.Matrix{{1}},
		Rm:              ddp.Matrix{{1}},
		NumStateInputEq: 2,
		Ev:              ddp.Vector{0, 0},
	}, nil
}

type nanNode struct{}

func (nanNode) Approximate(t float64, x ddp.State, u ddp.Input, subsystem int) (ddp.ModelData, error) {
	return ddp.ModelData{
		Qm: ddp.Matrix{{math.NaN()}},
		Qv: ddp.Vector{0},
		Rm: ddp.Matrix{{1}},
		Rv: ddp.Vector{0},
	}, nil
}
