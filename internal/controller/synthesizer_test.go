package controller

import (
	"math"
	"testing"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/riccati"
)

func TestDefaultSynthesizerCopiesGains(t *testing.T) {
	results := []riccati.NodeResult{
		{Time: 0, K: ddp.Matrix{{1}}, B: ddp.Vector{0}, DeltaB: ddp.Vector{0.5}},
		{Time: 1, K: ddp.Matrix{{2}}, B: ddp.Vector{0}, DeltaB: ddp.Vector{1.5}},
	}
	samples := DefaultSynthesizer{}.Synthesize(results)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[1].K[0][0] != 2 || samples[1].DeltaB[0] != 1.5 {
		t.Errorf("Synthesize did not copy gains through: %+v", samples[1])
	}
}

func TestValueFunctionAtInterpolates(t *testing.T) {
	results := []riccati.NodeResult{
		{Time: 0, Sm: ddp.Matrix{{1}}, Sv: ddp.Vector{0}, Sve: ddp.Vector{0}, S: 0},
		{Time: 1, Sm: ddp.Matrix{{1}}, Sv: ddp.Vector{0}, Sve: ddp.Vector{0}, S: 10},
	}
	xNominal := []ddp.State{{0}, {0}}

	_, _, _, s, xNom := ValueFunctionAt(results, xNominal, 0.5)
	if math.Abs(s-5) > 1e-9 {
		t.Errorf("interpolated s = %v, want 5", s)
	}
	if xNom[0] != 0 {
		t.Errorf("interpolated xNom = %v, want [0]", xNom)
	}
}

func TestValueFunctionAtEmpty(t *testing.T) {
	Sm, Sv, Sve, s, xNom := ValueFunctionAt(nil, nil, 0)
	if Sm != nil || Sv != nil || Sve != nil || s != 0 || xNom != nil {
		t.Error("ValueFunctionAt on empty results should return the zero value")
	}
}
