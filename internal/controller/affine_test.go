package controller

import (
	"math"
	"testing"

	"github.com/san-kum/ddpsolve/internal/ddp"
)

func TestSampleCompute(t *testing.T) {
	s := Sample{
		K:      ddp.Matrix{{2}},
		B:      ddp.Vector{1},
		DeltaB: ddp.Vector{0.5},
	}
	u := s.Compute(ddp.State{3}, 1.0)
	if math.Abs(u[0]-7.5) > 1e-9 {
		t.Errorf("Compute = %v, want 7.5 (2*3 + 1 + 1*0.5)", u[0])
	}

	u0 := s.Compute(ddp.State{3}, 0.0)
	if math.Abs(u0[0]-7) > 1e-9 {
		t.Errorf("Compute at alpha=0 = %v, want 7", u0[0])
	}
}

func TestSampleEmpty(t *testing.T) {
	var s Sample
	if !s.Empty() {
		t.Error("zero-value Sample should be Empty")
	}
	if s.Compute(ddp.State{1}, 1) != nil {
		t.Error("Compute on an empty sample should return nil")
	}
}

func TestStockAtInterpolates(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{
		{Tau: 0, K: ddp.Matrix{{0}}, B: ddp.Vector{0}, DeltaB: ddp.Vector{0}},
		{Tau: 1, K: ddp.Matrix{{0}}, B: ddp.Vector{10}, DeltaB: ddp.Vector{0}},
	}
	mid := stock.At(0, 0.5)
	if math.Abs(mid.B[0]-5) > 1e-9 {
		t.Errorf("interpolated B = %v, want 5", mid.B[0])
	}

	before := stock.At(0, -1)
	if before.B[0] != 0 {
		t.Errorf("query before range should clamp to first sample, got %v", before.B[0])
	}
	after := stock.At(0, 2)
	if after.B[0] != 10 {
		t.Errorf("query after range should clamp to last sample, got %v", after.B[0])
	}
}

func TestStockAtEventJumpResolvesToLater(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{
		{Tau: 1, K: ddp.Matrix{{0}}, B: ddp.Vector{1}, DeltaB: ddp.Vector{0}},
		{Tau: 1, K: ddp.Matrix{{0}}, B: ddp.Vector{2}, DeltaB: ddp.Vector{0}},
	}
	got := stock.At(0, 1)
	if got.B[0] != 2 {
		t.Errorf("query exactly at an event should resolve to the post-event gain, got %v", got.B[0])
	}
}

func TestStockIsEmpty(t *testing.T) {
	stock := NewStock(2)
	if !stock.IsEmpty(0) {
		t.Error("freshly allocated stock partitions should be empty")
	}
	stock.Partitions[0] = []Sample{{Tau: 0, K: ddp.Matrix{{0}}, B: ddp.Vector{0}}}
	if stock.IsEmpty(0) {
		t.Error("partition with a sample should not be empty")
	}
	if !stock.IsEmpty(5) {
		t.Error("out-of-range index should report empty")
	}
}

func TestStockScaleFeedForward(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{
		{Tau: 0, K: ddp.Matrix{{0}}, B: ddp.Vector{1}, DeltaB: ddp.Vector{2}},
	}
	scaled := stock.ScaleFeedForward(0.5)
	if scaled.Partitions[0][0].B[0] != 2 {
		t.Errorf("ScaleFeedForward B = %v, want 2 (1 + 0.5*2)", scaled.Partitions[0][0].B[0])
	}
	if stock.Partitions[0][0].B[0] != 1 {
		t.Error("ScaleFeedForward should not mutate the original stock")
	}
	if scaled.Partitions[0][0].DeltaB[0] != 0 {
		t.Errorf("ScaleFeedForward should zero DeltaB on the returned sample, got %v", scaled.Partitions[0][0].DeltaB[0])
	}
}

// TestScaleFeedForwardThenComputeAppliesAlphaOnce reproduces how the line
// search actually composes these two calls (Stock.At(...).Compute(x, alpha)
// on an already-scaled stock) and checks alpha*DeltaB is folded in exactly
// once rather than once by ScaleFeedForward and again by Compute.
func TestScaleFeedForwardThenComputeAppliesAlphaOnce(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{
		{Tau: 0, K: ddp.Matrix{{0}}, B: ddp.Vector{1}, DeltaB: ddp.Vector{2}},
	}
	alpha := 0.5
	scaled := stock.ScaleFeedForward(alpha)

	u := scaled.At(0, 0).Compute(ddp.State{0}, alpha)
	if u[0] != 2 {
		t.Errorf("u = %v, want 2 (1 + 0.5*2, applied once)", u[0])
	}
}

func TestStockClearFeedForward(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{{Tau: 0, K: ddp.Matrix{{0}}, B: ddp.Vector{1}, DeltaB: ddp.Vector{5}}}
	stock.ClearFeedForward()
	if stock.Partitions[0][0].DeltaB[0] != 0 {
		t.Error("ClearFeedForward should zero every DeltaB")
	}
}

func TestStockIsAffineTimeVarying(t *testing.T) {
	stock := NewStock(1)
	stock.Partitions[0] = []Sample{
		{Tau: 0, K: ddp.Matrix{{1, 2}}, B: ddp.Vector{0}},
		{Tau: 1, K: ddp.Matrix{{1, 2}}, B: ddp.Vector{0}},
	}
	if !stock.IsAffineTimeVarying(2, 1) {
		t.Error("well-formed stock should validate")
	}
	if stock.IsAffineTimeVarying(3, 1) {
		t.Error("mismatched state dimension should fail validation")
	}
}

func TestStockRewind(t *testing.T) {
	stock := NewStock(3)
	for i := range stock.Partitions {
		stock.Partitions[i] = []Sample{{Tau: float64(i), K: ddp.Matrix{{0}}, B: ddp.Vector{float64(i)}}}
	}
	stock.Rewind(1)
	if stock.Partitions[0][0].B[0] != 1 {
		t.Errorf("partition 0 after Rewind(1) should hold former partition 1, got %v", stock.Partitions[0][0].B)
	}
	if len(stock.Partitions[2]) != 0 {
		t.Error("tail partition should be cleared after Rewind")
	}
}
