package ddp

import (
	"math"
	"testing"
)

func TestVectorArithmetic(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{4, 5, 6}

	if sum := a.Add(b); sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}
	if diff := b.Sub(a); diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}
	if scaled := a.Scale(2); scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}
	if dot := a.Dot(b); dot != 32 {
		t.Errorf("Dot() = %v, want 32", dot)
	}
	if n := a.SquaredNorm(); n != 14 {
		t.Errorf("SquaredNorm() = %v, want 14", n)
	}
}

func TestVectorIsFinite(t *testing.T) {
	tests := []struct {
		name  string
		v     Vector
		valid bool
	}{
		{"empty", Vector{}, true},
		{"normal", Vector{1, 2, 3}, true},
		{"nan", Vector{1, math.NaN()}, false},
		{"inf", Vector{1, math.Inf(1)}, false},
		{"neg inf", Vector{1, math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsFinite(); got != tt.valid {
				t.Errorf("IsFinite() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestVectorClone(t *testing.T) {
	v := Vector{1, 2, 3}
	c := v.Clone()
	c[0] = 99
	if v[0] == 99 {
		t.Error("Clone shares backing storage with the original")
	}
}

func TestMatrixMulVec(t *testing.T) {
	m := Matrix{{1, 2}, {3, 4}}
	v := Vector{1, 1}
	got := m.MulVec(v)
	if got[0] != 3 || got[1] != 7 {
		t.Errorf("MulVec = %v, want [3 7]", got)
	}
}

func TestMatrixTranspose(t *testing.T) {
	m := Matrix{{1, 2, 3}, {4, 5, 6}}
	tr := m.Transpose()
	if tr.Rows() != 3 || tr.Cols() != 2 {
		t.Fatalf("Transpose shape = %dx%d, want 3x2", tr.Rows(), tr.Cols())
	}
	if tr[0][1] != 4 || tr[2][0] != 3 {
		t.Errorf("Transpose values wrong: %v", tr)
	}
}

func TestMatrixMul(t *testing.T) {
	a := Matrix{{1, 2}, {3, 4}}
	b := Matrix{{5, 6}, {7, 8}}
	c := a.Mul(b)
	if c[0][0] != 19 || c[0][1] != 22 || c[1][0] != 43 || c[1][1] != 50 {
		t.Errorf("Mul = %v, want [[19 22] [43 50]]", c)
	}
}

func TestMatrixAddDiagAndSymmetrize(t *testing.T) {
	m := Matrix{{1, 2}, {0, 1}}
	m.AddDiag(1)
	if m[0][0] != 2 || m[1][1] != 2 {
		t.Errorf("AddDiag failed: %v", m)
	}
	m.Symmetrize()
	if m[0][1] != m[1][0] {
		t.Errorf("Symmetrize failed: %v", m)
	}
}

func TestPartitioningActiveRange(t *testing.T) {
	p := Partitioning{0, 1, 2, 3}

	tests := []struct {
		name             string
		t0, t1           float64
		wantInit, wantEnd int
	}{
		{"whole horizon", 0, 3, 0, 2},
		{"interior", 0.5, 1.5, 0, 1},
		{"single instant", 1.5, 1.5, 1, 1},
		{"clamped left", -1, 0.5, 0, 0},
		{"clamped right", 2.5, 10, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			init, end := p.ActiveRange(tt.t0, tt.t1)
			if init != tt.wantInit || end != tt.wantEnd {
				t.Errorf("ActiveRange(%v,%v) = (%d,%d), want (%d,%d)", tt.t0, tt.t1, init, end, tt.wantInit, tt.wantEnd)
			}
		})
	}
}

func TestModeScheduleSubsystemAt(t *testing.T) {
	m := ModeSchedule{EventTimes: []float64{1, 2}, SubsystemID: []int{0, 1, 2}}

	tests := []struct {
		t    float64
		want int
	}{
		{-1, 0}, {0, 0}, {0.99, 0}, {1, 1}, {1.5, 1}, {2, 2}, {5, 2},
	}
	for _, tt := range tests {
		if got := m.SubsystemAt(tt.t); got != tt.want {
			t.Errorf("SubsystemAt(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestModeScheduleEventsIn(t *testing.T) {
	m := ModeSchedule{EventTimes: []float64{1, 2, 3}}
	got := m.EventsIn(0.5, 2.5)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("EventsIn(0.5,2.5) = %v, want [1 2]", got)
	}
	if got := m.EventsIn(1, 2); len(got) != 0 {
		t.Errorf("EventsIn should exclude the boundary times, got %v", got)
	}
}
