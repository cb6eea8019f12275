package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/optimizer"
)

func sampleSolution() optimizer.PrimalSolution {
	return optimizer.PrimalSolution{
		Time:  []float64{0, 0.5, 1},
		State: []ddp.State{{1}, {0.5}, {0}},
		Input: []ddp.Input{{-1}, {-0.5}},
	}
}

func TestSaveCreatesMetadataAndTrajectory(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init returned %v", err)
	}

	iterations := []optimizer.IterationLogEntry{
		{Iteration: 0, Cost: 5, Merit: 5},
		{Iteration: 1, Cost: 2, Merit: 2, Alpha: 1},
	}
	runID, err := s.Save("scalarlqr", sampleSolution(), 2, 0.01, 0.02, 1, iterations)
	if err != nil {
		t.Fatalf("Save returned %v", err)
	}
	if runID == "" {
		t.Fatal("Save returned an empty run ID")
	}

	meta, err := s.Load(runID)
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if meta.Scenario != "scalarlqr" {
		t.Errorf("Scenario = %q, want scalarlqr", meta.Scenario)
	}
	if meta.Cost != 2 || meta.ISE1 != 0.01 || meta.ISE2 != 0.02 {
		t.Errorf("metrics = (%v,%v,%v), want (2,0.01,0.02)", meta.Cost, meta.ISE1, meta.ISE2)
	}
	if meta.RewindCount != 1 {
		t.Errorf("RewindCount = %d, want 1", meta.RewindCount)
	}
	if len(meta.Iterations) != 2 {
		t.Fatalf("len(Iterations) = %d, want 2", len(meta.Iterations))
	}
}

func TestListReturnsAllSavedRuns(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init returned %v", err)
	}
	if _, err := s.Save("scalarlqr", sampleSolution(), 1, 0, 0, 0, nil); err != nil {
		t.Fatalf("Save returned %v", err)
	}
	if _, err := s.Save("exp1", sampleSolution(), 2, 0, 0, 0, nil); err != nil {
		t.Fatalf("Save returned %v", err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatalf("List returned %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
}

func TestListOnMissingBaseDirReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"))
	runs, err := s.List()
	if err != nil {
		t.Fatalf("List returned %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("len(runs) = %d, want 0", len(runs))
	}
}

func TestLoadTrajectoryRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init returned %v", err)
	}
	runID, err := s.Save("scalarlqr", sampleSolution(), 1, 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("Save returned %v", err)
	}

	times, states, err := s.LoadTrajectory(runID)
	if err != nil {
		t.Fatalf("LoadTrajectory returned %v", err)
	}
	if len(times) != 3 {
		t.Fatalf("len(times) = %d, want 3", len(times))
	}
	if math.Abs(times[1]-0.5) > 1e-9 {
		t.Errorf("times[1] = %v, want 0.5", times[1])
	}
	// The trajectory CSV writes the state columns and then the input columns
	// after time, so each row after the header carries state[0] followed by
	// any input columns for that sample.
	if len(states[0]) < 1 || math.Abs(states[0][0]-1) > 1e-6 {
		t.Errorf("states[0] = %v, want first column 1", states[0])
	}
	if len(states[2]) < 1 || math.Abs(states[2][0]-0) > 1e-6 {
		t.Errorf("states[2] = %v, want first column 0", states[2])
	}
}

func TestLoadMissingRunReturnsError(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("nonexistent"); err == nil {
		t.Error("expected an error loading a nonexistent run")
	}
}
