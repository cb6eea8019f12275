// Package store persists a completed solve's primal solution and
// iteration log to disk: one run directory per solve, holding a JSON
// metadata sidecar and a CSV state/input trace.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/ddpsolve/internal/optimizer"
)

// Store persists solve runs under a base directory, one subdirectory per
// run.
type Store struct {
	baseDir string
}

// New returns a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory if it does not already exist.
func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata is the JSON sidecar recorded alongside a run's trajectory
// CSV.
type RunMetadata struct {
	ID          string                        `json:"id"`
	Scenario    string                        `json:"scenario"`
	Timestamp   time.Time                     `json:"timestamp"`
	Cost        float64                       `json:"cost"`
	ISE1        float64                       `json:"ise1"`
	ISE2        float64                       `json:"ise2"`
	RewindCount int                           `json:"rewind_count"`
	Iterations  []optimizer.IterationLogEntry `json:"iterations"`
}

// Save writes a run's metadata and (time, state, input) trace, deriving a
// timestamp-suffixed run ID from scenario the way storage.Store derives
// runID from model.
func (s *Store) Save(scenario string, sol optimizer.PrimalSolution, cost, ise1, ise2 float64, rewindCount int, iterations []optimizer.IterationLogEntry) (string, error) {
	runID := fmt.Sprintf("%s_%d", scenario, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Scenario:    scenario,
		Timestamp:   time.Now(),
		Cost:        cost,
		ISE1:        ise1,
		ISE2:        ise2,
		RewindCount: rewindCount,
		Iterations:  iterations,
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := writeTrajectoryCSV(filepath.Join(runDir, "trajectory.csv"), sol); err != nil {
		return "", err
	}
	return runID, nil
}

func writeTrajectoryCSV(path string, sol optimizer.PrimalSolution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(sol.Time) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range sol.State[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numInputs := 0
	if len(sol.Input) > 0 {
		numInputs = len(sol.Input[0])
	}
	for i := 0; i < numInputs; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range sol.Time {
		row := []string{strconv.FormatFloat(sol.Time[i], 'f', 6, 64)}
		for _, v := range sol.State[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if i < len(sol.Input) {
			for _, v := range sol.Input[i] {
				row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
			}
		} else {
			for j := 0; j < numInputs; j++ {
				row = append(row, "0")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// List returns every run's metadata found under the base directory.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}
	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// Load reads one run's metadata by ID.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads back a run's trace for replay: the time column, and
// for each row every column after time (the state columns followed by the
// input columns).
func (s *Store) LoadTrajectory(runID string) (times []float64, states [][]float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, [][]float64{}, nil
	}

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			state = append(state, v)
		}
		states = append(states, state)
	}
	return times, states, nil
}
