// Package trajectory holds the per-partition nominal/cached trajectory
// storage the optimizer owns exclusively: parallel (time, state, input,
// model-data) sequences plus the post-event index list.
package trajectory

import "github.com/san-kum/ddpsolve/internal/ddp"

// Partition is one partition's trajectory: four parallel ordered sequences
// plus the sorted positions that are the first sample after an event.
type Partition struct {
	Time             []float64
	State            []ddp.State
	Input            []ddp.Input
	ModelData        []ddp.ModelData
	PostEventIndices []int
}

// Len returns the number of samples currently stored.
func (p *Partition) Len() int { return len(p.Time) }

// Clear empties the partition without releasing its backing arrays.
func (p *Partition) Clear() {
	p.Time = p.Time[:0]
	p.State = p.State[:0]
	p.Input = p.Input[:0]
	p.ModelData = p.ModelData[:0]
	p.PostEventIndices = p.PostEventIndices[:0]
}

// Append adds one sample to the tail of the partition.
func (p *Partition) Append(t float64, x ddp.State, u ddp.Input, m ddp.ModelData) {
	p.Time = append(p.Time, t)
	p.State = append(p.State, x)
	p.Input = append(p.Input, u)
	p.ModelData = append(p.ModelData, m)
}

// MarkPostEvent records that the sample about to be appended (index
// p.Len()) is the first one after an event.
func (p *Partition) MarkPostEvent() {
	p.PostEventIndices = append(p.PostEventIndices, p.Len())
}

// PopLast removes and returns the final sample. Used by the rollout driver
// to drop a duplicated pre-event sample while the controller interval and
// the operating-point interval are stitched together. PostEventIndices is
// left untouched, so an index that pointed at the popped sample now points
// at the next sample appended.
func (p *Partition) PopLast() (t float64, x ddp.State, u ddp.Input, m ddp.ModelData, ok bool) {
	n := p.Len()
	if n == 0 {
		return 0, nil, nil, ddp.ModelData{}, false
	}
	t, x, u, m = p.Time[n-1], p.State[n-1], p.Input[n-1], p.ModelData[n-1]
	p.Time = p.Time[:n-1]
	p.State = p.State[:n-1]
	p.Input = p.Input[:n-1]
	p.ModelData = p.ModelData[:n-1]
	return t, x, u, m, true
}

// AppendSegment bulk-appends an independently produced tail segment,
// shifting the segment's own post-event indices by the partition's current
// size before merging them in.
func (p *Partition) AppendSegment(seg *Partition) {
	base := p.Len()
	p.Time = append(p.Time, seg.Time...)
	p.State = append(p.State, seg.State...)
	p.Input = append(p.Input, seg.Input...)
	p.ModelData = append(p.ModelData, seg.ModelData...)
	for _, idx := range seg.PostEventIndices {
		p.PostEventIndices = append(p.PostEventIndices, base+idx)
	}
}

// CheckInvariant reports whether the parallel arrays are the same length,
// the invariant every operation visible outside the driver must uphold.
func (p *Partition) CheckInvariant() bool {
	n := len(p.Time)
	return len(p.State) == n && len(p.Input) == n && len(p.ModelData) == n
}

// Store owns every partition's trajectory data for one nominal (or cached)
// trajectory.
type Store struct {
	Partitions []Partition
}

// NewStore allocates storage for k partitions.
func NewStore(k int) *Store {
	return &Store{Partitions: make([]Partition, k)}
}

// Resize grows or shrinks the store to k partitions, preserving the
// existing partitions' contents where they still fit.
func (s *Store) Resize(k int) {
	if k == len(s.Partitions) {
		return
	}
	next := make([]Partition, k)
	copy(next, s.Partitions)
	s.Partitions = next
}

// Clear empties every partition without freeing backing storage.
func (s *Store) Clear() {
	for i := range s.Partitions {
		s.Partitions[i].Clear()
	}
}

// Rewind shifts the last (len(Partitions)-k) partitions' contents leftward
// by k, so partition i holds what used to be partition i+k, and clears the
// last k partitions. A k <= 0 or >= len(Partitions) clears every partition.
// Callers pair Rewind with the mode-schedule and partitioning shift.
func (s *Store) Rewind(k int) {
	n := len(s.Partitions)
	if k <= 0 || k >= n {
		for i := range s.Partitions {
			s.Partitions[i].Clear()
		}
		return
	}
	for i := 0; i+k < n; i++ {
		s.Partitions[i] = s.Partitions[i+k]
	}
	for i := n - k; i < n; i++ {
		s.Partitions[i].Clear()
	}
}
