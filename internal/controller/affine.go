// Package controller holds the affine time-varying feedback law the
// optimizer synthesizes and evaluates: u(t,x) = K(t)*x + b(t), plus the
// Synthesizer collaborator facade (C10) that turns Riccati output into one.
package controller

import "github.com/san-kum/ddpsolve/internal/ddp"

// Sample is one time-stamped affine feedback gain. Within a partition, Tau
// is non-decreasing; two consecutive samples may share Tau to represent a
// jump at an event.
type Sample struct {
	Tau    float64
	K      ddp.Matrix // m x n
	B      ddp.Vector // m, feedback bias before the line-search increment
	DeltaB ddp.Vector // m, feed-forward update increment from the backward sweep
}

// Empty reports whether the sample carries no gain (a partition with no
// synthesized controller yet).
func (s Sample) Empty() bool { return s.K == nil && s.B == nil }

// Stock is the controller for every active partition: one ordered sample
// sequence per partition, indexed the same way as a trajectory.Store.
type Stock struct {
	Partitions [][]Sample
}

// NewStock allocates an empty stock for k partitions.
func NewStock(k int) *Stock {
	return &Stock{Partitions: make([][]Sample, k)}
}

// Resize grows or shrinks the stock to k partitions, preserving existing
// content.
func (s *Stock) Resize(k int) {
	if k == len(s.Partitions) {
		return
	}
	next := make([][]Sample, k)
	copy(next, s.Partitions)
	s.Partitions = next
}

// Clear empties every partition's sample sequence.
func (s *Stock) Clear() {
	for i := range s.Partitions {
		s.Partitions[i] = s.Partitions[i][:0]
	}
}

// IsEmpty reports whether partition i has no synthesized controller.
func (s *Stock) IsEmpty(i int) bool {
	return i < 0 || i >= len(s.Partitions) || len(s.Partitions[i]) == 0
}

// Rewind shifts the last (len-k) partitions leftward and clears the tail,
// mirroring trajectory.Store.Rewind.
func (s *Stock) Rewind(k int) {
	n := len(s.Partitions)
	if k <= 0 || k >= n {
		s.Clear()
		return
	}
	for i := 0; i+k < n; i++ {
		s.Partitions[i] = s.Partitions[i+k]
	}
	for i := n - k; i < n; i++ {
		s.Partitions[i] = s.Partitions[i][:0]
	}
}

// At interpolates the feedback gain active at time t within partition i,
// returning the empty Sample if the partition has no controller. Samples
// straddling an event (equal Tau) resolve to the later one, so a query
// exactly at an event time uses the post-event gain.
func (s *Stock) At(i int, t float64) Sample {
	if s.IsEmpty(i) {
		return Sample{}
	}
	samples := s.Partitions[i]
	if t < samples[0].Tau {
		return samples[0]
	}
	if t >= samples[len(samples)-1].Tau {
		return samples[len(samples)-1]
	}
	lo := 0
	hi := len(samples) - 1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if samples[mid].Tau <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	for lo+1 < len(samples) && samples[lo+1].Tau <= t {
		lo++
	}
	a, b := samples[lo], samples[hi]
	if b.Tau <= a.Tau {
		return a
	}
	frac := (t - a.Tau) / (b.Tau - a.Tau)
	return interpolate(a, b, frac)
}

// Compute evaluates the affine law with the line-search step alpha applied
// to the feed-forward increment: u = K*x + b + alpha*DeltaB.
func (s Sample) Compute(x ddp.State, alpha float64) ddp.Input {
	if s.Empty() {
		return nil
	}
	u := s.K.MulVec(x)
	for i := range u {
		u[i] += s.B[i]
		if i < len(s.DeltaB) {
			u[i] += alpha * s.DeltaB[i]
		}
	}
	return u
}

func interpolate(a, b Sample, frac float64) Sample {
	out := Sample{Tau: a.Tau + frac*(b.Tau-a.Tau)}
	out.K = lerpMatrix(a.K, b.K, frac)
	out.B = lerpVector(a.B, b.B, frac)
	out.DeltaB = lerpVector(a.DeltaB, b.DeltaB, frac)
	return out
}

func lerpVector(a, b ddp.Vector, frac float64) ddp.Vector {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(ddp.Vector, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] + frac*(b[i]-a[i])
	}
	return out
}

func lerpMatrix(a, b ddp.Matrix, frac float64) ddp.Matrix {
	rows := len(a)
	if len(b) < rows {
		rows = len(b)
	}
	out := make(ddp.Matrix, rows)
	for i := 0; i < rows; i++ {
		out[i] = lerpVector(a[i], b[i], frac)
	}
	return out
}

// ScaleFeedForward returns a copy of the stock with every DeltaB folded
// into B scaled by alpha: b_k <- b_k + alpha*DeltaB_k, and DeltaB zeroed on
// the result. Once folded, the returned sample's own Compute must not
// reapply alpha*DeltaB, so DeltaB is cleared rather than carried forward.
// Used by the line search to materialize a candidate controller without
// mutating the nominal stock.
func (s *Stock) ScaleFeedForward(alpha float64) *Stock {
	out := NewStock(len(s.Partitions))
	for i, samples := range s.Partitions {
		out.Partitions[i] = make([]Sample, len(samples))
		for j, sm := range samples {
			ns := Sample{Tau: sm.Tau, K: sm.K, B: sm.B.Clone(), DeltaB: make(ddp.Vector, len(sm.DeltaB))}
			for k := range ns.B {
				if k < len(sm.DeltaB) {
					ns.B[k] += alpha * sm.DeltaB[k]
				}
			}
			out.Partitions[i][j] = ns
		}
	}
	return out
}

// ClearFeedForward zeroes every DeltaB in place, used when the line search
// determines maxLearningRate is effectively zero.
func (s *Stock) ClearFeedForward() {
	for _, samples := range s.Partitions {
		for i := range samples {
			for j := range samples[i].DeltaB {
				samples[i].DeltaB[j] = 0
			}
		}
	}
}

// IsAffineTimeVarying validates that every sample in a caller-supplied
// stock has the expected (K,b) shape for dimensions (n,m), returning
// ddp.ErrBadController-wrapped errors via the caller.
func (s *Stock) IsAffineTimeVarying(n, m int) bool {
	for _, samples := range s.Partitions {
		prevTau := negInf
		for _, sm := range samples {
			if sm.Empty() {
				return false
			}
			if sm.K.Rows() != m || sm.K.Cols() != n {
				return false
			}
			if len(sm.B) != m {
				return false
			}
			if sm.Tau < prevTau {
				return false
			}
			prevTau = sm.Tau
		}
	}
	return true
}

const negInf = -1e308
