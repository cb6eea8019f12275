// Package cache implements the cache manager (C8): O(1) swap between the
// nominal and cached trajectory stores, and the splice that reconciles a
// shortened rollout's cache against the previous nominal trajectory (the
// common MPC warm-start case).
package cache

import (
	"math"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/trajectory"
)

// eps is the small offset past the cache's last recorded time used to
// locate the bracketing nominal segment.
const eps = 1e-9

// Manager owns the nominal/cached trajectory store pair.
type Manager struct {
	Nominal *trajectory.Store
	Cached  *trajectory.Store

	Debug     bool
	Tolerance float64
}

// NewManager returns a cache manager over the given k-partition stores.
func NewManager(nominal, cached *trajectory.Store) *Manager {
	return &Manager{Nominal: nominal, Cached: cached, Tolerance: 1e-9}
}

// SwapToCache exchanges nominal and cached in O(1). Calling it twice is a
// no-op.
func (m *Manager) SwapToCache() {
	m.Nominal, m.Cached = m.Cached, m.Nominal
}

// CorrectInitCache reconciles the cache against the (freshly rolled out)
// nominal trajectory when the new rollout is shorter than the previous one.
func (m *Manager) CorrectInitCache() error {
	for i := range m.Nominal.Partitions {
		nomPart := &m.Nominal.Partitions[i]
		cachedPart := &m.Cached.Partitions[i]

		if cachedPart.Len() == 0 {
			copyPartition(cachedPart, nomPart)
			continue
		}
		if nomPart.Len() == 0 {
			continue
		}

		cachedLast := cachedPart.Time[cachedPart.Len()-1]
		nomLast := nomPart.Time[nomPart.Len()-1]
		if cachedLast >= nomLast {
			continue
		}

		segStart := bracket(nomPart, cachedLast+eps)
		if segStart < 0 || segStart+1 >= nomPart.Len() {
			continue
		}

		t, x, u := interpolateSample(nomPart, segStart, cachedLast+eps)
		oldSize := cachedPart.Len()
		cachedPart.Append(t, x, u, ddp.ModelData{Time: t})

		for _, ind := range nomPart.PostEventIndices {
			if ind > segStart {
				cachedPart.PostEventIndices = append(cachedPart.PostEventIndices, ind-segStart+oldSize)
			}
		}

		for k := segStart + 1; k < nomPart.Len(); k++ {
			cachedPart.Append(nomPart.Time[k], nomPart.State[k].Clone(), nomPart.Input[k].Clone(), nomPart.ModelData[k].Clone())
		}

		if m.Debug {
			if err := m.checkSplice(nomPart, cachedPart, segStart); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyPartition(dst, src *trajectory.Partition) {
	dst.Clear()
	for k := 0; k < src.Len(); k++ {
		dst.Append(src.Time[k], src.State[k].Clone(), src.Input[k].Clone(), src.ModelData[k].Clone())
	}
	dst.PostEventIndices = append(dst.PostEventIndices[:0], src.PostEventIndices...)
}

// bracket returns the index k such that Time[k] <= target < Time[k+1]
// (k = n-2 when target equals the last time), or -1 if target is outside
// the partition's time range.
func bracket(p *trajectory.Partition, target float64) int {
	n := p.Len()
	if n < 2 || target < p.Time[0] || target > p.Time[n-1] {
		return -1
	}
	lo, hi := 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if p.Time[mid] <= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

func interpolateSample(p *trajectory.Partition, segStart int, t float64) (float64, ddp.State, ddp.Input) {
	t0, t1 := p.Time[segStart], p.Time[segStart+1]
	frac := 0.0
	if t1 > t0 {
		frac = (t - t0) / (t1 - t0)
	}
	x := lerpVec(p.State[segStart], p.State[segStart+1], frac)
	u := lerpVec(p.Input[segStart], p.Input[segStart+1], frac)
	return t, x, u
}

func lerpVec(a, b ddp.Vector, frac float64) ddp.Vector {
	n := len(a)
	out := make(ddp.Vector, n)
	for i := 0; i < n; i++ {
		bi := 0.0
		if i < len(b) {
			bi = b[i]
		}
		out[i] = a[i] + frac*(bi-a[i])
	}
	return out
}

// checkSplice re-interpolates the freshly spliced cachedPart, from scratch
// over its own (post-splice) time array, at every nominal sample time in the
// copied tail, and fails with CacheInconsistent if the result disagrees with
// what the nominal trajectory actually recorded there. This exercises the
// splice's bookkeeping (event indices, ordering) rather than re-deriving the
// same interpolation call that produced the boundary sample.
func (m *Manager) checkSplice(nomPart, cachedPart *trajectory.Partition, segStart int) error {
	for k := segStart + 1; k < nomPart.Len(); k++ {
		target := nomPart.Time[k]
		seg := bracket(cachedPart, target)
		if seg < 0 {
			continue
		}
		_, xc, _ := interpolateSample(cachedPart, seg, target)
		maxDiff := 0.0
		for i := range xc {
			d := math.Abs(xc[i] - nomPart.State[k][i])
			if d > maxDiff {
				maxDiff = d
			}
		}
		if maxDiff > m.Tolerance {
			return ddp.CacheInconsistent(-1, target, "spliced cache tail disagrees with nominal trajectory")
		}
	}
	return nil
}
