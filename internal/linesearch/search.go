// Package linesearch implements the line-search coordinator (C7): a
// parallel contraction-based step search with early termination, where the
// largest learning rate satisfying the Armijo-like descent condition wins
// regardless of discovery order.
package linesearch

import (
	"math"
	"sync"

	"github.com/san-kum/ddpsolve/internal/controller"
	"github.com/san-kum/ddpsolve/internal/evaluator"
	"github.com/san-kum/ddpsolve/internal/rollout"
	"github.com/san-kum/ddpsolve/internal/trajectory"
	"github.com/san-kum/ddpsolve/internal/workerpool"
)

// RolloutFn performs one rollout at the given learning rate on the given
// worker slot, returning the resulting trajectory and its integrated
// metrics. A non-nil error (including one produced by a diverged rollout)
// is treated as an infinite-cost candidate.
type RolloutFn func(alpha float64, workerID int) (*trajectory.Store, evaluator.Metrics, error)

// Coordinator is the C7 line-search coordinator.
type Coordinator struct {
	Pool            *workerpool.Pool
	MaxLearningRate float64
	MinLearningRate float64
	ContractionRate float64 // r in (0,1)
}

// Candidate is one evaluated (accepted or baseline) step.
type Candidate struct {
	Alpha    float64
	Metrics  evaluator.Metrics
	Store    *trajectory.Store
	BaseCost float64 // cost0, the alpha=0 baseline cost, kept for the descent-condition testable property
}

// Search performs the baseline rollout, then a parallel contraction search
// over candidate alphas, and returns the accepted candidate (alpha=0 if
// nothing beat the baseline).
func (c *Coordinator) Search(rolloutAt RolloutFn, kill *rollout.KillSwitch) (Candidate, error) {
	baseStore, baseMetrics, err := rolloutAt(0, 0)
	if err != nil {
		return Candidate{}, err
	}
	m0 := baseMetrics.Merit

	best := Candidate{Alpha: 0, Metrics: baseMetrics, Store: baseStore, BaseCost: baseMetrics.Cost}

	if c.MaxLearningRate < 1e-12 {
		return best, nil
	}

	jMax := int(math.Log(c.MinLearningRate/c.MaxLearningRate)/math.Log(c.ContractionRate)) + 1
	if jMax < 0 {
		jMax = 0
	}
	done := make([]bool, jMax+1)

	var mu sync.Mutex
	counter := &workerpool.Counter{}
	kill.Clear()

	_ = c.Pool.RunParallel(func(workerID int) error {
		for {
			j := counter.Next()
			if j > jMax {
				return nil
			}
			alpha := c.MaxLearningRate * math.Pow(c.ContractionRate, float64(j))
			if alpha < c.MinLearningRate {
				return nil
			}

			mu.Lock()
			alphaStar := best.Alpha
			mu.Unlock()
			if alpha < alphaStar {
				return nil
			}

			store, metrics, err := rolloutAt(alpha, workerID)
			merit := metrics.Merit
			if err != nil {
				merit = math.Inf(1)
			}

			mu.Lock()
			done[j] = true
			if err == nil && merit < m0*(1-1e-3*alpha) && alpha > best.Alpha {
				best = Candidate{Alpha: alpha, Metrics: metrics, Store: store, BaseCost: baseMetrics.Cost}
				if prefixDone(done, j) {
					kill.Signal()
				}
			}
			mu.Unlock()
		}
	})

	kill.Clear()
	return best, nil
}

// prefixDone reports whether every index below j has already been
// processed, meaning no still-outstanding candidate could carry a larger
// alpha than j's.
func prefixDone(done []bool, j int) bool {
	for i := 0; i < j; i++ {
		if !done[i] {
			return false
		}
	}
	return true
}

// ClearFeedForward is used by the caller when MaxLearningRate < eps: it
// clears every controller's feed-forward increment in place. It performs no
// rollout and returns nothing; the caller reports alpha*=0 itself.
func ClearFeedForward(stock *controller.Stock) {
	stock.ClearFeedForward()
}
