// Package workerpool provides the fan-out/barrier primitive shared by every
// parallel section of the optimizer (LQ approximation, the Riccati sweep,
// and the line search): a fixed number of worker slots run a parameterless
// task to completion, self-coordinating through atomic counters rather than
// a task queue.
package workerpool

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool fans a task out across a fixed number of worker slots.
type Pool struct {
	n int
}

// New returns a pool with n worker slots. n < 1 is treated as 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{n: n}
}

// NumWorkers returns the number of worker slots.
func (p *Pool) NumWorkers() int { return p.n }

// Task is the unit of work handed to RunParallel; workerID identifies the
// calling slot in [0, N) so a task can index into per-worker scratch state
// (a cloned evaluator, a private trajectory buffer, ...).
type Task func(workerID int) error

// RunParallel invokes task on every one of the pool's N worker slots and
// blocks until all of them have returned. A task that returns an error (or
// panics) does not stop or corrupt its neighbors; once the barrier is
// crossed, the first per-worker error (if any) is returned.
func (p *Pool) RunParallel(task Task) error {
	var g errgroup.Group
	for w := 0; w < p.n; w++ {
		workerID := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = panicError{value: r}
				}
			}()
			return task(workerID)
		})
	}
	return g.Wait()
}

type panicError struct{ value any }

func (e panicError) Error() string { return "workerpool: task panicked" }

// Counter is a shared monotonic work-claim counter. Workers call Next to
// atomically claim the next contiguous index; the pool itself never
// schedules work, it only fans out the task that reads this counter.
type Counter struct {
	v int64
}

// Next returns the next unclaimed index, starting at 0.
func (c *Counter) Next() int {
	return int(atomic.AddInt64(&c.v, 1) - 1)
}

// Reset sets the counter back to zero. Not safe to call concurrently with
// Next.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.v, 0)
}

// Load reads the current counter value without claiming it.
func (c *Counter) Load() int {
	return int(atomic.LoadInt64(&c.v))
}

// DistributeWork splits [0, n) into up to numWorkers contiguous, roughly
// equal ranges, used by sections (like the Riccati sweep across partitions)
// where each worker owns a pre-computed contiguous block instead of
// claiming individual indices from a Counter.
func DistributeWork(n, numWorkers int) [][2]int {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > n {
		numWorkers = n
	}
	if numWorkers <= 0 {
		return nil
	}
	ranges := make([][2]int, 0, numWorkers)
	chunk := (n + numWorkers - 1) / numWorkers
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}
