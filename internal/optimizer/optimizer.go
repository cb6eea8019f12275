// Package optimizer implements the iteration controller (C9): the
// top-level state machine that owns the nominal/cached trajectory pair, the
// controller stock, and drives runInit/runIteration/final-line-search to
// convergence.
package optimizer

import (
	"github.com/san-kum/ddpsolve/internal/cache"
	"github.com/san-kum/ddpsolve/internal/controller"
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/evaluator"
	"github.com/san-kum/ddpsolve/internal/linesearch"
	"github.com/san-kum/ddpsolve/internal/lq"
	"github.com/san-kum/ddpsolve/internal/riccati"
	"github.com/san-kum/ddpsolve/internal/rollout"
	"github.com/san-kum/ddpsolve/internal/settings"
	"github.com/san-kum/ddpsolve/internal/timing"
	"github.com/san-kum/ddpsolve/internal/trajectory"
	"github.com/san-kum/ddpsolve/internal/workerpool"
)

// IterationLogEntry is one row of the convergence history. Alpha and Merit
// are supplemented beyond spec.md's (cost, ISE1, ISE2) triple so the
// descent-condition property (M_k < M_{k-1}*(1-1e-3*alpha)) is
// reconstructable from the log alone.
type IterationLogEntry struct {
	Iteration int
	Cost      float64
	ISE1      float64
	ISE2      float64
	Alpha     float64
	Merit     float64
}

// PrimalSolution is the flattened result of a completed solve, concatenated
// across every active partition up to finalTime.
type PrimalSolution struct {
	Time         []float64
	State        []ddp.State
	Input        []ddp.Input
	Controller   *controller.Stock
	ModeSchedule ddp.ModeSchedule
}

// Optimizer is the C9 iteration controller.
type Optimizer struct {
	Settings *settings.Settings
	Pool     *workerpool.Pool
	Timing   *timing.Registry

	Dynamics        rollout.Dynamics
	OperatingPoints rollout.OperatingPoints
	Integrator      rollout.Integrator

	Evaluator    *evaluator.Evaluator
	Approximator *lq.Approximator
	Riccati      riccati.Solver
	Synthesizer  controller.Synthesizer

	nominal  *trajectory.Store
	cached   *trajectory.Store
	cacheMgr *cache.Manager
	stock    *controller.Stock

	P ddp.Partitioning
	E ddp.ModeSchedule

	initTime, finalTime float64
	initState           ddp.State

	iteration    int
	rewindCount  int
	log          []IterationLogEntry
	lastMetrics  evaluator.Metrics
	riccatiSeeds []riccati.Seed
	riccatiRes   [][]riccati.NodeResult
}

// New builds an optimizer for a fixed partitioning K, wiring the given
// collaborators. New allocates no trajectory or controller storage: Solve
// calls setupOptimizer(K) on the first call and whenever the number of
// partitions K changes.
func New(cfg *settings.Settings, pool *workerpool.Pool, dyn rollout.Dynamics, op rollout.OperatingPoints, integrator rollout.Integrator, ev *evaluator.Evaluator, approx *lq.Approximator, solver riccati.Solver, synth controller.Synthesizer) *Optimizer {
	return &Optimizer{
		Settings:        cfg,
		Pool:            pool,
		Timing:          timing.NewRegistry(),
		Dynamics:        dyn,
		OperatingPoints: op,
		Integrator:      integrator,
		Evaluator:       ev,
		Approximator:    approx,
		Riccati:         solver,
		Synthesizer:     synth,
	}
}

func (o *Optimizer) setupOptimizer(k int) {
	o.nominal = trajectory.NewStore(k)
	o.cached = trajectory.NewStore(k)
	o.cacheMgr = cache.NewManager(o.nominal, o.cached)
	o.cacheMgr.Debug = o.Settings.DebugCaching
	o.stock = controller.NewStock(k)
	o.riccatiSeeds = make([]riccati.Seed, k)
	o.riccatiRes = make([][]riccati.NodeResult, k)
}

// Solve runs runImpl: validation, optional controller replacement, runInit,
// runIteration to convergence, and a final line search.
func (o *Optimizer) Solve(initTime float64, initState ddp.State, finalTime float64, P ddp.Partitioning, E ddp.ModeSchedule, initialControllers *controller.Stock) error {
	if finalTime <= initTime || len(P) < 2 || !initState.IsFinite() || o.Settings.MaxLearningRate < o.Settings.MinLearningRate {
		return ddp.BadInput("solve: invalid times, empty partitioning, non-finite initial state, or maxLR < minLR")
	}

	k := P.NumPartitions()
	if o.nominal == nil || len(o.nominal.Partitions) != k {
		o.setupOptimizer(k)
	}
	o.P, o.E = P, E
	o.initTime, o.initState, o.finalTime = initTime, initState, finalTime

	if initialControllers != nil {
		n := o.stateDim()
		m := o.inputDim()
		if !initialControllers.IsAffineTimeVarying(n, m) || len(initialControllers.Partitions) != k {
			return ddp.BadController("solve: supplied controller is not affine time-varying or partition count mismatched")
		}
		o.stock = initialControllers
	}

	o.iteration = 0
	if err := o.runInit(); err != nil {
		return err
	}

	for o.iteration < o.Settings.MaxNumIterations {
		converged, _, err := o.runIteration()
		if err != nil {
			return err
		}
		o.iteration++
		if converged {
			break
		}
	}

	return o.finalLineSearch()
}

func (o *Optimizer) stateDim() int { return o.Dynamics.StateDim() }
func (o *Optimizer) inputDim() int { return o.Dynamics.ControlDim() }

// runInit performs the first cache-swap/rollout/correct/approximate/solve
// pass with whatever controller stock is currently populated (empty on a
// completely fresh problem).
func (o *Optimizer) runInit() error {
	o.cacheMgr.SwapToCache()

	if err := o.Timing.Time("rollout", func() error {
		driver := rollout.NewDriver(o.Integrator)
		driver.Debug = o.Settings.DebugPrintRollout
		_, err := driver.Run(o.Dynamics, o.OperatingPoints, o.stock, 1.0, o.initTime, o.initState, o.finalTime, o.P, o.E, o.nominal, &rollout.KillSwitch{})
		return err
	}); err != nil {
		return err
	}
	if err := o.cacheMgr.CorrectInitCache(); err != nil {
		return err
	}

	metrics, err := o.approximateAndSolve()
	if err != nil {
		return err
	}
	o.lastMetrics = metrics
	o.log = append(o.log, IterationLogEntry{Iteration: 0, Cost: metrics.Cost, ISE1: metrics.ISE1, ISE2: metrics.ISE2, Alpha: 0, Merit: metrics.Merit})
	return nil
}

// runIteration performs one cache-swap/line-search/approximate/solve pass
// and reports whether the convergence predicate now holds.
func (o *Optimizer) runIteration() (converged bool, alpha float64, err error) {
	o.cacheMgr.SwapToCache()

	prev := o.lastMetrics
	best, err := o.search()
	if err != nil {
		return false, 0, err
	}
	o.nominal = best.Store
	o.cacheMgr.Nominal = o.nominal
	if err := o.cacheMgr.CorrectInitCache(); err != nil {
		return false, 0, err
	}

	metrics, err := o.approximateAndSolve()
	if err != nil {
		return false, 0, err
	}
	o.lastMetrics = metrics
	o.log = append(o.log, IterationLogEntry{Iteration: o.iteration + 1, Cost: metrics.Cost, ISE1: metrics.ISE1, ISE2: metrics.ISE2, Alpha: best.Alpha, Merit: metrics.Merit})

	converged = o.checkConvergence(prev, metrics, best.Alpha)
	return converged, best.Alpha, nil
}

// checkConvergence implements spec.md section 4.8's predicate: a cost
// plateau or a null step, together with a small or plateaued constraint
// ISE.
func (o *Optimizer) checkConvergence(prev, cur evaluator.Metrics, alpha float64) bool {
	costPlateau := absDiff(cur.Merit, prev.Merit) <= o.Settings.MinRelCost
	nullStep := alpha == 0 && !o.stock.IsEmpty(0)
	ise1OK := cur.ISE1 <= o.Settings.MinAbsConstraint1ISE || absDiff(cur.ISE1, prev.ISE1) <= o.Settings.MinRelConstraint1ISE
	return (costPlateau || nullStep) && ise1OK
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

// finalLineSearch performs one last line search on the converged
// controller, per spec.md's runImpl step 6.
func (o *Optimizer) finalLineSearch() error {
	best, err := o.search()
	if err != nil {
		return err
	}
	o.nominal = best.Store
	o.cacheMgr.Nominal = o.nominal
	o.lastMetrics = best.Metrics
	return nil
}

// search wraps the linesearch.Coordinator with a rolloutAt closure that
// rolls the candidate stock out and evaluates its merit.
func (o *Optimizer) search() (linesearch.Candidate, error) {
	coord := &linesearch.Coordinator{
		Pool:            o.Pool,
		MaxLearningRate: o.Settings.MaxLearningRate,
		MinLearningRate: o.Settings.MinLearningRate,
		ContractionRate: o.Settings.LineSearchContractionRate,
	}
	driver := rollout.NewDriver(o.Integrator)
	driver.Debug = o.Settings.DebugPrintRollout
	kill := &rollout.KillSwitch{}

	rolloutAt := func(alpha float64, workerID int) (*trajectory.Store, evaluator.Metrics, error) {
		candidateStock := o.stock
		if alpha != 0 {
			candidateStock = o.stock.ScaleFeedForward(alpha)
		}
		store := trajectory.NewStore(len(o.P) - 1)
		_, err := driver.Run(o.Dynamics, o.OperatingPoints, candidateStock, alpha, o.initTime, o.initState, o.finalTime, o.P, o.E, store, kill)
		if err != nil {
			return nil, evaluator.Metrics{}, err
		}
		initActive, finalActive := o.P.ActiveRange(o.initTime, o.finalTime)
		metrics, err := o.Evaluator.Evaluate(store, initActive, finalActive, o.iteration, o.finalTime)
		if err != nil {
			return nil, evaluator.Metrics{}, err
		}
		return store, metrics, nil
	}

	if o.Settings.MaxLearningRate < 1e-12 {
		linesearch.ClearFeedForward(o.stock)
		store, metrics, err := rolloutAt(0, 0)
		if err != nil {
			return linesearch.Candidate{}, err
		}
		return linesearch.Candidate{Alpha: 0, Metrics: metrics, Store: store, BaseCost: metrics.Cost}, nil
	}

	return coord.Search(rolloutAt, kill)
}

// approximateAndSolve runs the LQ approximator, the right-to-left Riccati
// sweep, and controller synthesis, returning the merit at the resulting
// nominal trajectory (evaluated on the nominal, pre-line-search sample so
// the iteration log reflects what the backward pass consumed).
func (o *Optimizer) approximateAndSolve() (evaluator.Metrics, error) {
	initActive, finalActive := o.P.ActiveRange(o.initTime, o.finalTime)

	var terminalSeed riccati.Seed
	if err := o.Timing.Time("lq_approximate", func() error {
		var err error
		terminalSeed, err = o.Approximator.Approximate(o.nominal, o.E, initActive, finalActive, o.iteration, o.finalTime)
		return err
	}); err != nil {
		return evaluator.Metrics{}, err
	}

	if err := o.Timing.Time("riccati_sweep", func() error {
		if o.Settings.UseParallelRiccatiSolverFromInitItr && o.iteration > 0 && finalActive > initActive && o.Pool.NumWorkers() > 1 {
			return o.solveRiccatiParallel(initActive, finalActive, terminalSeed)
		}
		return o.solveRiccatiSequential(initActive, finalActive, terminalSeed)
	}); err != nil {
		return evaluator.Metrics{}, err
	}

	if err := o.Timing.Time("controller_synthesis", func() error {
		for i := initActive; i <= finalActive; i++ {
			o.stock.Partitions[i] = o.Synthesizer.Synthesize(o.riccatiRes[i])
		}
		return nil
	}); err != nil {
		return evaluator.Metrics{}, err
	}

	return o.Evaluator.Evaluate(o.nominal, initActive, finalActive, o.iteration, o.finalTime)
}

// solveRiccatiSequential runs the right-to-left Riccati sweep across
// [initActive, finalActive] on the calling goroutine, seeding each partition
// from the seed handed back by the one just solved to its right. This is the
// only path used for iteration 0, since no prior iteration's boundary seeds
// exist yet to warm-start a parallel sweep from.
func (o *Optimizer) solveRiccatiSequential(initActive, finalActive int, terminalSeed riccati.Seed) error {
	seed := terminalSeed
	for i := finalActive; i >= initActive; i-- {
		nodes := o.nominal.Partitions[i].ModelData
		results, next, err := o.Riccati.SolvePartition(nodes, seed)
		if err != nil {
			return err
		}
		if o.Settings.CheckNumericalStability {
			for k, r := range results {
				if !r.Sm.IsFinite() || !r.Sv.IsFinite() {
					return ddp.NumericalInstability(i, k, r.Time, "riccati value function")
				}
			}
		}
		o.riccatiRes[i] = results
		o.riccatiSeeds[i] = next
		seed = next
	}
	return nil
}

// solveRiccatiParallel splits [initActive, finalActive] into up to
// Pool.NumWorkers() contiguous partition-index blocks via
// workerpool.DistributeWork and solves each block's right-to-left sweep on
// its own worker. A block cannot wait for the block to its right, which may
// still be mid-sweep on another worker, so it warm-starts from a snapshot of
// the previous iteration's cached boundary seed at its right edge rather
// than the seed that sweep is currently producing. This mirrors
// ocs2_ddp's useParallelRiccatiSolverFromInitItr_ design, which is why it is
// never used for iteration 0: there is no previous iteration's seed to warm
// start from yet.
func (o *Optimizer) solveRiccatiParallel(initActive, finalActive int, terminalSeed riccati.Seed) error {
	numPartitions := finalActive - initActive + 1
	ranges := workerpool.DistributeWork(numPartitions, o.Pool.NumWorkers())
	if len(ranges) <= 1 {
		return o.solveRiccatiSequential(initActive, finalActive, terminalSeed)
	}

	warmStart := make([]riccati.Seed, len(ranges))
	for bi, r := range ranges {
		rightBoundary := initActive + r[1]
		if rightBoundary > finalActive {
			warmStart[bi] = terminalSeed
		} else {
			warmStart[bi] = o.riccatiSeeds[rightBoundary]
		}
	}

	return o.Pool.RunParallel(func(workerID int) error {
		for bi := workerID; bi < len(ranges); bi += o.Pool.NumWorkers() {
			r := ranges[bi]
			seed := warmStart[bi]
			for i := initActive + r[1] - 1; i >= initActive+r[0]; i-- {
				nodes := o.nominal.Partitions[i].ModelData
				results, next, err := o.Riccati.SolvePartition(nodes, seed)
				if err != nil {
					return err
				}
				if o.Settings.CheckNumericalStability {
					for k, res := range results {
						if !res.Sm.IsFinite() || !res.Sv.IsFinite() {
							return ddp.NumericalInstability(i, k, res.Time, "riccati value function")
						}
					}
				}
				o.riccatiRes[i] = results
				o.riccatiSeeds[i] = next
				seed = next
			}
		}
		return nil
	})
}

// Reset discards all trajectory/controller state; the next Solve call
// behaves as if the optimizer were freshly constructed for the same K.
func (o *Optimizer) Reset() {
	if o.nominal == nil {
		return
	}
	k := len(o.nominal.Partitions)
	o.setupOptimizer(k)
	o.iteration = 0
	o.log = nil
	o.lastMetrics = evaluator.Metrics{}
}

// Rewind shifts partitions [firstIndex, K) leftward by firstIndex, the
// warm-start operation an MPC wrapper uses when the receding horizon
// slides forward by firstIndex partitions. A firstIndex <= 0 or >= K clears
// every partition instead of shifting. Every call increments
// RewindCounter, mirroring ocs2_ddp's rewindCounter_ bookkeeping used to
// detect how many times the horizon has slid.
func (o *Optimizer) Rewind(firstIndex int) {
	o.nominal.Rewind(firstIndex)
	o.cached.Rewind(firstIndex)
	o.stock.Rewind(firstIndex)
	o.rewindCount++
}

// RewindCounter reports how many times Rewind has been called.
func (o *Optimizer) RewindCounter() int { return o.rewindCount }

// AdjustController re-stamps controller samples that fall on an old event
// boundary to the corresponding new event time, without re-optimizing.
// This is a pure re-stamping operation: two-samples-at-one-instant jump
// representations are preserved, only their shared timestamp moves.
func (o *Optimizer) AdjustController(newEventTimes, controllerEventTimes []float64) {
	n := len(newEventTimes)
	if len(controllerEventTimes) < n {
		n = len(controllerEventTimes)
	}
	for pi, samples := range o.stock.Partitions {
		for si := range samples {
			for e := 0; e < n; e++ {
				if samples[si].Tau == controllerEventTimes[e] {
					o.stock.Partitions[pi][si].Tau = newEventTimes[e]
				}
			}
		}
	}
}

// PrimalSolution flattens the nominal trajectory and controller up to
// finalTime. When useFeedbackPolicy is false the returned Controller is
// feed-forward-only, synthesized from (time, input) rather than the
// feedback stock.
func (o *Optimizer) PrimalSolution(finalTime float64) PrimalSolution {
	initActive, finalActive := o.P.ActiveRange(o.initTime, finalTime)
	sol := PrimalSolution{ModeSchedule: o.E}

	for i := initActive; i <= finalActive; i++ {
		part := &o.nominal.Partitions[i]
		sol.Time = append(sol.Time, part.Time...)
		sol.State = append(sol.State, part.State...)
		sol.Input = append(sol.Input, part.Input...)
	}

	if o.Settings.UseFeedbackPolicy {
		sol.Controller = o.stock
		return sol
	}

	ff := controller.NewStock(len(o.P) - 1)
	for i := initActive; i <= finalActive; i++ {
		part := &o.nominal.Partitions[i]
		samples := make([]controller.Sample, part.Len())
		for k := 0; k < part.Len(); k++ {
			m := o.inputDim()
			n := o.stateDim()
			samples[k] = controller.Sample{Tau: part.Time[k], K: ddp.NewMatrix(m, n), B: part.Input[k].Clone(), DeltaB: make(ddp.Vector, m)}
		}
		ff.Partitions[i] = samples
	}
	sol.Controller = ff
	return sol
}

// ValueFunction evaluates s(t) + Delta_x.(Sv+Sve) + 0.5*Delta_x.Sm.Delta_x
// at (t, x), interpolating the Riccati output from the partition
// containing t.
func (o *Optimizer) ValueFunction(t float64, x ddp.State) float64 {
	i := o.partitionAt(t)
	if i < 0 {
		return 0
	}
	xs := o.nominal.Partitions[i].State
	Sm, Sv, Sve, s, xNom := controller.ValueFunctionAt(o.riccatiRes[i], xs, t)
	if xNom == nil {
		return s
	}
	dx := x.Sub(xNom)
	return s + dx.Dot(Sv.Add(Sve)) + 0.5*dx.Dot(Sm.MulVec(dx))
}

// ValueFunctionStateDerivative evaluates Sm.Delta_x + Sv + Sve at (t, x).
func (o *Optimizer) ValueFunctionStateDerivative(t float64, x ddp.State) ddp.Vector {
	i := o.partitionAt(t)
	if i < 0 {
		return nil
	}
	xs := o.nominal.Partitions[i].State
	Sm, Sv, Sve, _, xNom := controller.ValueFunctionAt(o.riccatiRes[i], xs, t)
	if xNom == nil {
		return nil
	}
	dx := x.Sub(xNom)
	return Sm.MulVec(dx).Add(Sv).Add(Sve)
}

func (o *Optimizer) partitionAt(t float64) int {
	i, _ := o.P.ActiveRange(t, t)
	if i < 0 || i >= len(o.riccatiRes) {
		return -1
	}
	return i
}

// PerformanceIndices reports (cost, ISE1, ISE2) from the last completed
// evaluation.
func (o *Optimizer) PerformanceIndices() (cost, ise1, ise2 float64) {
	return o.lastMetrics.Cost, o.lastMetrics.ISE1, o.lastMetrics.ISE2
}

// IterationsLog returns the full convergence history for the last solve.
func (o *Optimizer) IterationsLog() []IterationLogEntry {
	return o.log
}
