// Package rollout implements the forward rollout driver (C4): it stitches
// a "controller interval" and an "operating-point interval" per partition,
// honoring events, and produces the per-partition trajectory plus the
// average time step taken.
package rollout

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/san-kum/ddpsolve/internal/controller"
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/trajectory"
)

// Dynamics is the plant model collaborator: dx/dt = Derive(x, u, t).
type Dynamics interface {
	Derive(x ddp.State, u ddp.Input, t float64) ddp.State
	StateDim() int
	ControlDim() int
}

// OperatingPoints supplies the open-loop input used on the operating-point
// interval, where no controller is available yet.
type OperatingPoints interface {
	InputAt(t float64) ddp.Input
}

// KillSwitch is an explicit cancellation token threaded through the
// integrator interface. Spec.md's original design used a process-wide flag
// polled by the numeric back-end; this redesign passes the token directly
// (see DESIGN.md) so an integrator's cancellation is scoped to the call
// that owns it rather than global process state.
type KillSwitch struct {
	signaled atomic.Bool
}

func (k *KillSwitch) Signal()          { k.signaled.Store(true) }
func (k *KillSwitch) Clear()           { k.signaled.Store(false) }
func (k *KillSwitch) Signaled() bool   { return k.signaled.Load() }

// Integrator is the numeric integration collaborator (C10). It steps from
// (t0,x0) to t1, using ctrl (nil on an operating-point interval) or falling
// back to op for the open-loop input, and records two coincident-time
// samples at every strictly-interior event. It must poll kill and return an
// error promptly once signaled.
type Integrator interface {
	Run(dyn Dynamics, t0 float64, x0 ddp.State, t1 float64, ctrl func(t float64, x ddp.State) ddp.Input, op OperatingPoints, events []float64, out *trajectory.Partition, kill *KillSwitch) (xFinal ddp.State, err error)
}

// Driver runs the forward rollout across a set of active partitions.
type Driver struct {
	Integrator Integrator

	// Debug, when set, traces which time segments of each partition were
	// driven by the controller stock versus the open-loop operating
	// points, written to Out (os.Stderr if Out is nil).
	Debug bool
	Out   io.Writer
}

// NewDriver returns a rollout driver backed by the given integrator
// collaborator.
func NewDriver(integrator Integrator) *Driver {
	return &Driver{Integrator: integrator}
}

func (d *Driver) trace(format string, args ...any) {
	if !d.Debug {
		return
	}
	out := d.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, format, args...)
}

// Result carries the rollout's summary statistics.
type Result struct {
	XFinal          ddp.State
	AverageTimeStep float64
}

// Run performs the forward rollout over partitions [initActive, finalActive]
// of P, honoring the mode schedule E, and writes the produced samples into
// out. The driver itself is stateless across calls.
func (d *Driver) Run(
	dyn Dynamics,
	op OperatingPoints,
	stock *controller.Stock,
	alpha float64,
	initTime float64,
	initState ddp.State,
	finalTime float64,
	P ddp.Partitioning,
	E ddp.ModeSchedule,
	out *trajectory.Store,
	kill *KillSwitch,
) (Result, error) {
	initActive, finalActive := P.ActiveRange(initTime, finalTime)

	controllerAvailableTill, partitionOfLastController := scanControllerAvailability(stock, P, initActive, finalActive)
	useControllerTill := computeUseControllerTill(stock, initActive, controllerAvailableTill, finalTime, E)

	out.Resize(P.NumPartitions())
	x := initState
	totalSteps := 0

	for i := initActive; i <= finalActive; i++ {
		part := &out.Partitions[i]
		part.Clear()

		t0 := P[i]
		if i == initActive {
			t0 = initTime
		}
		tf := P[i+1]
		if i == finalActive {
			tf = finalTime
		}
		if tf < t0 {
			tf = t0
		}

		controllerEnd := t0
		if useControllerTill > t0 {
			controllerEnd = min(useControllerTill, tf)
		}

		if controllerEnd > t0 {
			srcPartition := min(i, partitionOfLastController)
			ctrlFn := func(t float64, x ddp.State) ddp.Input {
				return stock.At(srcPartition, t).Compute(x, alpha)
			}
			d.trace("rollout: partition %d [%.6f, %.6f) driven by controller from partition %d\n", i, t0, controllerEnd, srcPartition)
			events := E.EventsIn(t0, controllerEnd)
			var err error
			x, err = d.Integrator.Run(dyn, t0, x, controllerEnd, ctrlFn, op, events, part, kill)
			if err != nil {
				return Result{}, err
			}
			totalSteps += stepsFor(part, t0, controllerEnd)
		}

		opStart := controllerEnd
		if len(part.PostEventIndices) > 0 && part.PostEventIndices[len(part.PostEventIndices)-1] == part.Len()-1 && part.Len() > 0 {
			poppedT, _, _, _, ok := part.PopLast()
			if ok {
				opStart = poppedT
			}
		}

		if tf > opStart {
			d.trace("rollout: partition %d [%.6f, %.6f) driven by operating points\n", i, opStart, tf)
			events := E.EventsIn(opStart, tf)
			var err error
			x, err = d.Integrator.Run(dyn, opStart, x, tf, nil, op, events, part, kill)
			if err != nil {
				return Result{}, err
			}
			totalSteps += stepsFor(part, opStart, tf)
		}
	}

	if !x.IsFinite() {
		return Result{}, ddp.RolloutDiverged(finalActive, finalTime)
	}

	avgDt := 0.0
	if totalSteps > 0 {
		avgDt = (finalTime - initTime) / float64(totalSteps)
	}
	return Result{XFinal: x, AverageTimeStep: avgDt}, nil
}

func stepsFor(part *trajectory.Partition, t0, t1 float64) int {
	if part.Len() == 0 || t1 <= t0 {
		return 0
	}
	return part.Len()
}

// scanControllerAvailability finds the latest tau with a non-empty
// controller, scanning partitions from initActive; the first empty
// controller ends the scan (no gaps permitted).
func scanControllerAvailability(stock *controller.Stock, P ddp.Partitioning, initActive, finalActive int) (till float64, lastPartition int) {
	if stock == nil || stock.IsEmpty(initActive) {
		return P[initActive], initActive
	}
	till = P[initActive]
	lastPartition = initActive
	for i := initActive; i <= finalActive; i++ {
		if stock.IsEmpty(i) {
			break
		}
		samples := stock.Partitions[i]
		till = samples[len(samples)-1].Tau
		lastPartition = i
	}
	return till, lastPartition
}

// computeUseControllerTill implements spec.md's "use-controller-until" rule.
func computeUseControllerTill(stock *controller.Stock, initActive int, controllerAvailableTill, finalTime float64, E ddp.ModeSchedule) float64 {
	if stock == nil || stock.IsEmpty(initActive) {
		return -1 // never use controller
	}
	till := finalTime
	for _, e := range E.EventTimes {
		if e >= controllerAvailableTill && e < till {
			till = e
		}
	}
	return till
}
