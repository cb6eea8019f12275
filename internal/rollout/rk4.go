package rollout

import (
	"sort"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/trajectory"
)

// EventJump is implemented by a Dynamics collaborator whose state jumps
// discontinuously across an event (e.g. a contact switch). Dynamics that
// don't implement it are treated as state-continuous across events.
type EventJump interface {
	Jump(x ddp.State, eventTime float64) ddp.State
}

// RK4 is the reference integrator collaborator: fixed-step classical
// Runge-Kutta 4, accepting either a feedback controller or an open-loop
// operating-point input source, and recording the two coincident-time
// samples an event
// requires.
type RK4 struct {
	Dt float64
}

// NewRK4 returns an RK4 integrator stepping with the given nominal step
// size (subdivided evenly so every sub-interval between events ends
// exactly on the requested boundary).
func NewRK4(dt float64) *RK4 {
	if dt <= 0 {
		dt = 0.01
	}
	return &RK4{Dt: dt}
}

func (r *RK4) Run(dyn Dynamics, t0 float64, x0 ddp.State, t1 float64, ctrl func(t float64, x ddp.State) ddp.Input, op OperatingPoints, events []float64, out *trajectory.Partition, kill *KillSwitch) (ddp.State, error) {
	x := x0.Clone()
	if t1 <= t0 {
		out.Append(t0, x, r.inputAt(dyn, t0, x, ctrl, op), ddp.ModelData{Time: t0})
		return x, nil
	}

	bounds := append([]float64{t0}, events...)
	sort.Float64s(bounds)
	bounds = append(bounds, t1)

	out.Append(t0, x.Clone(), r.inputAt(dyn, t0, x, ctrl, op), ddp.ModelData{Time: t0})

	for seg := 0; seg+1 < len(bounds); seg++ {
		segStart, segEnd := bounds[seg], bounds[seg+1]
		if segEnd <= segStart {
			continue
		}
		n := int((segEnd-segStart)/r.Dt + 0.5)
		if n < 1 {
			n = 1
		}
		dt := (segEnd - segStart) / float64(n)

		for step := 0; step < n; step++ {
			if kill != nil && kill.Signaled() {
				return nil, ddp.RolloutDiverged(-1, segStart)
			}
			t := segStart + float64(step)*dt
			x = r.step(dyn, x, t, dt, ctrl, op)
			tNext := t + dt
			out.Append(tNext, x.Clone(), r.inputAt(dyn, tNext, x, ctrl, op), ddp.ModelData{Time: tNext})
		}

		if seg+2 < len(bounds) {
			// segEnd is a strictly interior event: duplicate the sample so a
			// jump can be represented, marking the new tail as post-event.
			if jumper, ok := dyn.(EventJump); ok {
				x = jumper.Jump(x, segEnd)
			}
			out.MarkPostEvent()
			out.Append(segEnd, x.Clone(), r.inputAt(dyn, segEnd, x, ctrl, op), ddp.ModelData{Time: segEnd})
		}
	}

	if !x.IsFinite() {
		return nil, ddp.RolloutDiverged(-1, t1)
	}
	return x, nil
}

func (r *RK4) inputAt(dyn Dynamics, t float64, x ddp.State, ctrl func(float64, ddp.State) ddp.Input, op OperatingPoints) ddp.Input {
	if ctrl != nil {
		return ctrl(t, x)
	}
	if op != nil {
		return op.InputAt(t)
	}
	return make(ddp.Input, dyn.ControlDim())
}

func (r *RK4) step(dyn Dynamics, x ddp.State, t, dt float64, ctrl func(float64, ddp.State) ddp.Input, op OperatingPoints) ddp.State {
	n := len(x)

	u1 := r.inputAt(dyn, t, x, ctrl, op)
	k1 := dyn.Derive(x, u1, t)

	x2 := make(ddp.State, n)
	for i := range x2 {
		x2[i] = x[i] + dt*0.5*k1[i]
	}
	u2 := r.inputAt(dyn, t+dt*0.5, x2, ctrl, op)
	k2 := dyn.Derive(x2, u2, t+dt*0.5)

	x3 := make(ddp.State, n)
	for i := range x3 {
		x3[i] = x[i] + dt*0.5*k2[i]
	}
	u3 := r.inputAt(dyn, t+dt*0.5, x3, ctrl, op)
	k3 := dyn.Derive(x3, u3, t+dt*0.5)

	x4 := make(ddp.State, n)
	for i := range x4 {
		x4[i] = x[i] + dt*k3[i]
	}
	u4 := r.inputAt(dyn, t+dt, x4, ctrl, op)
	k4 := dyn.Derive(x4, u4, t+dt)

	out := make(ddp.State, n)
	dt6 := dt / 6.0
	for i := range out {
		out[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
