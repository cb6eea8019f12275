// Package examples provides concrete collaborator plugins the CLI and test
// suites use to exercise the optimizer end to end: a scalar LQR plant and a
// three-subsystem switched linear system.
package examples

import (
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/evaluator"
)

// Subsystem is one mode's linear dynamics and quadratic running cost:
// dx/dt = A*x + B*u, l(x,u) = 0.5*(x'Qx + u'Ru).
type Subsystem struct {
	A, B ddp.Matrix
	Q, R ddp.Matrix
}

// LinearQuadratic is a switched linear-quadratic plant: every collaborator
// interface the optimizer needs (dynamics, LQ node/event/terminal
// approximation, constraint/cost evaluation) reduces to matrix algebra
// against the active subsystem, so one type implements all of them.
type LinearQuadratic struct {
	Subsystems []Subsystem
	Schedule   ddp.ModeSchedule
	Qf         ddp.Matrix // terminal weight, nil for no terminal cost
	StateN     int
	InputM     int

	// UMax is a symmetric actuator saturation bound, -UMax <= u_i <=
	// UMax, enforced through the relaxed-barrier inequality penalty
	// rather than a hard rollout clamp. Zero disables it.
	UMax float64
}

func (s *LinearQuadratic) subsystemAt(t float64) Subsystem {
	return s.Subsystems[s.Schedule.SubsystemAt(t)]
}

// inequalityValues reports h_i = UMax - u_i and h_i = UMax + u_i for
// every input channel, feasible when both are non-negative. Returns nil
// when no bound is configured.
func (s *LinearQuadratic) inequalityValues(u ddp.Input) []float64 {
	if s.UMax <= 0 {
		return nil
	}
	h := make([]float64, 0, 2*len(u))
	for _, ui := range u {
		h = append(h, s.UMax-ui, s.UMax+ui)
	}
	return h
}

// --- rollout.Dynamics ---

func (s *LinearQuadratic) Derive(x ddp.State, u ddp.Input, t float64) ddp.State {
	sub := s.subsystemAt(t)
	return sub.A.MulVec(x).Add(sub.B.MulVec(u))
}

func (s *LinearQuadratic) StateDim() int   { return s.StateN }
func (s *LinearQuadratic) ControlDim() int { return s.InputM }

// --- rollout.OperatingPoints ---

// InputAt returns the zero operating input, matching a zero
// state/input operating trajectory pair.
func (s *LinearQuadratic) InputAt(t float64) ddp.Input {
	return make(ddp.Vector, s.InputM)
}

// --- lq.NodeApproximator ---

func (s *LinearQuadratic) Approximate(t float64, x ddp.State, u ddp.Input, subsystem int) (ddp.ModelData, error) {
	sub := s.Subsystems[subsystem]
	cost := 0.5 * (x.Dot(sub.Q.MulVec(x)) + u.Dot(sub.R.MulVec(u)))
	ineq := s.inequalityValues(u)
	return ddp.ModelData{
		Time:     t,
		Dynamics: ddp.DynamicsJacobian{A: sub.A, B: sub.B},
		Cost:     cost,
		Qv:       sub.Q.MulVec(x),
		Rv:       sub.R.MulVec(u),
		Qm:       sub.Q.Clone(),
		Rm:       sub.R.Clone(),
		Pm:       ddp.NewMatrix(s.InputM, s.StateN),
		NumIneq:  len(ineq),
	}, nil
}

// --- lq.EventApproximator ---

// ApproximateEvent reports no cost-to-go contribution and no state-only
// equality constraint tied to a subsystem switch: EXP1-style events only
// change which subsystem is active, they carry no jump cost.
func (s *LinearQuadratic) ApproximateEvent(t float64, x ddp.State, subsystem int) (float64, ddp.Vector, ddp.Matrix, ddp.Vector, ddp.Matrix, error) {
	return 0, nil, ddp.Matrix{}, nil, ddp.Matrix{}, nil
}

// --- lq.TerminalApproximator ---

func (s *LinearQuadratic) ApproximateTerminal(t float64, x ddp.State) (float64, ddp.Vector, ddp.Matrix, error) {
	if s.Qf == nil {
		return 0, make(ddp.Vector, s.StateN), ddp.NewMatrix(s.StateN, s.StateN), nil
	}
	return 0.5 * x.Dot(s.Qf.MulVec(x)), s.Qf.MulVec(x), s.Qf.Clone(), nil
}

// --- evaluator.ConstraintReader / EventReader / TerminalHeuristic ---

// ReadNode reports the running cost and, when UMax is configured, the
// actuator-saturation inequality values.
func (s *LinearQuadratic) ReadNode(t float64, x ddp.State, u ddp.Input) (evaluator.NodeValues, error) {
	sub := s.subsystemAt(t)
	cost := 0.5 * (x.Dot(sub.Q.MulVec(x)) + u.Dot(sub.R.MulVec(u)))
	return evaluator.NodeValues{Cost: cost, IneqH: s.inequalityValues(u)}, nil
}

func (s *LinearQuadratic) ReadEvent(t float64, x ddp.State) (float64, ddp.Vector, error) {
	return 0, nil, nil
}

func (s *LinearQuadratic) TerminalCost(t float64, x ddp.State) float64 {
	if s.Qf == nil {
		return 0
	}
	return 0.5 * x.Dot(s.Qf.MulVec(x))
}
