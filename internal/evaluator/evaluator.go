// Package evaluator implements the constraint/cost evaluator (C5): it
// integrates constraint ISE and running cost along a rollout with the
// trapezoidal rule and combines them into the merit function the line
// search monotonizes.
package evaluator

import (
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/trajectory"
)

// NodeValues is what the "worker-owned constraint object" collaborator
// reports for one node: the running cost and every active constraint's
// value.
type NodeValues struct {
	Cost  float64
	Ev    ddp.Vector // active state-input equality constraint value, len == nc1
	Hv    ddp.Vector // active state-only equality constraint value, len == nc2
	IneqH []float64  // active inequality constraint raw values, len == ncIneq
}

// ConstraintReader is the per-node value collaborator, cloned once per
// worker so no locking is required while it is read during a parallel
// section.
type ConstraintReader interface {
	ReadNode(t float64, x ddp.State, u ddp.Input) (NodeValues, error)
}

// EventReader reports the terminal cost contribution and the state-only
// equality constraint tied to an event.
type EventReader interface {
	ReadEvent(t float64, x ddp.State) (terminalCost float64, hvFinal ddp.Vector, err error)
}

// PenaltyEngine is the relaxed-barrier collaborator turning raw inequality
// values into a violation measure and a smooth penalty.
type PenaltyEngine interface {
	Violation(h []float64) float64
	Penalty(h []float64) float64
}

// TerminalHeuristic evaluates the terminal cost-to-go heuristic at
// finalTime.
type TerminalHeuristic interface {
	TerminalCost(t float64, x ddp.State) float64
}

// Evaluator is the C5 constraint/cost evaluator.
type Evaluator struct {
	Constraints ConstraintReader
	Events      EventReader
	Penalty     PenaltyEngine
	Terminal    TerminalHeuristic

	PenaltyBase  float64 // lambda0
	PenaltyCoeff float64 // rho
	InputDim     int     // m
}

func (e *Evaluator) lambda(iteration int) float64 {
	l := e.PenaltyBase
	for i := 0; i < iteration; i++ {
		l *= e.PenaltyCoeff
	}
	return l
}

// Metrics is the set of integrated quantities produced by one Evaluate
// call.
type Metrics struct {
	Cost        float64
	ISE1        float64
	ISE2        float64
	ISEIneq     float64
	PenaltyIneq float64
	ISE2Final   float64
	Merit       float64
}

// Evaluate integrates cost and constraint ISE across every active
// partition and returns the merit function value M = cost +
// 0.5*lambda*(ISE2+ISE2Final) + PenaltyIneq.
func (e *Evaluator) Evaluate(store *trajectory.Store, initActive, finalActive int, iteration int, finalTime float64) (Metrics, error) {
	var m Metrics

	for i := initActive; i <= finalActive; i++ {
		part := &store.Partitions[i]
		n := part.Len()
		if n == 0 {
			continue
		}

		values := make([]NodeValues, n)
		for k := 0; k < n; k++ {
			v, err := e.Constraints.ReadNode(part.Time[k], part.State[k], part.Input[k])
			if err != nil {
				return Metrics{}, err
			}
			if len(v.Ev) > e.InputDim {
				return Metrics{}, ddp.ConstraintDimOverflow(i, k, part.Time[k], "state-input equality", len(v.Ev), e.InputDim)
			}
			if len(v.Hv) > e.InputDim {
				return Metrics{}, ddp.ConstraintDimOverflow(i, k, part.Time[k], "state-only equality", len(v.Hv), e.InputDim)
			}
			values[k] = v
		}

		for k := 0; k+1 < n; k++ {
			dt := part.Time[k+1] - part.Time[k]
			if dt <= 0 {
				continue
			}
			m.Cost += 0.5 * (values[k].Cost + values[k+1].Cost) * dt
			m.ISE1 += 0.5 * (values[k].Ev.SquaredNorm() + values[k+1].Ev.SquaredNorm()) * dt
			m.ISE2 += 0.5 * (values[k].Hv.SquaredNorm() + values[k+1].Hv.SquaredNorm()) * dt

			if e.Penalty != nil {
				v0 := e.Penalty.Violation(values[k].IneqH)
				v1 := e.Penalty.Violation(values[k+1].IneqH)
				m.ISEIneq += 0.5 * (v0 + v1) * dt
				p0 := e.Penalty.Penalty(values[k].IneqH)
				p1 := e.Penalty.Penalty(values[k+1].IneqH)
				m.PenaltyIneq += 0.5 * (p0 + p1) * dt
			}
		}

		for _, postIdx := range part.PostEventIndices {
			preIdx := postIdx - 1
			if preIdx < 0 || preIdx >= n || e.Events == nil {
				continue
			}
			terminalCost, hvFinal, err := e.Events.ReadEvent(part.Time[preIdx], part.State[preIdx])
			if err != nil {
				return Metrics{}, err
			}
			if len(hvFinal) > e.InputDim {
				return Metrics{}, ddp.ConstraintDimOverflow(i, preIdx, part.Time[preIdx], "event state-only equality", len(hvFinal), e.InputDim)
			}
			m.Cost += terminalCost
			m.ISE2Final += hvFinal.SquaredNorm()
		}
	}

	if e.Terminal != nil && finalActive >= initActive {
		lastPart := &store.Partitions[finalActive]
		if lastPart.Len() > 0 {
			m.Cost += e.Terminal.TerminalCost(finalTime, lastPart.State[lastPart.Len()-1])
		}
	}

	lambda := e.lambda(iteration)
	m.Merit = m.Cost + 0.5*lambda*(m.ISE2+m.ISE2Final) + m.PenaltyIneq
	return m, nil
}
