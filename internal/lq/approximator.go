// Package lq implements the LQ approximator orchestrator (C6): it
// schedules parallel per-node linear-quadratic approximation, applies
// penalty augmentation at event times, and produces the terminal Riccati
// seed.
package lq

import (
	"fmt"

	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/riccati"
	"github.com/san-kum/ddpsolve/internal/trajectory"
	"github.com/san-kum/ddpsolve/internal/workerpool"
)

// NodeApproximator is the per-node LQ worker collaborator (C10): it
// populates the unconstrained quadratic data and every active constraint
// at one node.
type NodeApproximator interface {
	Approximate(t float64, x ddp.State, u ddp.Input, subsystem int) (ddp.ModelData, error)
}

// EventApproximator computes the quadratic cost-to-go contribution tied to
// an event, and the state-only equality constraint (if any) evaluated at
// the event.
type EventApproximator interface {
	ApproximateEvent(t float64, x ddp.State, subsystem int) (q float64, Qv ddp.Vector, Qm ddp.Matrix, hv ddp.Vector, hvDevX ddp.Matrix, err error)
}

// TerminalApproximator evaluates the terminal cost heuristic at finalTime.
type TerminalApproximator interface {
	ApproximateTerminal(t float64, x ddp.State) (s float64, Sv ddp.Vector, Sm ddp.Matrix, err error)
}

// Approximator is the C6 orchestrator.
type Approximator struct {
	Nodes    NodeApproximator
	Events   EventApproximator
	Terminal TerminalApproximator
	Pool     *workerpool.Pool

	MakePSD                 bool
	EpsDiag                 float64
	CheckNumericalStability bool

	PenaltyBase  float64 // lambda0
	PenaltyCoeff float64 // rho
	InputDim     int     // m, for constraint dimension checking
}

// lambda returns lambda0 * rho^iteration.
func (a *Approximator) lambda(iteration int) float64 {
	l := a.PenaltyBase
	for i := 0; i < iteration; i++ {
		l *= a.PenaltyCoeff
	}
	return l
}

// Approximate runs the per-node LQ approximation over every active
// partition in parallel, augments event-boundary nodes with the state-only
// constraint penalty, and returns the terminal Riccati seed evaluated at
// finalTime.
func (a *Approximator) Approximate(store *trajectory.Store, E ddp.ModeSchedule, initActive, finalActive int, iteration int, finalTime float64) (riccati.Seed, error) {
	type job struct{ partition, node int }
	var jobs []job
	for i := initActive; i <= finalActive; i++ {
		n := store.Partitions[i].Len()
		for k := 0; k < n; k++ {
			jobs = append(jobs, job{i, k})
		}
	}

	counter := &workerpool.Counter{}

	err := a.Pool.RunParallel(func(workerID int) error {
		for {
			idx := counter.Next()
			if idx >= len(jobs) {
				return nil
			}
			j := jobs[idx]
			part := &store.Partitions[j.partition]
			t := part.Time[j.node]
			x := part.State[j.node]
			u := part.Input[j.node]
			subsystem := E.SubsystemAt(t)

			md, err := a.Nodes.Approximate(t, x, u, subsystem)
			if err != nil {
				return err
			}
			md.Time = t
			if md.NumStateInputEq > a.InputDim {
				return ddp.ConstraintDimOverflow(j.partition, j.node, t, "state-input equality", md.NumStateInputEq, a.InputDim)
			}
			if md.NumStateOnlyEq > a.InputDim {
				return ddp.ConstraintDimOverflow(j.partition, j.node, t, "state-only equality", md.NumStateOnlyEq, a.InputDim)
			}
			if a.MakePSD {
				ddp.MakePSD(md.Qm)
			} else {
				md.Qm.AddDiag(a.EpsDiag)
			}
			if a.CheckNumericalStability && (!md.Qm.IsFinite() || !md.Qv.IsFinite() || !md.Rm.IsFinite() || !md.Rv.IsFinite()) {
				return ddp.NumericalInstability(j.partition, j.node, t, "lq node data")
			}
			part.ModelData[j.node] = md
		}
	})
	if err != nil {
		return riccati.Seed{}, err
	}

	lambda := a.lambda(iteration)
	for i := initActive; i <= finalActive; i++ {
		part := &store.Partitions[i]
		for _, postIdx := range part.PostEventIndices {
			preIdx := postIdx - 1
			if preIdx < 0 || preIdx >= part.Len() {
				continue
			}
			t := part.Time[preIdx]
			x := part.State[preIdx]
			subsystem := E.SubsystemAt(t)
			q, Qv, Qm, hv, hvDevX, err := a.Events.ApproximateEvent(t, x, subsystem)
			if err != nil {
				return riccati.Seed{}, err
			}
			md := &part.ModelData[preIdx]
			md.NumStateOnlyEqFinal = len(hv)
			if md.NumStateOnlyEqFinal > a.InputDim {
				return riccati.Seed{}, ddp.ConstraintDimOverflow(i, preIdx, t, "event state-only equality", md.NumStateOnlyEqFinal, a.InputDim)
			}
			md.HvFinal = hv
			md.HvFinalDevX = hvDevX
			md.Cost += q
			md.Qv = addVec(md.Qv, Qv)
			md.Qm = addMat(md.Qm, Qm)

			if len(hv) > 0 {
				md.Cost += 0.5 * lambda * hv.SquaredNorm()
				md.Qv = addVec(md.Qv, hvDevX.Transpose().MulVec(hv).Scale(lambda))
				md.Qm = addMat(md.Qm, scaleMat(hvDevX.Transpose().Mul(hvDevX), lambda))
			}
			if a.MakePSD {
				ddp.MakePSD(md.Qm)
			} else {
				md.Qm.AddDiag(a.EpsDiag)
			}
			if a.CheckNumericalStability && (!md.Qm.IsFinite() || !md.Qv.IsFinite()) {
				return riccati.Seed{}, ddp.NumericalInstability(i, preIdx, t, "lq event-augmented node data")
			}
		}
	}

	if a.Terminal == nil {
		return riccati.Seed{}, fmt.Errorf("lq: no terminal approximator configured")
	}
	lastPart := &store.Partitions[finalActive]
	if lastPart.Len() == 0 {
		return riccati.Seed{}, fmt.Errorf("lq: final active partition has no samples")
	}
	xFinal := lastPart.State[lastPart.Len()-1]
	s, Sv, Sm, err := a.Terminal.ApproximateTerminal(finalTime, xFinal)
	if err != nil {
		return riccati.Seed{}, err
	}
	if a.MakePSD {
		ddp.MakePSD(Sm)
	} else {
		Sm.AddDiag(a.EpsDiag)
	}
	if a.CheckNumericalStability && (!Sm.IsFinite() || !Sv.IsFinite()) {
		return riccati.Seed{}, ddp.NumericalInstability(finalActive, lastPart.Len()-1, finalTime, "lq terminal value function")
	}
	return riccati.Seed{Sm: Sm, Sv: Sv, Sve: make(ddp.Vector, len(Sv)), S: s, XFinal: xFinal}, nil
}

func addVec(a, b ddp.Vector) ddp.Vector {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(ddp.Vector, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func addMat(a, b ddp.Matrix) ddp.Matrix {
	if a.Rows() == 0 {
		return b
	}
	if b.Rows() == 0 {
		return a
	}
	out := ddp.NewMatrix(a.Rows(), a.Cols())
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func scaleMat(a ddp.Matrix, s float64) ddp.Matrix {
	out := ddp.NewMatrix(a.Rows(), a.Cols())
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] * s
		}
	}
	return out
}
