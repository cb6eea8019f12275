package controller

import (
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/riccati"
)

// Synthesizer is the controller-synthesis collaborator facade (C10): it
// turns one partition's Riccati output into the (tau, K, b, DeltaB) samples
// the rollout driver and line search consume.
type Synthesizer interface {
	Synthesize(results []riccati.NodeResult) []Sample
}

// DefaultSynthesizer copies each Riccati node's gain straight into a
// controller Sample; this is the entirety of "from Riccati outputs
// populate (tau_k, K_k, b_k, DeltaB_k)" once the Riccati collaborator has
// already computed the gains, as it does in DefaultSolver.
type DefaultSynthesizer struct{}

func (DefaultSynthesizer) Synthesize(results []riccati.NodeResult) []Sample {
	out := make([]Sample, len(results))
	for i, r := range results {
		out[i] = Sample{Tau: r.Time, K: r.K, B: r.B, DeltaB: r.DeltaB}
	}
	return out
}

// ValueFunctionAt linearly interpolates (Sm, Sv, Sve, s, xNominal) from the
// Riccati result trajectory of one partition, used by Optimizer.ValueFunction.
func ValueFunctionAt(results []riccati.NodeResult, xNominal []ddp.State, t float64) (Sm ddp.Matrix, Sv, Sve ddp.Vector, s float64, xNom ddp.State) {
	n := len(results)
	if n == 0 {
		return nil, nil, nil, 0, nil
	}
	idx := 0
	for idx < n-1 && results[idx+1].Time <= t {
		idx++
	}
	if idx == n-1 || results[idx].Time >= t {
		return results[idx].Sm, results[idx].Sv, results[idx].Sve, results[idx].S, xNominal[idx]
	}
	a, b := results[idx], results[idx+1]
	frac := 0.0
	if b.Time > a.Time {
		frac = (t - a.Time) / (b.Time - a.Time)
	}
	Sm = lerpMatrix(a.Sm, b.Sm, frac)
	Sv = lerpVector(a.Sv, b.Sv, frac)
	Sve = lerpVector(a.Sve, b.Sve, frac)
	s = a.S + frac*(b.S-a.S)
	xNom = lerpVector(xNominal[idx], xNominal[idx+1], frac)
	return
}
