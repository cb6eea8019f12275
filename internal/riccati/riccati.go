// Package riccati defines the Riccati-sweep collaborator facade (C10):
// given terminal value-function data and node-wise LQ model data, populate
// the value-function trajectory and the affine gains induced by it. The
// exact algebraic form of the Riccati equation and its numerical solver are
// outside the DDP core's scope (spec.md's "collaborator, §6"); this package
// ships one concrete reference Solver so the optimizer is runnable and
// testable end to end.
package riccati

import (
	"math"

	"github.com/san-kum/ddpsolve/internal/ddp"
)

// Seed is the value-function data flowing across a partition boundary: the
// terminal condition on the right, or the boundary condition inherited by
// the next partition to the left after a sweep.
type Seed struct {
	Sm     ddp.Matrix // n x n, value function state Hessian
	Sv     ddp.Vector // n, value function state gradient
	Sve    ddp.Vector // n, event contribution to the state gradient
	S      float64    // value function bias
	XFinal ddp.State  // state this seed was linearized about
}

// NodeResult is the per-node value function and synthesized affine gain
// produced by a backward sweep.
type NodeResult struct {
	Time   float64
	Sm     ddp.Matrix
	Sv     ddp.Vector
	Sve    ddp.Vector
	S      float64
	K      ddp.Matrix
	B      ddp.Vector
	DeltaB ddp.Vector
}

// Solver is the Riccati-sweep collaborator: given one partition's node-wise
// model data (already produced by the LQ approximator, including any event
// penalty augmentation) and the terminal seed flowing in from the right, it
// populates the per-node value function and gain trajectory and returns the
// seed to hand to the partition on its left.
type Solver interface {
	SolvePartition(nodes []ddp.ModelData, terminal Seed) ([]NodeResult, Seed, error)
}

// DefaultSolver integrates the continuous-time backward Riccati
// differential equation with explicit Euler steps over the node grid
// already produced by the rollout's nominal trajectory, regularizing the
// input Hessian the same way the LQ approximator does before inverting it.
type DefaultSolver struct {
	// RegDiag is added to R before every inversion, guarding against a
	// singular or indefinite input Hessian near convergence.
	RegDiag float64
}

// NewDefaultSolver returns a solver with a small default regularization.
func NewDefaultSolver() *DefaultSolver {
	return &DefaultSolver{RegDiag: 1e-8}
}

func (s *DefaultSolver) SolvePartition(nodes []ddp.ModelData, terminal Seed) ([]NodeResult, Seed, error) {
	n := len(nodes)
	results := make([]NodeResult, n)
	if n == 0 {
		return results, terminal, nil
	}

	Sm, Sv, Sve, val := terminal.Sm.Clone(), terminal.Sv.Clone(), terminal.Sve.Clone(), terminal.S

	for k := n - 1; k >= 0; k-- {
		md := nodes[k]
		dt := 0.0
		if k+1 < n {
			dt = nodes[k+1].Time - md.Time
		} else if k > 0 {
			dt = md.Time - nodes[k-1].Time
		}

		A, B := md.Dynamics.A, md.Dynamics.B
		stateDim := A.Rows()
		inputDim := B.Cols()
		if stateDim == 0 {
			stateDim = len(md.Qv)
		}

		R := md.Rm.Clone()
		if R.Rows() == 0 {
			R = ddp.NewMatrix(inputDim, inputDim)
		}
		R.AddDiag(s.RegDiag)
		_ = invert(R)

		Bt := transpose(B)
		BtSm := matMul(Bt, Sm)
		Hu := matAdd(R, matMul(BtSm, B))
		Hu.AddDiag(s.RegDiag)
		HuInv := invert(Hu)

		P := md.Pm
		if P.Rows() == 0 {
			P = ddp.NewMatrix(inputDim, stateDim)
		}
		Gu := matAdd(P, matMul(BtSm, A))
		K := matScale(matMul(HuInv, Gu), -1)

		Bt_Sv := Bt.MulVec(Sv.Add(Sve))
		r := md.Rv
		if r == nil {
			r = make(ddp.Vector, inputDim)
		}
		gu := r.Add(Bt_Sv)
		deltaB := matScale(HuInv, -1).MulVec(gu)

		results[k] = NodeResult{
			Time: md.Time, Sm: Sm.Clone(), Sv: Sv.Clone(), Sve: Sve.Clone(), S: val,
			K: K, B: make(ddp.Vector, inputDim), DeltaB: deltaB,
		}

		if dt <= 0 || k == 0 {
			continue
		}

		Acl := matAdd(A, matMul(B, K))
		Q := md.Qm
		if Q.Rows() == 0 {
			Q = ddp.NewMatrix(stateDim, stateDim)
		}
		dSm := matSub(matAdd(matAdd(matMul(transpose(Acl), Sm), matMul(Sm, Acl)), Q), matMul(transpose(K), matMul(Hu, K)))
		q := md.Qv
		if q == nil {
			q = make(ddp.Vector, stateDim)
		}
		dSv := matAdd1(transpose(Acl).MulVec(Sv), q).Sub(transpose(K).MulVec(gu))
		dVal := -(md.Cost)

		Sm = matAdd(Sm, matScale(dSm, dt))
		Sv = Sv.Add(dSv.Scale(dt))
		val = val - dVal*dt
	}
	Sm.Symmetrize()
	next := Seed{Sm: Sm, Sv: Sv, Sve: Sve, S: val, XFinal: terminal.XFinal}
	return results, next, nil
}

func matAdd1(a, b ddp.Vector) ddp.Vector { return a.Add(b) }

// --- small dense linear algebra helpers, scoped to this package's node-size matrices ---

func transpose(m ddp.Matrix) ddp.Matrix {
	if m.Rows() == 0 {
		return ddp.Matrix{}
	}
	out := ddp.NewMatrix(m.Cols(), m.Rows())
	for i, row := range m {
		for j, v := range row {
			out[j][i] = v
		}
	}
	return out
}

func matMul(a, b ddp.Matrix) ddp.Matrix {
	if a.Rows() == 0 || b.Rows() == 0 {
		return ddp.Matrix{}
	}
	out := ddp.NewMatrix(a.Rows(), b.Cols())
	for i := 0; i < a.Rows(); i++ {
		for k := 0; k < a.Cols() && k < b.Rows(); k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := 0; j < b.Cols(); j++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func matAdd(a, b ddp.Matrix) ddp.Matrix {
	if a.Rows() == 0 {
		return b.Clone()
	}
	if b.Rows() == 0 {
		return a.Clone()
	}
	out := ddp.NewMatrix(a.Rows(), a.Cols())
	for i := range out {
		for j := range out[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func matSub(a, b ddp.Matrix) ddp.Matrix {
	if b.Rows() == 0 {
		return a.Clone()
	}
	out := ddp.NewMatrix(a.Rows(), a.Cols())
	for i := range out {
		for j := range out[i] {
			out[i][j] = a[i][j] - b[i][j]
		}
	}
	return out
}

func matScale(a ddp.Matrix, s float64) ddp.Matrix {
	out := ddp.NewMatrix(a.Rows(), a.Cols())
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] * s
		}
	}
	return out
}

// invert computes the inverse of a small square matrix via Gauss-Jordan
// elimination with partial pivoting. Node-sized (input-dimension) matrices
// only; not intended for large systems.
func invert(a ddp.Matrix) ddp.Matrix {
	n := a.Rows()
	if n == 0 {
		return ddp.Matrix{}
	}
	aug := ddp.NewMatrix(n, 2*n)
	for i := 0; i < n; i++ {
		copy(aug[i][:n], a[i])
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(aug[r][col]); v > best {
				best, pivot = v, r
			}
		}
		if best < 1e-14 {
			aug[col][col] += 1e-8
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		pv := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}
	out := ddp.NewMatrix(n, n)
	for i := 0; i < n; i++ {
		copy(out[i], aug[i][n:])
	}
	return out
}
