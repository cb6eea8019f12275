package examples

import "github.com/san-kum/ddpsolve/internal/ddp"

// ScalarLQR returns the n=1, m=1, f(x,u)=u, l=0.5*(x^2+u^2) plant on a
// single-subsystem, no-event schedule. Its finite-horizon optimum is
// analytic: M(T) = 0.5*tanh(T-t0)*x0^2.
func ScalarLQR() *LinearQuadratic {
	one := ddp.NewMatrix(1, 1)
	one[0][0] = 1
	zero := ddp.NewMatrix(1, 1)
	return &LinearQuadratic{
		Subsystems: []Subsystem{{A: zero, B: one, Q: one, R: one}},
		Schedule:   ddp.ModeSchedule{SubsystemID: []int{0}},
		StateN:     1,
		InputM:     1,
	}
}
