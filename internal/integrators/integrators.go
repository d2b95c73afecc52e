// Package integrators holds explicit ODE solvers for the subthreshold
// neuron equations. The simulator itself uses exact propagators; these
// serve as an independent reference when checking them.
package integrators

type State []float64

// System is a time-invariant or time-varying ODE dx/dt = f(x, t).
type System interface {
	Derive(x State, t float64) State
	Dim() int
}

type Integrator interface {
	Step(sys System, x State, t, dt float64) State
}

// Integrate advances x0 by n steps of dt and returns the final state.
func Integrate(in Integrator, sys System, x0 State, dt float64, n int) State {
	x := append(State(nil), x0...)
	for i := 0; i < n; i++ {
		x = in.Step(sys, x, float64(i)*dt, dt)
	}
	return x
}

// ByName returns a fresh integrator.
func ByName(name string) (Integrator, bool) {
	switch name {
	case "euler":
		return NewEuler(), true
	case "rk4":
		return NewRK4(), true
	case "rk45":
		return NewRK45(), true
	}
	return nil, false
}
