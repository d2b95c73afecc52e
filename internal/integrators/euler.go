package integrators

import "gonum.org/v1/gonum/floats"

// Euler is first order. It shows by how much a naive step would miss the
// exponential decay of the membrane.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys System, x State, t, dt float64) State {
	out := make(State, len(x))
	floats.AddScaledTo(out, x, dt, sys.Derive(x, t))
	return out
}
