package integrators

import "gonum.org/v1/gonum/floats"

// rk4Nodes are the stage offsets of the classical fourth-order scheme;
// rk4Weights combine the stage slopes.
var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 2.0 / 6, 2.0 / 6, 1.0 / 6}
)

// RK4 is the fixed-step reference the propagators command compares the
// exact membrane and synaptic current propagators against.
type RK4 struct {
	stage State
	acc   State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(sys System, x State, t, dt float64) State {
	n := len(x)
	if len(r.stage) != n {
		r.stage = make(State, n)
		r.acc = make(State, n)
	}
	for i := range r.acc {
		r.acc[i] = 0
	}

	var k State
	for s := range rk4Nodes {
		copy(r.stage, x)
		if s > 0 {
			// each stage starts from x along the previous slope
			floats.AddScaled(r.stage, rk4Nodes[s]*dt, k)
		}
		k = sys.Derive(r.stage, t+rk4Nodes[s]*dt)
		floats.AddScaled(r.acc, rk4Weights[s], k)
	}

	out := make(State, n)
	floats.AddScaledTo(out, x, dt, r.acc)
	return out
}
