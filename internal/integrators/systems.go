package integrators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/spikesim/internal/propagator"
)

// Linear is x' = A x + b.
type Linear struct {
	A *mat.Dense
	B []float64
}

func (l *Linear) Dim() int {
	r, _ := l.A.Dims()
	return r
}

func (l *Linear) Derive(x State, t float64) State {
	var dx mat.VecDense
	dx.MulVec(l.A, mat.NewVecDense(len(x), append([]float64(nil), x...)))
	out := make(State, len(x))
	for i := range out {
		out[i] = dx.AtVec(i)
		if l.B != nil {
			out[i] += l.B[i]
		}
	}
	return out
}

// AlphaMembrane is the subthreshold alpha-current neuron with constant
// input ie, state (y1, y2, y3).
func AlphaMembrane(tauM, tauSyn, c, ie float64) *Linear {
	return &Linear{A: propagator.AlphaSystem(tauM, tauSyn, c), B: []float64{0, 0, ie / c}}
}

// ExpMembrane is the exponential-current neuron with constant input ie,
// state (i_syn, V).
func ExpMembrane(tauM, tauSyn, c, ie float64) *Linear {
	return &Linear{A: propagator.ExpSystem(tauM, tauSyn, c), B: []float64{0, ie / c}}
}
