package propagator

import "gonum.org/v1/gonum/mat"

// AlphaSystem returns the system matrix of the alpha-current membrane with
// state order (y1, y2, y3): y1' = -y1/tauSyn, y2' = y1 - y2/tauSyn,
// y3' = y2/C - y3/tauM.
func AlphaSystem(tauM, tauSyn, c float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		-1 / tauSyn, 0, 0,
		1, -1 / tauSyn, 0,
		0, 1 / c, -1 / tauM,
	})
}

// ExpSystem returns the system matrix of the exponential-current membrane
// with state order (i_syn, V).
func ExpSystem(tauM, tauSyn, c float64) *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		-1 / tauSyn, 0,
		1 / c, -1 / tauM,
	})
}

// Exact returns exp(A*h), the propagator matrix of x' = A x over h.
func Exact(a mat.Matrix, h float64) *mat.Dense {
	var scaled, p mat.Dense
	scaled.Scale(h, a)
	p.Exp(&scaled)
	return &p
}
