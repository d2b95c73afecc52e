package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// PowerSpectrum returns the one-sided amplitude spectrum of data with its
// mean removed. Any length is accepted.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	centered := make([]float64, len(data))
	copy(centered, data)
	floats.AddConst(-floats.Sum(data)/float64(len(data)), centered)

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// Frequencies returns the frequency in Hz of each PowerSpectrum bin for n
// samples spaced dt ms apart.
func Frequencies(n int, dt float64) []float64 {
	out := make([]float64, n/2)
	for i := range out {
		out[i] = float64(i) * 1000 / (float64(n) * dt)
	}
	return out
}

// Peak returns the frequency of the largest spectral bin, skipping DC.
func Peak(ps, hz []float64) float64 {
	if len(ps) < 2 {
		return 0
	}
	return hz[1+floats.MaxIdx(ps[1:])]
}
