// Package propagator computes exact state-transition coefficients for the
// linear subthreshold dynamics of leaky integrate-and-fire neurons.
//
// All coefficients map the state at the start of an interval of length h
// to the state at its end under zero external input; inputs are added by
// superposition. When the synaptic and membrane rates nearly coincide the
// closed forms divide by a vanishing rate difference, so the coefficients
// are built on the entire functions phi1 and phi2 and switch to their
// series expansion below SeriesThreshold.
package propagator

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDegenerateTimeConstants = errors.New("propagator: membrane and synaptic time constants must differ")
	ErrTimeConstant            = errors.New("propagator: time constant must be positive")
	ErrCapacitance             = errors.New("propagator: capacitance must be positive")
)

// SeriesThreshold bounds |(1/tauSyn - 1/tauM) * h| below which the series
// expansions are used.
const SeriesThreshold = 1e-2

const seriesTerms = 10

// Phi1 returns (1 - exp(-x)) / x, continuous at x = 0.
func Phi1(x float64) float64 {
	if math.Abs(x) < SeriesThreshold {
		// sum_k (-x)^k / (k+1)!
		sum, term := 0.0, 1.0
		for k := 0; k < seriesTerms; k++ {
			sum += term
			term *= -x / float64(k+2)
		}
		return sum
	}
	return -math.Expm1(-x) / x
}

// Phi2 returns (1 - exp(-x)(1 + x)) / x^2, continuous at x = 0.
func Phi2(x float64) float64 {
	if math.Abs(x) < SeriesThreshold {
		// sum_k (-1)^k (k+1) x^k / (k+2)!
		sum, pow, fact := 0.0, 1.0, 2.0
		for k := 0; k < seriesTerms; k++ {
			sum += float64(k+1) * pow / fact
			pow *= -x
			fact *= float64(k + 3)
		}
		return sum
	}
	return (Phi1(x) - math.Exp(-x)) / x
}

// Singular reports whether the rate difference of the pair is small enough
// that the series branch is taken.
func Singular(h, tauM, tauSyn float64) bool {
	return math.Abs((1/tauSyn-1/tauM)*h) < SeriesThreshold
}

func validate(tauM, tauSyn, c float64) error {
	if !(tauM > 0) || !(tauSyn > 0) {
		return fmt.Errorf("%w: tau_m=%g tau_syn=%g", ErrTimeConstant, tauM, tauSyn)
	}
	if !(c > 0) {
		return fmt.Errorf("%w: C_m=%g", ErrCapacitance, c)
	}
	return nil
}

// ValidateDistinct rejects exactly equal time constants for models whose
// closed form requires strict inequality.
func ValidateDistinct(tauM, tauSyn float64) error {
	if tauM == tauSyn {
		return fmt.Errorf("%w: tau_m=tau_syn=%g", ErrDegenerateTimeConstants, tauM)
	}
	return nil
}

// Leak holds the propagators of a membrane without synaptic dynamics.
type Leak struct {
	P33 float64 // membrane decay exp(-h/tau_m)
	P30 float64 // constant current to voltage
}

func NewLeak(h, tauM, c float64) (Leak, error) {
	if err := validate(tauM, tauM, c); err != nil {
		return Leak{}, err
	}
	return Leak{
		P33: math.Exp(-h / tauM),
		P30: -tauM / c * math.Expm1(-h/tauM),
	}, nil
}

// Exp holds the propagators for an exponentially decaying synaptic
// current feeding a leaky membrane.
type Exp struct {
	P11 float64 // synaptic current decay
	P22 float64 // membrane decay
	P21 float64 // synaptic current to voltage
	P20 float64 // constant current to voltage
}

func NewExp(h, tauM, tauSyn, c float64) (Exp, error) {
	if err := validate(tauM, tauSyn, c); err != nil {
		return Exp{}, err
	}
	a := 1/tauSyn - 1/tauM
	p22 := math.Exp(-h / tauM)
	return Exp{
		P11: math.Exp(-h / tauSyn),
		P22: p22,
		P21: h / c * p22 * Phi1(a*h),
		P20: -tauM / c * math.Expm1(-h/tauM),
	}, nil
}

// Alpha holds the propagators for an alpha-shaped synaptic current
// (state y1, y2) feeding a leaky membrane (state y3).
type Alpha struct {
	ExpTauSyn   float64 // exp(-h/tau_syn)
	Expm1TauM   float64 // exp(-h/tau_m) - 1
	Expm1TauSyn float64 // exp(-h/tau_syn) - 1
	P30         float64
	P31         float64
	P32         float64
}

func NewAlpha(h, tauM, tauSyn, c float64) (Alpha, error) {
	if err := validate(tauM, tauSyn, c); err != nil {
		return Alpha{}, err
	}
	return alpha(h, tauM, tauSyn, c), nil
}

func alpha(h, tauM, tauSyn, c float64) Alpha {
	x := (1/tauSyn - 1/tauM) * h
	em := math.Exp(-h / tauM)
	return Alpha{
		ExpTauSyn:   math.Exp(-h / tauSyn),
		Expm1TauM:   math.Expm1(-h / tauM),
		Expm1TauSyn: math.Expm1(-h / tauSyn),
		P30:         -tauM / c * math.Expm1(-h/tauM),
		P31:         h * h / c * em * Phi2(x),
		P32:         h / c * em * Phi1(x),
	}
}

// AlphaAt evaluates the alpha propagators for an arbitrary sub-step length.
// Parameters are assumed validated.
func AlphaAt(h, tauM, tauSyn, c float64) Alpha {
	return alpha(h, tauM, tauSyn, c)
}
