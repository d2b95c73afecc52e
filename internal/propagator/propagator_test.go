package propagator

import (
	"errors"
	"math"
	"testing"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestPhiContinuity(t *testing.T) {
	// both branches must agree across the switch
	for _, x := range []float64{SeriesThreshold * 0.999, SeriesThreshold * 1.001, -SeriesThreshold * 0.999, -SeriesThreshold * 1.001} {
		direct1 := -math.Expm1(-x) / x
		if !near(Phi1(x), direct1, 1e-13) {
			t.Errorf("phi1(%g): got %.17g, direct %.17g", x, Phi1(x), direct1)
		}
		direct2 := (1 - math.Exp(-x)*(1+x)) / (x * x)
		if !near(Phi2(x), direct2, 1e-10) {
			t.Errorf("phi2(%g): got %.17g, direct %.17g", x, Phi2(x), direct2)
		}
	}
	if Phi1(0) != 1 || Phi2(0) != 0.5 {
		t.Errorf("limits at zero: phi1=%g phi2=%g", Phi1(0), Phi2(0))
	}
}

func TestAlphaMatchesMatrixExponential(t *testing.T) {
	tests := []struct {
		name         string
		h, tm, ts, c float64
	}{
		{"default", 0.1, 10, 2, 250},
		{"coarse", 1.0, 10, 2, 250},
		{"slow synapse", 0.1, 5, 20, 100},
		{"fine", 0.01, 20, 0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAlpha(tt.h, tt.tm, tt.ts, tt.c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			e := Exact(AlphaSystem(tt.tm, tt.ts, tt.c), tt.h)

			checks := []struct {
				name      string
				got, want float64
			}{
				{"P31", p.P31, e.At(2, 0)},
				{"P32", p.P32, e.At(2, 1)},
				{"P33", p.Expm1TauM + 1, e.At(2, 2)},
				{"P11", p.ExpTauSyn, e.At(0, 0)},
				{"P21", tt.h * p.ExpTauSyn, e.At(1, 0)},
			}
			for _, c := range checks {
				if !near(c.got, c.want, 1e-10) {
					t.Errorf("%s: got %.15g, want %.15g", c.name, c.got, c.want)
				}
			}
		})
	}
}

func TestExpMatchesMatrixExponential(t *testing.T) {
	p, err := NewExp(0.1, 10, 2, 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := Exact(ExpSystem(10, 2, 250), 0.1)

	if !near(p.P11, e.At(0, 0), 1e-12) {
		t.Errorf("P11: got %g, want %g", p.P11, e.At(0, 0))
	}
	if !near(p.P21, e.At(1, 0), 1e-10) {
		t.Errorf("P21: got %g, want %g", p.P21, e.At(1, 0))
	}
	if !near(p.P22, e.At(1, 1), 1e-12) {
		t.Errorf("P22: got %g, want %g", p.P22, e.At(1, 1))
	}
}

func TestNearEqualTimeConstants(t *testing.T) {
	h, tm, c := 0.1, 10.0, 250.0
	ts := 10.0 + 1e-9

	if !Singular(h, tm, ts) {
		t.Fatal("expected series branch for near-equal time constants")
	}

	p, err := NewAlpha(h, tm, ts, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, v := range map[string]float64{"P30": p.P30, "P31": p.P31, "P32": p.P32} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s is not finite: %g", name, v)
		}
	}

	em := math.Exp(-h / tm)
	if !near(p.P32, h/c*em, 1e-12) {
		t.Errorf("P32: got %.15g, limit %.15g", p.P32, h/c*em)
	}
	if !near(p.P31, h*h/(2*c)*em, 1e-12) {
		t.Errorf("P31: got %.15g, limit %.15g", p.P31, h*h/(2*c)*em)
	}

	pe, err := NewExp(h, tm, tm, c)
	if err != nil {
		t.Fatalf("exp propagator must accept equal constants: %v", err)
	}
	if !near(pe.P21, h/c*em, 1e-12) {
		t.Errorf("exp P21: got %.15g, limit %.15g", pe.P21, h/c*em)
	}
}

func TestZeroInputDecay(t *testing.T) {
	h, tm := 0.1, 10.0
	l, err := NewLeak(h, tm, 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := 1.0
	for i := 1; i <= 1000; i++ {
		v *= l.P33
		want := math.Exp(-float64(i) * h / tm)
		if !near(v, want, 1e-12) {
			t.Fatalf("step %d: got %.15g, want %.15g", i, v, want)
		}
	}
}

func TestValidation(t *testing.T) {
	if err := ValidateDistinct(10, 10); !errors.Is(err, ErrDegenerateTimeConstants) {
		t.Errorf("expected ErrDegenerateTimeConstants, got %v", err)
	}
	if err := ValidateDistinct(10, 10+1e-9); err != nil {
		t.Errorf("distinct constants rejected: %v", err)
	}
	if _, err := NewAlpha(0.1, -1, 2, 250); !errors.Is(err, ErrTimeConstant) {
		t.Errorf("expected ErrTimeConstant, got %v", err)
	}
	if _, err := NewExp(0.1, 10, 2, 0); !errors.Is(err, ErrCapacitance) {
		t.Errorf("expected ErrCapacitance, got %v", err)
	}
}
