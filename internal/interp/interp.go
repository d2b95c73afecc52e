// Package interp locates threshold crossings inside a mini-step by
// polynomial interpolation of the membrane trajectory.
package interp

import (
	"fmt"
	"math"
)

type Order int

const (
	None Order = iota
	Linear
	Quadratic
	Cubic
)

var orderNames = [...]string{"none", "linear", "quadratic", "cubic"}

func (o Order) String() string {
	if o < None || o > Cubic {
		return fmt.Sprintf("order(%d)", int(o))
	}
	return orderNames[o]
}

func (o Order) Valid() bool { return o >= None && o <= Cubic }

// ParseOrder converts the integer interpolation order used in status
// dictionaries.
func ParseOrder(n int) (Order, error) {
	o := Order(n)
	if !o.Valid() {
		return None, fmt.Errorf("interp: interpolation order must be 0..3, got %d", n)
	}
	return o, nil
}

// Sample is the membrane value and its time derivative at one boundary of
// a mini-step.
type Sample struct {
	V  float64
	DV float64
}

// Find returns the time in [0, dt] at which the trajectory from before to
// after first reaches threshold. Higher orders fall back to the next
// lower one when they produce no root inside the interval.
func Find(order Order, before, after Sample, threshold, dt float64) float64 {
	var tau float64
	switch order {
	case Cubic:
		tau = cubic(before, after, threshold, dt)
	case Quadratic:
		tau = quadratic(before, after, threshold, dt)
	case Linear:
		tau = linear(before, after, threshold, dt)
	default:
		return dt
	}
	return clamp(tau, dt)
}

func clamp(tau, dt float64) float64 {
	if math.IsNaN(tau) || tau > dt {
		return dt
	}
	if tau < 0 {
		return 0
	}
	return tau
}

func inRange(tau, dt float64) bool {
	return tau >= 0 && tau <= dt && !math.IsNaN(tau)
}

func linear(before, after Sample, th, dt float64) float64 {
	d := after.V - before.V
	if d == 0 {
		return dt
	}
	return (th - before.V) * dt / d
}

// quadratic fits value and slope at the start and value at the end.
func quadratic(before, after Sample, th, dt float64) float64 {
	h2 := dt * dt
	a := (after.V-before.V)/h2 - before.DV/dt
	b := before.DV
	c := before.V - th

	if a == 0 || math.Abs(a)*dt < 1e-12*math.Abs(b) {
		if b != 0 {
			if tau := -c / b; inRange(tau, dt) {
				return tau
			}
		}
		return linear(before, after, th, dt)
	}

	disc := b*b - 4*a*c
	if disc < 0 {
		return linear(before, after, th, dt)
	}
	sq := math.Sqrt(disc)
	if tau, ok := smallest(dt, (-b+sq)/(2*a), (-b-sq)/(2*a)); ok {
		return tau
	}
	return linear(before, after, th, dt)
}

// cubic fits the Hermite polynomial through value and slope at both ends
// and solves it in closed form.
func cubic(before, after Sample, th, dt float64) float64 {
	h2 := dt * dt
	h3 := h2 * dt
	w3 := 2*before.V/h3 - 2*after.V/h3 + before.DV/h2 + after.DV/h2
	w2 := -3*before.V/h2 + 3*after.V/h2 - 2*before.DV/dt - after.DV/dt
	w1 := before.DV
	w0 := before.V - th

	if w3 == 0 || math.Abs(w3)*h3 < 1e-12*(math.Abs(w2)*h2+math.Abs(w1)*dt+math.Abs(w0)) {
		return quadratic(before, after, th, dt)
	}

	// normal form x^3 + r x^2 + s x + t, depressed by x = y - r/3
	r := w2 / w3
	s := w1 / w3
	t := w0 / w3
	p := s - r*r/3
	q := 2*r*r*r/27 - r*s/3 + t
	d := math.Pow(p/3, 3) + math.Pow(q/2, 2)
	shift := -r / 3

	var roots []float64
	if d < 0 {
		rho := math.Sqrt(-p * p * p / 27)
		phi := math.Acos(math.Max(-1, math.Min(1, -q/(2*rho))))
		a := 2 * math.Cbrt(rho)
		roots = []float64{
			a*math.Cos(phi/3) + shift,
			a*math.Cos(phi/3+2*math.Pi/3) + shift,
			a*math.Cos(phi/3+4*math.Pi/3) + shift,
		}
	} else {
		u := math.Cbrt(-q/2 + math.Sqrt(d))
		v := math.Cbrt(-q/2 - math.Sqrt(d))
		roots = []float64{u + v + shift}
		if d == 0 {
			roots = append(roots, -(u+v)/2+shift)
		}
	}

	if tau, ok := smallest(dt, roots...); ok {
		return tau
	}
	return quadratic(before, after, th, dt)
}

func smallest(dt float64, roots ...float64) (float64, bool) {
	best, ok := math.Inf(1), false
	for _, tau := range roots {
		if inRange(tau, dt) && tau < best {
			best, ok = tau, true
		}
	}
	return best, ok
}
