// Package simtime holds the simulation clock: a fixed step size and
// stamps made of an integer step count plus an optional sub-step offset.
package simtime

import (
	"errors"
	"fmt"
	"math"
)

// ErrResolution is returned for a step size that is not a positive,
// finite number of milliseconds.
var ErrResolution = errors.New("simtime: resolution must be positive and finite")

// Resolution is the global step size in milliseconds.
type Resolution struct {
	H float64
}

// NewResolution validates h, the step size in ms.
func NewResolution(h float64) (Resolution, error) {
	if !(h > 0) || math.IsInf(h, 0) {
		return Resolution{}, fmt.Errorf("%w: got %g", ErrResolution, h)
	}
	return Resolution{H: h}, nil
}

// Steps converts a duration to the nearest whole number of steps.
func (r Resolution) Steps(ms float64) int64 {
	return int64(math.Round(ms / r.H))
}

// Ms converts a step count to milliseconds.
func (r Resolution) Ms(steps int64) float64 {
	return float64(steps) * r.H
}

// IsMultiple reports whether ms is an integral number of steps up to
// rounding noise.
func (r Resolution) IsMultiple(ms float64) bool {
	n := ms / r.H
	return math.Abs(n-math.Round(n)) < 1e-9*math.Max(1, math.Abs(n))
}

// Stamp is an absolute simulation time Step*h - Offset with Offset in
// [0, h). A stamp names the step boundary at or after the event, so an
// event stamped s happened during the update of step s-1, which covers the
// interval ((s-1)h, sh].
type Stamp struct {
	Step   int64
	Offset float64
}

func (s Stamp) OnGrid() bool { return s.Offset == 0 }

// Less reports whether s happens strictly before o.
func (s Stamp) Less(o Stamp) bool {
	if s.Step != o.Step {
		return s.Step < o.Step
	}
	return s.Offset > o.Offset
}

func (s Stamp) String() string {
	if s.Offset == 0 {
		return fmt.Sprintf("%d", s.Step)
	}
	return fmt.Sprintf("%d-%.6g", s.Step, s.Offset)
}

// Normalize folds an arbitrary backward offset into the step so the
// result satisfies 0 <= Offset < h.
func (r Resolution) Normalize(step int64, offset float64) Stamp {
	if offset >= r.H || offset < 0 {
		k := math.Floor(offset / r.H)
		step -= int64(k)
		offset -= k * r.H
	}
	// rounding can leave offset a hair below zero or at h
	if offset >= r.H {
		step--
		offset = 0
	}
	if offset < 0 {
		offset = 0
	}
	return Stamp{Step: step, Offset: offset}
}

// Within stamps a time tau in [0, h] measured from the start of update
// step t. A time exactly at the start of the step is stamped one ulp
// inside it so it stays attributed to step t.
func (r Resolution) Within(t int64, tau float64) Stamp {
	off := r.H - tau
	if off >= r.H {
		off = math.Nextafter(r.H, 0)
	}
	if off < 0 {
		off = 0
	}
	return Stamp{Step: t + 1, Offset: off}
}

// Tau returns the position of s inside its update step, measured from the
// start of step s.Step-1. It lies in (0, h].
func (r Resolution) Tau(s Stamp) float64 {
	return r.H - s.Offset
}

// FromMs converts a continuous time to a stamp. Times within rounding
// noise of a grid point land exactly on it.
func (r Resolution) FromMs(ms float64) Stamp {
	if r.IsMultiple(ms) {
		return Stamp{Step: r.Steps(ms)}
	}
	step := int64(math.Ceil(ms / r.H))
	return r.Normalize(step, float64(step)*r.H-ms)
}

// StampMs is the time of s in ms, Step*H - Offset.
func (r Resolution) StampMs(s Stamp) float64 {
	return float64(s.Step)*r.H - s.Offset
}
