// Package device implements stimulating and recording devices: current
// and spike sources that drive neurons, and recorders that collect their
// spikes and sampled state.
package device

import (
	"fmt"
	"math"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

// window is the activity interval [start, stop) of a stimulating device
// in ms.
type window struct {
	start float64
	stop  float64
}

func defaultWindow() window {
	return window{start: 0, stop: math.Inf(1)}
}

func (w *window) set(model string, st node.Status) error {
	nw := *w
	if _, err := st.UpdateFloat("start", &nw.start); err != nil {
		return node.Tag(model, err)
	}
	if _, err := st.UpdateFloat("stop", &nw.stop); err != nil {
		return node.Tag(model, err)
	}
	if nw.start < 0 {
		return node.BadProperty(model, "start", "must not be negative")
	}
	if nw.stop < nw.start {
		return node.BadProperty(model, "stop", "must not be before start")
	}
	*w = nw
	return nil
}

func (w *window) get(st node.Status) {
	st["start"] = w.start
	st["stop"] = w.stop
}

// active reports whether update step t lies inside the window.
func (w *window) active(res simtime.Resolution, t int64) bool {
	if t < res.Steps(w.start) {
		return false
	}
	return math.IsInf(w.stop, 1) || t < res.Steps(w.stop)
}

// source is embedded by devices that only send.
type source struct {
	node.Base
	kind event.Kind
}

func (s *source) Emits() (event.Kind, bool) { return s.kind, true }

func (s *source) Accepts(kind event.Kind, receptor int) error {
	return fmt.Errorf("%w: %s accepts no input", node.ErrIncompatibleEvent, s.Model())
}

func (s *source) Handle(e *event.Event) error {
	return fmt.Errorf("%w: %s accepts no input", node.ErrIncompatibleEvent, s.Model())
}

func (s *source) InitBuffers(int) {}
