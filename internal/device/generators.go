package device

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

const (
	DCGeneratorModel      = "dc_generator"
	PoissonGeneratorModel = "poisson_generator"
	SpikeGeneratorModel   = "spike_generator"
)

// DCGenerator injects a constant current while active.
type DCGenerator struct {
	source
	win       window
	amplitude float64
	res       simtime.Resolution
}

func NewDCGenerator() *DCGenerator {
	return &DCGenerator{
		source: source{Base: node.NewBase(DCGeneratorModel), kind: event.Current},
		win:    defaultWindow(),
	}
}

func (g *DCGenerator) Status() node.Status {
	st := node.Status{"amplitude": g.amplitude}
	g.win.get(st)
	return st
}

func (g *DCGenerator) SetStatus(st node.Status) error {
	w, amp := g.win, g.amplitude
	if err := w.set(DCGeneratorModel, st); err != nil {
		return err
	}
	if _, err := st.UpdateFloat("amplitude", &amp); err != nil {
		return node.Tag(DCGeneratorModel, err)
	}
	g.win, g.amplitude = w, amp
	return nil
}

func (g *DCGenerator) Calibrate(res simtime.Resolution) error {
	g.res = res
	return nil
}

func (g *DCGenerator) InitState() {}

func (g *DCGenerator) Update(ctx *node.Context, from, to int64) {
	for t := from; t < to; t++ {
		if g.win.active(g.res, t) {
			ctx.Send(event.CurrentAt(g.ID(), t, g.amplitude))
		}
	}
}

// PoissonGenerator emits Poisson spike trains. One count is drawn per
// step and sent to every target as a single event with multiplicity.
type PoissonGenerator struct {
	source
	win  window
	rate float64
	res  simtime.Resolution
}

func NewPoissonGenerator() *PoissonGenerator {
	return &PoissonGenerator{
		source: source{Base: node.NewBase(PoissonGeneratorModel), kind: event.Spike},
		win:    defaultWindow(),
	}
}

func (g *PoissonGenerator) Status() node.Status {
	st := node.Status{"rate": g.rate}
	g.win.get(st)
	return st
}

func (g *PoissonGenerator) SetStatus(st node.Status) error {
	w, rate := g.win, g.rate
	if err := w.set(PoissonGeneratorModel, st); err != nil {
		return err
	}
	if _, err := st.UpdateFloat("rate", &rate); err != nil {
		return node.Tag(PoissonGeneratorModel, err)
	}
	if rate < 0 {
		return node.BadProperty(PoissonGeneratorModel, "rate", "must not be negative")
	}
	g.win, g.rate = w, rate
	return nil
}

func (g *PoissonGenerator) Calibrate(res simtime.Resolution) error {
	g.res = res
	return nil
}

func (g *PoissonGenerator) InitState() {}

func (g *PoissonGenerator) Update(ctx *node.Context, from, to int64) {
	if g.rate == 0 {
		return
	}
	// rate in Hz, h in ms
	dev := distuv.Poisson{Lambda: g.rate * g.res.H * 1e-3, Src: ctx.Rand}
	for t := from; t < to; t++ {
		if !g.win.active(g.res, t) {
			continue
		}
		if n := int(dev.Rand()); n > 0 {
			ctx.Send(event.GridSpike(g.ID(), t, n))
		}
	}
}

// SpikeGenerator replays a list of spike times, on the grid or at their
// precise times.
type SpikeGenerator struct {
	source
	times   []float64
	precise bool

	res    simtime.Resolution
	stamps []simtime.Stamp
	next   int
}

func NewSpikeGenerator() *SpikeGenerator {
	return &SpikeGenerator{
		source: source{Base: node.NewBase(SpikeGeneratorModel), kind: event.Spike},
	}
}

func (g *SpikeGenerator) OffGrid() bool { return g.precise }

func (g *SpikeGenerator) Status() node.Status {
	return node.Status{
		"spike_times":   append([]float64(nil), g.times...),
		"precise_times": g.precise,
	}
}

func (g *SpikeGenerator) SetStatus(st node.Status) error {
	times, precise := g.times, g.precise
	if _, err := st.UpdateFloats("spike_times", &times); err != nil {
		return node.Tag(SpikeGeneratorModel, err)
	}
	if _, err := st.UpdateBool("precise_times", &precise); err != nil {
		return node.Tag(SpikeGeneratorModel, err)
	}
	if !sort.Float64sAreSorted(times) {
		return node.BadProperty(SpikeGeneratorModel, "spike_times", "must be sorted in ascending order")
	}
	if len(times) > 0 && !(times[0] > 0) {
		return node.BadProperty(SpikeGeneratorModel, "spike_times", "must be strictly positive")
	}
	g.times, g.precise = times, precise
	return nil
}

func (g *SpikeGenerator) Calibrate(res simtime.Resolution) error {
	g.res = res
	g.stamps = g.stamps[:0]
	for _, ms := range g.times {
		s := simtime.Stamp{Step: res.Steps(ms)}
		if g.precise {
			s = res.FromMs(ms)
		}
		g.stamps = append(g.stamps, s)
	}
	return nil
}

func (g *SpikeGenerator) InitState() { g.next = 0 }

func (g *SpikeGenerator) Update(ctx *node.Context, from, to int64) {
	// a spike stamped s is emitted while updating step s-1
	for g.next < len(g.stamps) && g.stamps[g.next].Step-1 < to {
		s := g.stamps[g.next]
		g.next++
		if s.Step-1 < from {
			continue
		}
		if g.precise {
			ctx.Send(event.PreciseSpike(g.ID(), s))
		} else {
			ctx.Send(event.GridSpike(g.ID(), s.Step-1, 1))
		}
	}
}
