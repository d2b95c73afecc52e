package neuron

import (
	"fmt"
	"math"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/interp"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/propagator"
	"github.com/san-kum/spikesim/internal/ringbuf"
	"github.com/san-kum/spikesim/internal/simtime"
)

const AlphaCanonModel = "iaf_psc_alpha_canon"

// Potentials are held in absolute mV so status round trips are exact.
type alphaCanonParams struct {
	TauM   float64
	TauSyn float64
	C      float64
	TRef   float64
	EL     float64
	Ie     float64
	Vth    float64
	Vmin   float64
	Vreset float64
	Order  interp.Order
}

func defaultAlphaCanonParams() alphaCanonParams {
	return alphaCanonParams{
		TauM:   10,
		TauSyn: 2,
		C:      250,
		TRef:   2,
		EL:     -70,
		Ie:     0,
		Vth:    -55,
		Vmin:   -math.MaxFloat64,
		Vreset: -70,
		Order:  interp.Linear,
	}
}

func (p *alphaCanonParams) set(st node.Status) error {
	oldEL := p.EL
	if err := readFloats(AlphaCanonModel, st, floatField{"E_L", &p.EL}); err != nil {
		return err
	}
	// potentials not given explicitly keep their distance to E_L
	if d := p.EL - oldEL; d != 0 {
		p.Vth += d
		p.Vreset += d
		if p.Vmin != -math.MaxFloat64 {
			p.Vmin += d
		}
	}
	err := readFloats(AlphaCanonModel, st,
		floatField{"tau_m", &p.TauM},
		floatField{"tau_syn", &p.TauSyn},
		floatField{"C_m", &p.C},
		floatField{"t_ref", &p.TRef},
		floatField{"I_e", &p.Ie},
		floatField{"V_th", &p.Vth},
		floatField{"V_min", &p.Vmin},
		floatField{"V_reset", &p.Vreset},
	)
	if err != nil {
		return err
	}
	var order int64
	if ok, err := st.UpdateInt("Interpol_Order", &order); err != nil {
		return node.Tag(AlphaCanonModel, err)
	} else if ok {
		o, err := interp.ParseOrder(int(order))
		if err != nil {
			return node.BadProperty(AlphaCanonModel, "Interpol_Order", err.Error())
		}
		p.Order = o
	}
	return p.validate()
}

func (p *alphaCanonParams) validate() error {
	const m = AlphaCanonModel
	if p.Vreset >= p.Vth {
		return node.BadProperty(m, "V_reset", "reset potential must be smaller than threshold")
	}
	if p.Vreset < p.Vmin {
		return node.BadProperty(m, "V_reset", "reset potential must be greater equal minimum potential")
	}
	if err := positive(m, "C_m", p.C); err != nil {
		return err
	}
	if err := nonNegative(m, "t_ref", p.TRef); err != nil {
		return err
	}
	if err := positive(m, "tau_m", p.TauM); err != nil {
		return err
	}
	if err := positive(m, "tau_syn", p.TauSyn); err != nil {
		return err
	}
	if err := propagator.ValidateDistinct(p.TauM, p.TauSyn); err != nil {
		return node.BadProperty(m, "tau_syn", err.Error())
	}
	return nil
}

func (p *alphaCanonParams) get(st node.Status) {
	st["tau_m"] = p.TauM
	st["tau_syn"] = p.TauSyn
	st["C_m"] = p.C
	st["t_ref"] = p.TRef
	st["E_L"] = p.EL
	st["I_e"] = p.Ie
	st["V_th"] = p.Vth
	st["V_min"] = p.Vmin
	st["V_reset"] = p.Vreset
	st["Interpol_Order"] = int64(p.Order)
}

// y0 is the step's constant input current, y1 and y2 the alpha current
// components, y3 the membrane potential relative to E_L.
type alphaCanonState struct {
	y0, y1, y2, y3 float64
	refractory     bool
	lastSpikeStep  int64
	lastSpikeTau   float64
}

type alphaCanonVars struct {
	res        simtime.Resolution
	prop       propagator.Alpha
	pscInitial float64
	refSteps   int64
	theta      float64 // threshold relative to E_L
	reset      float64
	floor      float64

	// state at the start of the current mini-step
	y0Before, y2Before, y3Before float64
}

// IafPscAlphaCanon is a leaky integrate-and-fire neuron with alpha-shaped
// synaptic currents that handles incoming spikes at their precise times
// and interpolates its own spike times inside a step.
type IafPscAlphaCanon struct {
	archiving
	p  alphaCanonParams
	s  alphaCanonState
	s0 alphaCanonState
	v  alphaCanonVars

	spikes   *ringbuf.SliceRingBuffer
	currents *ringbuf.RingBuffer
}

func NewIafPscAlphaCanon() *IafPscAlphaCanon {
	n := &IafPscAlphaCanon{
		archiving: archiving{Base: node.NewBase(AlphaCanonModel)},
		p:         defaultAlphaCanonParams(),
		spikes:    ringbuf.NewSliceRingBuffer(1),
		currents:  ringbuf.NewRingBuffer(1),
	}
	n.s0.lastSpikeStep = -1
	n.s = n.s0
	return n
}

func (n *IafPscAlphaCanon) OffGrid() bool { return true }

func (n *IafPscAlphaCanon) Accepts(kind event.Kind, receptor int) error {
	return accepts(AlphaCanonModel, kind, receptor)
}

func (n *IafPscAlphaCanon) Status() node.Status {
	st := node.Status{}
	n.p.get(st)
	st["V_m"] = n.s.y3 + n.p.EL
	st["refractory"] = n.s.refractory
	st["t_spike"] = n.history.LastSpike()
	return st
}

func (n *IafPscAlphaCanon) SetStatus(st node.Status) error {
	p := n.p
	if err := p.set(st); err != nil {
		return err
	}
	s, s0 := n.s, n.s0
	vm := n.s.y3 + n.p.EL
	if ok, err := st.UpdateFloat("V_m", &vm); err != nil {
		return node.Tag(AlphaCanonModel, err)
	} else if ok {
		s.y3 = vm - p.EL
		s0.y3 = s.y3
	}
	n.p, n.s, n.s0 = p, s, s0
	return nil
}

func (n *IafPscAlphaCanon) Calibrate(res simtime.Resolution) error {
	prop, err := propagator.NewAlpha(res.H, n.p.TauM, n.p.TauSyn, n.p.C)
	if err != nil {
		return node.BadProperty(AlphaCanonModel, "tau_m", err.Error())
	}
	n.v.res = res
	n.v.prop = prop
	n.v.pscInitial = math.E / n.p.TauSyn
	n.v.refSteps = res.Steps(n.p.TRef)
	n.v.theta = n.p.Vth - n.p.EL
	n.v.reset = n.p.Vreset - n.p.EL
	n.v.floor = n.p.Vmin - n.p.EL
	if n.p.Vmin == -math.MaxFloat64 {
		n.v.floor = -math.MaxFloat64
	}
	return nil
}

func (n *IafPscAlphaCanon) InitState() {
	n.s = n.s0
}

func (n *IafPscAlphaCanon) InitBuffers(capacity int) {
	n.spikes.Resize(capacity)
	n.currents.Resize(capacity)
	n.history.Clear()
}

func (n *IafPscAlphaCanon) Handle(e *event.Event) error {
	switch e.Kind {
	case event.Spike:
		n.spikes.Add(e.DeliveryStep(), n.v.res.Tau(e.Stamp), e.Value())
	case event.Current:
		n.currents.AddValue(e.DeliveryStep(), e.Weight*e.Current)
	case event.DataLogging:
		return n.logger.Connect(e.Request, n)
	default:
		return fmt.Errorf("%w: %s", node.ErrIncompatibleEvent, e.Kind)
	}
	return nil
}

func (n *IafPscAlphaCanon) Recordables() []string {
	return []string{"V_m", "I_syn"}
}

func (n *IafPscAlphaCanon) Record(name string) (float64, bool) {
	switch name {
	case "V_m":
		return n.s.y3 + n.p.EL, true
	case "I_syn":
		return n.s.y2, true
	}
	return 0, false
}

func (n *IafPscAlphaCanon) Update(ctx *node.Context, from, to int64) {
	h := n.v.res.H

	// the neuron may have been set to a superthreshold potential
	if n.s.y3 >= n.v.theta {
		n.emit(ctx, from, 0)
	}

	for t := from; t < to; t++ {
		if n.s.refractory && t == n.s.lastSpikeStep+n.v.refSteps {
			n.spikes.AddRefractoryEnd(t, n.s.lastSpikeTau)
		}

		n.v.y0Before = n.s.y0
		n.v.y2Before = n.s.y2
		n.v.y3Before = n.s.y3

		ev, ok := n.spikes.Next(t)
		if !ok {
			n.stepFull()
			if n.s.y3 >= n.v.theta {
				n.emitCrossing(ctx, t, 0, h)
			}
		} else {
			last := 0.0
			for ok {
				mini := ev.Offset - last
				n.propagate(mini)
				// checked before the input is applied since interpolation
				// needs a continuous trajectory
				if n.s.y3 >= n.v.theta {
					n.emitCrossing(ctx, t, last, mini)
				}
				if ev.Kind == ringbuf.RefractoryEnd {
					n.s.refractory = false
				} else {
					n.s.y1 += n.v.pscInitial * ev.Weight
				}
				n.v.y2Before = n.s.y2
				n.v.y3Before = n.s.y3
				last = ev.Offset
				ev, ok = n.spikes.Next(t)
			}
			if last < h {
				n.propagate(h - last)
				if n.s.y3 >= n.v.theta {
					n.emitCrossing(ctx, t, last, h-last)
				}
			}
		}

		// input current changes at the end of the step, after any
		// interpolation used the old value
		n.s.y0 = n.currents.GetValue(t)
		n.logger.Record(n.ID(), t, n)
	}
}

// stepFull advances one whole step with the precomputed propagators.
func (n *IafPscAlphaCanon) stepFull() {
	p := &n.v.prop
	h := n.v.res.H
	if !n.s.refractory {
		n.s.y3 = p.P30*(n.p.Ie+n.s.y0) + p.P31*n.s.y1 + p.P32*n.s.y2 + p.Expm1TauM*n.s.y3 + n.s.y3
		n.s.y3 = math.Max(n.s.y3, n.v.floor)
	}
	n.s.y2 = p.Expm1TauSyn*h*n.s.y1 + p.Expm1TauSyn*n.s.y2 + h*n.s.y1 + n.s.y2
	n.s.y1 = p.Expm1TauSyn*n.s.y1 + n.s.y1
}

// propagate advances the state by dt within a step.
func (n *IafPscAlphaCanon) propagate(dt float64) {
	if dt <= 0 {
		return
	}
	p := propagator.AlphaAt(dt, n.p.TauM, n.p.TauSyn, n.p.C)
	if !n.s.refractory {
		n.s.y3 = p.P30*(n.p.Ie+n.s.y0) + p.P31*n.s.y1 + p.P32*n.s.y2 + p.Expm1TauM*n.s.y3 + n.s.y3
		n.s.y3 = math.Max(n.s.y3, n.v.floor)
	}
	n.s.y2 = p.Expm1TauSyn*dt*n.s.y1 + p.Expm1TauSyn*n.s.y2 + dt*n.s.y1 + n.s.y2
	n.s.y1 = p.Expm1TauSyn*n.s.y1 + n.s.y1
}

func (n *IafPscAlphaCanon) slope(y0, y2, y3 float64) float64 {
	return -y3/n.p.TauM + (n.p.Ie+y0+y2)/n.p.C
}

// emitCrossing emits a spike for a crossing inside the mini-step
// [t0, t0+dt] of step t. The potential is below threshold at t0 and at or
// above it at t0+dt.
func (n *IafPscAlphaCanon) emitCrossing(ctx *node.Context, t int64, t0, dt float64) {
	before := interp.Sample{V: n.v.y3Before, DV: n.slope(n.v.y0Before, n.v.y2Before, n.v.y3Before)}
	after := interp.Sample{V: n.s.y3, DV: n.slope(n.s.y0, n.s.y2, n.s.y3)}
	n.emit(ctx, t, t0+interp.Find(n.p.Order, before, after, n.v.theta, dt))
}

// emit resets the neuron and sends a spike at tau into step t.
func (n *IafPscAlphaCanon) emit(ctx *node.Context, t int64, tau float64) {
	stamp := n.v.res.Within(t, tau)
	n.s.lastSpikeStep = t
	n.s.lastSpikeTau = tau
	n.s.y3 = n.v.reset
	n.s.refractory = n.v.refSteps > 0
	n.history.Record(n.v.res.StampMs(stamp))
	ctx.Send(event.PreciseSpike(n.ID(), stamp))
}
