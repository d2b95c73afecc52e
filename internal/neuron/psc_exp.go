package neuron

import (
	"fmt"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/propagator"
	"github.com/san-kum/spikesim/internal/ringbuf"
	"github.com/san-kum/spikesim/internal/simtime"
)

const PscExpModel = "iaf_psc_exp"

type pscExpParams struct {
	TauM   float64
	TauEx  float64
	TauIn  float64
	C      float64
	TRef   float64
	EL     float64
	Ie     float64
	Vth    float64
	Vreset float64
}

func defaultPscExpParams() pscExpParams {
	return pscExpParams{
		TauM:   10,
		TauEx:  2,
		TauIn:  2,
		C:      250,
		TRef:   2,
		EL:     -70,
		Vth:    -55,
		Vreset: -70,
	}
}

func (p *pscExpParams) set(st node.Status) error {
	oldEL := p.EL
	if err := readFloats(PscExpModel, st, floatField{"E_L", &p.EL}); err != nil {
		return err
	}
	if d := p.EL - oldEL; d != 0 {
		p.Vth += d
		p.Vreset += d
	}
	err := readFloats(PscExpModel, st,
		floatField{"tau_m", &p.TauM},
		floatField{"tau_syn_ex", &p.TauEx},
		floatField{"tau_syn_in", &p.TauIn},
		floatField{"C_m", &p.C},
		floatField{"t_ref", &p.TRef},
		floatField{"I_e", &p.Ie},
		floatField{"V_th", &p.Vth},
		floatField{"V_reset", &p.Vreset},
	)
	if err != nil {
		return err
	}

	const m = PscExpModel
	if p.Vreset >= p.Vth {
		return node.BadProperty(m, "V_reset", "reset potential must be smaller than threshold")
	}
	if err := positive(m, "C_m", p.C); err != nil {
		return err
	}
	if err := nonNegative(m, "t_ref", p.TRef); err != nil {
		return err
	}
	for _, f := range []floatField{{"tau_m", &p.TauM}, {"tau_syn_ex", &p.TauEx}, {"tau_syn_in", &p.TauIn}} {
		if err := positive(m, f.key, *f.dst); err != nil {
			return err
		}
	}
	return nil
}

func (p *pscExpParams) get(st node.Status) {
	st["tau_m"] = p.TauM
	st["tau_syn_ex"] = p.TauEx
	st["tau_syn_in"] = p.TauIn
	st["C_m"] = p.C
	st["t_ref"] = p.TRef
	st["E_L"] = p.EL
	st["I_e"] = p.Ie
	st["V_th"] = p.Vth
	st["V_reset"] = p.Vreset
}

type pscExpState struct {
	i0  float64 // step input current
	iEx float64
	iIn float64
	v   float64 // relative to E_L
	r   int64   // refractory steps left
}

type pscExpVars struct {
	res      simtime.Resolution
	ex, in   propagator.Exp
	refSteps int64
	theta    float64
	reset    float64
}

// IafPscExp is a grid-based leaky integrate-and-fire neuron with
// exponentially decaying excitatory and inhibitory synaptic currents.
// Positive weights go to the excitatory, negative ones to the inhibitory
// current.
type IafPscExp struct {
	archiving
	p  pscExpParams
	s  pscExpState
	s0 pscExpState
	v  pscExpVars

	spikesEx *ringbuf.RingBuffer
	spikesIn *ringbuf.RingBuffer
	currents *ringbuf.RingBuffer
}

func NewIafPscExp() *IafPscExp {
	return &IafPscExp{
		archiving: archiving{Base: node.NewBase(PscExpModel)},
		p:         defaultPscExpParams(),
		spikesEx:  ringbuf.NewRingBuffer(1),
		spikesIn:  ringbuf.NewRingBuffer(1),
		currents:  ringbuf.NewRingBuffer(1),
	}
}

func (n *IafPscExp) Accepts(kind event.Kind, receptor int) error {
	return accepts(PscExpModel, kind, receptor)
}

func (n *IafPscExp) Status() node.Status {
	st := node.Status{}
	n.p.get(st)
	st["V_m"] = n.s.v + n.p.EL
	st["I_syn_ex"] = n.s.iEx
	st["I_syn_in"] = n.s.iIn
	st["t_spike"] = n.history.LastSpike()
	return st
}

func (n *IafPscExp) SetStatus(st node.Status) error {
	p := n.p
	if err := p.set(st); err != nil {
		return err
	}
	s, s0 := n.s, n.s0
	vm := n.s.v + n.p.EL
	if ok, err := st.UpdateFloat("V_m", &vm); err != nil {
		return node.Tag(PscExpModel, err)
	} else if ok {
		s.v = vm - p.EL
		s0.v = s.v
	}
	n.p, n.s, n.s0 = p, s, s0
	return nil
}

func (n *IafPscExp) Calibrate(res simtime.Resolution) error {
	ex, err := propagator.NewExp(res.H, n.p.TauM, n.p.TauEx, n.p.C)
	if err != nil {
		return node.BadProperty(PscExpModel, "tau_syn_ex", err.Error())
	}
	in, err := propagator.NewExp(res.H, n.p.TauM, n.p.TauIn, n.p.C)
	if err != nil {
		return node.BadProperty(PscExpModel, "tau_syn_in", err.Error())
	}
	n.v = pscExpVars{
		res:      res,
		ex:       ex,
		in:       in,
		refSteps: res.Steps(n.p.TRef),
		theta:    n.p.Vth - n.p.EL,
		reset:    n.p.Vreset - n.p.EL,
	}
	return nil
}

func (n *IafPscExp) InitState() { n.s = n.s0 }

func (n *IafPscExp) InitBuffers(capacity int) {
	n.spikesEx.Resize(capacity)
	n.spikesIn.Resize(capacity)
	n.currents.Resize(capacity)
	n.history.Clear()
}

func (n *IafPscExp) Handle(e *event.Event) error {
	switch e.Kind {
	case event.Spike:
		w := e.Value()
		if e.Weight >= 0 {
			n.spikesEx.AddValue(e.DeliveryStep(), w)
		} else {
			n.spikesIn.AddValue(e.DeliveryStep(), w)
		}
	case event.Current:
		n.currents.AddValue(e.DeliveryStep(), e.Weight*e.Current)
	case event.DataLogging:
		return n.logger.Connect(e.Request, n)
	default:
		return fmt.Errorf("%w: %s", node.ErrIncompatibleEvent, e.Kind)
	}
	return nil
}

func (n *IafPscExp) Recordables() []string {
	return []string{"V_m", "I_syn_ex", "I_syn_in"}
}

func (n *IafPscExp) Record(name string) (float64, bool) {
	switch name {
	case "V_m":
		return n.s.v + n.p.EL, true
	case "I_syn_ex":
		return n.s.iEx, true
	case "I_syn_in":
		return n.s.iIn, true
	}
	return 0, false
}

func (n *IafPscExp) Update(ctx *node.Context, from, to int64) {
	ex, in := &n.v.ex, &n.v.in
	for t := from; t < to; t++ {
		if n.s.r == 0 {
			n.s.v = n.s.v*ex.P22 + n.s.iEx*ex.P21 + n.s.iIn*in.P21 + (n.p.Ie+n.s.i0)*ex.P20
		} else {
			n.s.r--
		}

		n.s.iEx *= ex.P11
		n.s.iIn *= in.P11

		// spikes due at the end of this step act immediately
		n.s.iEx += n.spikesEx.GetValue(t)
		n.s.iIn += n.spikesIn.GetValue(t)

		if n.s.v >= n.v.theta {
			n.s.r = n.v.refSteps
			n.s.v = n.v.reset
			n.history.Record(n.v.res.Ms(t + 1))
			ctx.Send(event.GridSpike(n.ID(), t, 1))
		}

		n.s.i0 = n.currents.GetValue(t)
		n.logger.Record(n.ID(), t, n)
	}
}
