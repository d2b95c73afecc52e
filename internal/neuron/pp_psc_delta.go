package neuron

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/propagator"
	"github.com/san-kum/spikesim/internal/ringbuf"
	"github.com/san-kum/spikesim/internal/simtime"
)

const PPPscDeltaModel = "pp_psc_delta"

type ppParams struct {
	TauM           float64
	C              float64
	DeadTime       float64
	DeadTimeRandom bool
	DeadTimeShape  int64
	WithReset      bool
	TauSfa         float64
	QSfa           float64
	C1, C2, C3     float64
	Ie             float64
	TRefRemaining  float64
}

func defaultPPParams() ppParams {
	return ppParams{
		TauM:          10,
		C:             250,
		DeadTime:      1,
		DeadTimeShape: 1,
		WithReset:     true,
		TauSfa:        34,
		C2:            1.238,
		C3:            0.25,
	}
}

func (p *ppParams) set(st node.Status) error {
	const m = PPPscDeltaModel
	err := readFloats(m, st,
		floatField{"I_e", &p.Ie},
		floatField{"C_m", &p.C},
		floatField{"tau_m", &p.TauM},
		floatField{"dead_time", &p.DeadTime},
		floatField{"tau_sfa", &p.TauSfa},
		floatField{"q_sfa", &p.QSfa},
		floatField{"c_1", &p.C1},
		floatField{"c_2", &p.C2},
		floatField{"c_3", &p.C3},
		floatField{"t_ref_remaining", &p.TRefRemaining},
	)
	if err != nil {
		return err
	}
	if _, err := st.UpdateBool("dead_time_random", &p.DeadTimeRandom); err != nil {
		return node.Tag(m, err)
	}
	if _, err := st.UpdateInt("dead_time_shape", &p.DeadTimeShape); err != nil {
		return node.Tag(m, err)
	}
	if _, err := st.UpdateBool("with_reset", &p.WithReset); err != nil {
		return node.Tag(m, err)
	}

	if err := positive(m, "C_m", p.C); err != nil {
		return err
	}
	if err := nonNegative(m, "dead_time", p.DeadTime); err != nil {
		return err
	}
	if p.DeadTimeShape < 1 {
		return node.BadProperty(m, "dead_time_shape", "shape of the dead time gamma distribution must not be smaller than 1")
	}
	if err := positive(m, "tau_m", p.TauM); err != nil {
		return err
	}
	if err := positive(m, "tau_sfa", p.TauSfa); err != nil {
		return err
	}
	return nonNegative(m, "t_ref_remaining", p.TRefRemaining)
}

func (p *ppParams) get(st node.Status) {
	st["I_e"] = p.Ie
	st["C_m"] = p.C
	st["tau_m"] = p.TauM
	st["dead_time"] = p.DeadTime
	st["dead_time_random"] = p.DeadTimeRandom
	st["dead_time_shape"] = p.DeadTimeShape
	st["with_reset"] = p.WithReset
	st["tau_sfa"] = p.TauSfa
	st["q_sfa"] = p.QSfa
	st["c_1"] = p.C1
	st["c_2"] = p.C2
	st["c_3"] = p.C3
	st["t_ref_remaining"] = p.TRefRemaining
}

type ppState struct {
	y0 float64 // step input current
	y3 float64 // membrane potential
	q  float64 // adaptive threshold
	r  int64   // dead time steps left
}

type ppVars struct {
	res            simtime.Resolution
	leak           propagator.Leak
	q33            float64
	deadTimeRate   float64
	deadTimeCounts int64
}

// PPPscDelta is a point process neuron with delta-shaped synaptic input,
// an escape-noise transfer function, dead time and spike frequency
// adaptation.
type PPPscDelta struct {
	archiving
	p  ppParams
	s  ppState
	s0 ppState
	v  ppVars

	spikes   *ringbuf.RingBuffer
	currents *ringbuf.RingBuffer

	// t_ref_remaining waits for a resolution before it becomes steps
	refPending bool
}

func NewPPPscDelta() *PPPscDelta {
	return &PPPscDelta{
		archiving: archiving{Base: node.NewBase(PPPscDeltaModel)},
		p:         defaultPPParams(),
		spikes:    ringbuf.NewRingBuffer(1),
		currents:  ringbuf.NewRingBuffer(1),
	}
}

func (n *PPPscDelta) Accepts(kind event.Kind, receptor int) error {
	return accepts(PPPscDeltaModel, kind, receptor)
}

func (n *PPPscDelta) Status() node.Status {
	st := node.Status{}
	n.p.get(st)
	st["V_m"] = n.s.y3
	st["E_sfa"] = n.s.q
	st["t_spike"] = n.history.LastSpike()
	return st
}

func (n *PPPscDelta) SetStatus(st node.Status) error {
	p := n.p
	if err := p.set(st); err != nil {
		return err
	}
	s, s0 := n.s, n.s0
	for _, f := range []struct {
		key      string
		cur, ini *float64
	}{{"V_m", &s.y3, &s0.y3}, {"E_sfa", &s.q, &s0.q}} {
		if ok, err := st.UpdateFloat(f.key, f.cur); err != nil {
			return node.Tag(PPPscDeltaModel, err)
		} else if ok {
			*f.ini = *f.cur
		}
	}
	pending := n.refPending
	if _, ok := st["t_ref_remaining"]; ok {
		if n.v.res.H > 0 {
			s.r = n.v.res.Steps(p.TRefRemaining)
		} else {
			pending = true
		}
	}
	n.p, n.s, n.s0, n.refPending = p, s, s0, pending
	return nil
}

// DeadTimeCounts is the dead time in steps for non-random dead times.
func (n *PPPscDelta) DeadTimeCounts() int64 { return n.v.deadTimeCounts }

// Refractory returns the dead time steps left.
func (n *PPPscDelta) Refractory() int64 { return n.s.r }

func (n *PPPscDelta) Calibrate(res simtime.Resolution) error {
	leak, err := propagator.NewLeak(res.H, n.p.TauM, n.p.C)
	if err != nil {
		return node.BadProperty(PPPscDeltaModel, "tau_m", err.Error())
	}
	n.v.res = res
	n.v.leak = leak
	n.v.q33 = math.Exp(-res.H / n.p.TauSfa)
	if n.p.DeadTimeRandom {
		// mean of the gamma distribution equals dead_time
		n.v.deadTimeRate = float64(n.p.DeadTimeShape) / n.p.DeadTime
	} else {
		n.v.deadTimeCounts = res.Steps(n.p.DeadTime)
	}
	if n.refPending {
		n.s.r = res.Steps(n.p.TRefRemaining)
		n.refPending = false
	}
	return nil
}

func (n *PPPscDelta) InitState() {
	n.s = n.s0
	if n.v.res.H > 0 {
		n.s.r = n.v.res.Steps(n.p.TRefRemaining)
		return
	}
	n.refPending = true
}

func (n *PPPscDelta) InitBuffers(capacity int) {
	n.spikes.Resize(capacity)
	n.currents.Resize(capacity)
	n.history.Clear()
}

func (n *PPPscDelta) Handle(e *event.Event) error {
	switch e.Kind {
	case event.Spike:
		n.spikes.AddValue(e.DeliveryStep(), e.Value())
	case event.Current:
		n.currents.AddValue(e.DeliveryStep(), e.Weight*e.Current)
	case event.DataLogging:
		return n.logger.Connect(e.Request, n)
	default:
		return fmt.Errorf("%w: %s", node.ErrIncompatibleEvent, e.Kind)
	}
	return nil
}

func (n *PPPscDelta) Recordables() []string {
	return []string{"V_m", "E_sfa"}
}

func (n *PPPscDelta) Record(name string) (float64, bool) {
	switch name {
	case "V_m":
		return n.s.y3, true
	case "E_sfa":
		return n.s.q, true
	}
	return 0, false
}

func (n *PPPscDelta) Update(ctx *node.Context, from, to int64) {
	h := n.v.res.H
	for t := from; t < to; t++ {
		n.s.y3 = n.v.leak.P30*(n.s.y0+n.p.Ie) + n.v.leak.P33*n.s.y3 + n.spikes.GetValue(t)

		if n.p.QSfa != 0 {
			n.s.q *= n.v.q33
		}

		if n.s.r == 0 {
			veff := n.s.y3
			if n.p.QSfa != 0 {
				veff -= n.s.q
			}
			// rate in Hz, h in ms
			rate := n.p.C1*veff + n.p.C2*math.Exp(n.p.C3*veff)
			if rate > 0 {
				var spikes int
				if n.p.DeadTime > 0 {
					if ctx.Rand.Float64() <= -math.Expm1(-rate*h*1e-3) {
						spikes = 1
					}
				} else {
					spikes = int(distuv.Poisson{Lambda: rate * h * 1e-3, Src: ctx.Rand}.Rand())
				}

				if spikes > 0 {
					if n.p.DeadTimeRandom {
						d := distuv.Gamma{Alpha: float64(n.p.DeadTimeShape), Beta: n.v.deadTimeRate, Src: ctx.Rand}.Rand()
						n.s.r = n.v.res.Steps(d)
					} else {
						n.s.r = n.v.deadTimeCounts
					}
					if n.p.QSfa != 0 {
						n.s.q += n.p.QSfa
					}
					ctx.Send(event.GridSpike(n.ID(), t, spikes))
					for i := 0; i < spikes; i++ {
						n.history.Record(n.v.res.Ms(t + 1))
					}
					if n.p.WithReset {
						n.s.y3 = 0
					}
				}
			}
		} else {
			n.s.r--
		}

		n.s.y0 = n.currents.GetValue(t)
		n.logger.Record(n.ID(), t, n)
	}
}
