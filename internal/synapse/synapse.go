// Package synapse implements connections: the per-edge objects that stamp
// weight, delay and receptor onto an emitted event and hand it to the
// target.
package synapse

import (
	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

// Spec describes a connection to create.
type Spec struct {
	Model    string
	Weight   float64
	Delay    float64 // ms
	Receptor int
	Params   node.Status
}

// Connection is one edge. Send runs on the thread that owns the target.
type Connection interface {
	Model() string
	Target() int
	Delay() int64
	Receptor() int
	Weight() float64

	// Bind is called once at connect time with the validated target.
	Bind(res simtime.Resolution, tgt node.Node) error
	Send(e *event.Event, tgt node.Node) error
	// Reset restores the dynamic state the connection had when created.
	Reset()

	Status() node.Status
	SetStatus(node.Status) error
}

// TargetChecker is implemented by connections that restrict their
// targets beyond the event kind. CheckTarget has no side effects.
type TargetChecker interface {
	CheckTarget(tgt node.Node) error
}

// Preparer is implemented by connections that need a pass over all
// connections before the first delivery.
type Preparer interface {
	Prepare()
}

// Model creates connections of one type and holds the properties they
// share.
type Model interface {
	Name() string
	New(target int, delay int64, spec Spec) (Connection, error)
	Defaults() node.Status
	SetDefaults(node.Status) error
}

type base struct {
	model    string
	target   int
	delay    int64
	delayMs  float64
	receptor int
	weight   float64
	res      simtime.Resolution
}

func newBase(model string, target int, delay int64, spec Spec) base {
	return base{
		model:    model,
		target:   target,
		delay:    delay,
		delayMs:  spec.Delay,
		receptor: spec.Receptor,
		weight:   spec.Weight,
	}
}

func (b *base) Model() string   { return b.model }
func (b *base) Target() int     { return b.target }
func (b *base) Delay() int64    { return b.delay }
func (b *base) Receptor() int   { return b.receptor }
func (b *base) Weight() float64 { return b.weight }

func (b *base) status() node.Status {
	return node.Status{
		"synapse_model": b.model,
		"target":        b.target,
		"weight":        b.weight,
		"delay":         b.delayMs,
		"receptor":      b.receptor,
	}
}

// set applies the mutable base properties to a copy.
func (b *base) set(st node.Status) (base, error) {
	nb := *b
	if _, err := st.UpdateFloat("weight", &nb.weight); err != nil {
		return nb, node.Tag(b.model, err)
	}
	d := nb.delayMs
	if _, err := st.UpdateFloat("delay", &d); err != nil {
		return nb, node.Tag(b.model, err)
	}
	if d != nb.delayMs {
		return nb, node.BadProperty(b.model, "delay", "cannot change after connecting")
	}
	return nb, nil
}

func (b *base) deliver(e *event.Event, tgt node.Node) error {
	e.Weight = b.weight
	e.Delay = b.delay
	e.Receptor = b.receptor
	return tgt.Handle(e)
}

const StaticModel = "static_synapse"

// Static is a connection with fixed weight and delay.
type Static struct {
	base
}

func (s *Static) Bind(res simtime.Resolution, _ node.Node) error {
	s.res = res
	return nil
}

func (s *Static) Send(e *event.Event, tgt node.Node) error {
	return s.deliver(e, tgt)
}

func (s *Static) Reset() {}

func (s *Static) Status() node.Status { return s.status() }

func (s *Static) SetStatus(st node.Status) error {
	nb, err := s.set(st)
	if err != nil {
		return err
	}
	s.base = nb
	return nil
}

// StaticType creates static connections.
type StaticType struct{}

func (StaticType) Name() string { return StaticModel }

func (StaticType) New(target int, delay int64, spec Spec) (Connection, error) {
	s := &Static{base: newBase(StaticModel, target, delay, spec)}
	if len(spec.Params) > 0 {
		if err := s.SetStatus(spec.Params); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (StaticType) Defaults() node.Status {
	return node.Status{"synapse_model": StaticModel}
}

func (StaticType) SetDefaults(st node.Status) error {
	if len(st) > 0 {
		return node.BadProperty(StaticModel, st.Keys()[0], "static synapses have no shared properties")
	}
	return nil
}
