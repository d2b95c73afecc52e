// Package node defines the capability interface every simulated element
// implements, together with the pieces neuron and device models share:
// the per-thread update context, status dictionaries, the spike archive
// and the data logger.
package node

import (
	"golang.org/x/exp/rand"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/simtime"
)

// Node is a neuron, stimulator or recorder.
//
// Update advances the node over the update steps [from, to). Handle feeds
// an incoming event into the node's buffers; it runs on the thread that
// owns the node, never concurrently with Update.
type Node interface {
	ID() int
	SetID(id int)
	Model() string

	Calibrate(res simtime.Resolution) error
	InitState()
	InitBuffers(capacity int)
	Update(ctx *Context, from, to int64)
	Handle(e *event.Event) error

	Status() Status
	SetStatus(Status) error

	// Accepts reports whether events of kind may be delivered to receptor.
	Accepts(kind event.Kind, receptor int) error
	// Emits reports the kind of event the node sends, if any.
	Emits() (event.Kind, bool)
}

// Precise is implemented by nodes that emit off-grid spikes.
type Precise interface {
	OffGrid() bool
}

// Recordable exposes named quantities at the current step.
type Recordable interface {
	Recordables() []string
	Record(name string) (float64, bool)
}

// Archiver is implemented by neurons that keep their own spike history
// for spike-timing dependent synapses.
type Archiver interface {
	History() *History
}

// Base carries identity and is embedded by every model.
type Base struct {
	id    int
	model string
}

func NewBase(model string) Base {
	return Base{model: model}
}

func (b *Base) ID() int       { return b.id }
func (b *Base) SetID(id int)  { b.id = id }
func (b *Base) Model() string { return b.model }

// Context is what a node sees of the simulation while it updates: the
// slice origin, the step size, its thread and that thread's generator.
type Context struct {
	Origin int64
	Res    simtime.Resolution
	Thread int
	Rand   *rand.Rand

	send func(event.Event)
}

func NewContext(res simtime.Resolution, thread int, rng *rand.Rand, send func(event.Event)) *Context {
	return &Context{Res: res, Thread: thread, Rand: rng, send: send}
}

// Send hands an emitted event to the dispatcher.
func (c *Context) Send(e event.Event) {
	if c.send != nil {
		c.send(e)
	}
}
