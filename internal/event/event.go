// Package event defines the typed records exchanged between nodes.
package event

import (
	"fmt"

	"github.com/san-kum/spikesim/internal/simtime"
)

type Kind uint8

const (
	Spike Kind = iota
	Current
	DataLogging
	RefractoryEnd
)

var kindNames = [...]string{"spike", "current", "data_logging", "refractory_end"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is an immutable record of one emission. Stamp is the emission
// time; Delay is filled in per connection at delivery.
type Event struct {
	Kind         Kind
	Sender       int
	Stamp        simtime.Stamp
	Delay        int64
	Weight       float64
	Current      float64
	Multiplicity int
	Receptor     int
	Request      *LoggingRequest
}

// GridSpike is a spike emitted at the end of update step t.
func GridSpike(sender int, t int64, multiplicity int) Event {
	return Event{
		Kind:         Spike,
		Sender:       sender,
		Stamp:        simtime.Stamp{Step: t + 1},
		Multiplicity: multiplicity,
	}
}

// PreciseSpike is a spike with an off-grid stamp.
func PreciseSpike(sender int, s simtime.Stamp) Event {
	return Event{Kind: Spike, Sender: sender, Stamp: s, Multiplicity: 1}
}

// CurrentAt is a current that holds from the end of update step t on.
func CurrentAt(sender int, t int64, amp float64) Event {
	return Event{Kind: Current, Sender: sender, Stamp: simtime.Stamp{Step: t + 1}, Current: amp}
}

// DeliveryStep is the update step of the receiver in which the event
// takes effect.
func (e *Event) DeliveryStep() int64 {
	return e.Stamp.Step + e.Delay - 1
}

// Value is the total weighted contribution of a spike.
func (e *Event) Value() float64 {
	m := e.Multiplicity
	if m == 0 {
		m = 1
	}
	return e.Weight * float64(m)
}

func (e Event) String() string {
	return fmt.Sprintf("%s from %d at %v delay %d", e.Kind, e.Sender, e.Stamp, e.Delay)
}
