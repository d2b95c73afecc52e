package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

const (
	SpikeRecorderModel = "spike_recorder"
	MultimeterModel    = "multimeter"
)

// SpikeRecord is one recorded spike.
type SpikeRecord struct {
	Sender       int
	Stamp        simtime.Stamp
	Time         float64
	Multiplicity int
}

// SpikeRecorder collects the spikes of the nodes connected to it. Events
// are delivered by the recorder's own thread, so no locking is needed.
type SpikeRecorder struct {
	node.Base
	res    simtime.Resolution
	events []SpikeRecord
}

func NewSpikeRecorder() *SpikeRecorder {
	return &SpikeRecorder{Base: node.NewBase(SpikeRecorderModel)}
}

func (r *SpikeRecorder) Emits() (event.Kind, bool) { return 0, false }

func (r *SpikeRecorder) Accepts(kind event.Kind, receptor int) error {
	if kind != event.Spike {
		return fmt.Errorf("%w: %s records spikes only, got %s", node.ErrIncompatibleEvent, SpikeRecorderModel, kind)
	}
	if receptor != 0 {
		return fmt.Errorf("%w: %s has no receptor %d", node.ErrUnknownReceptor, SpikeRecorderModel, receptor)
	}
	return nil
}

func (r *SpikeRecorder) Handle(e *event.Event) error {
	if e.Kind != event.Spike {
		return fmt.Errorf("%w: %s", node.ErrIncompatibleEvent, e.Kind)
	}
	m := e.Multiplicity
	if m == 0 {
		m = 1
	}
	r.events = append(r.events, SpikeRecord{
		Sender:       e.Sender,
		Stamp:        e.Stamp,
		Time:         r.res.StampMs(e.Stamp),
		Multiplicity: m,
	})
	return nil
}

func (r *SpikeRecorder) Calibrate(res simtime.Resolution) error {
	r.res = res
	return nil
}

func (r *SpikeRecorder) InitState()                         { r.events = r.events[:0] }
func (r *SpikeRecorder) InitBuffers(int)                    {}
func (r *SpikeRecorder) Update(*node.Context, int64, int64) {}

// Events returns the recorded spikes ordered by time, then sender.
func (r *SpikeRecorder) Events() []SpikeRecord {
	out := append([]SpikeRecord(nil), r.events...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stamp != out[j].Stamp {
			return out[i].Stamp.Less(out[j].Stamp)
		}
		return out[i].Sender < out[j].Sender
	})
	return out
}

func (r *SpikeRecorder) Status() node.Status {
	return node.Status{"n_events": len(r.events)}
}

func (r *SpikeRecorder) SetStatus(st node.Status) error {
	var n int64 = -1
	if _, err := st.UpdateInt("n_events", &n); err != nil {
		return node.Tag(SpikeRecorderModel, err)
	}
	switch {
	case n == 0:
		r.events = r.events[:0]
	case n > 0:
		return node.BadProperty(SpikeRecorderModel, "n_events", "can only be reset to 0")
	}
	return nil
}

// Multimeter samples recordables of the neurons it is connected to. The
// neurons push samples from their own threads.
type Multimeter struct {
	node.Base
	interval   float64
	recordFrom []string
	connected  bool

	mu      sync.Mutex
	samples []event.Sample
}

func NewMultimeter() *Multimeter {
	return &Multimeter{Base: node.NewBase(MultimeterModel), interval: 1}
}

func (m *Multimeter) Emits() (event.Kind, bool) { return event.DataLogging, true }

func (m *Multimeter) Accepts(kind event.Kind, receptor int) error {
	return fmt.Errorf("%w: %s accepts no input", node.ErrIncompatibleEvent, MultimeterModel)
}

func (m *Multimeter) Handle(e *event.Event) error {
	return fmt.Errorf("%w: %s accepts no input", node.ErrIncompatibleEvent, MultimeterModel)
}

func (m *Multimeter) Calibrate(simtime.Resolution) error { return nil }

func (m *Multimeter) InitState() {
	m.mu.Lock()
	m.samples = m.samples[:0]
	m.mu.Unlock()
}

func (m *Multimeter) InitBuffers(int)                    {}
func (m *Multimeter) Update(*node.Context, int64, int64) {}

func (m *Multimeter) Status() node.Status {
	m.mu.Lock()
	n := len(m.samples)
	m.mu.Unlock()
	return node.Status{
		"interval":    m.interval,
		"record_from": append([]string(nil), m.recordFrom...),
		"n_events":    n,
	}
}

func (m *Multimeter) SetStatus(st node.Status) error {
	interval, names := m.interval, m.recordFrom
	if _, err := st.UpdateFloat("interval", &interval); err != nil {
		return node.Tag(MultimeterModel, err)
	}
	changed, err := st.UpdateStrings("record_from", &names)
	if err != nil {
		return node.Tag(MultimeterModel, err)
	}
	if !(interval > 0) {
		return node.BadProperty(MultimeterModel, "interval", "must be positive")
	}
	if m.connected && (changed || interval != m.interval) {
		return node.BadProperty(MultimeterModel, "record_from", "cannot change after connecting")
	}
	m.interval, m.recordFrom = interval, names
	return nil
}

// Request builds the subscription sent to a target at connect time.
func (m *Multimeter) Request(res simtime.Resolution) (*event.LoggingRequest, error) {
	if !res.IsMultiple(m.interval) {
		return nil, fmt.Errorf("%w: interval %g ms is not a multiple of %g ms",
			node.ErrLoggingInterval, m.interval, res.H)
	}
	return &event.LoggingRequest{
		Names:    append([]string(nil), m.recordFrom...),
		Interval: res.Steps(m.interval),
		Sink:     m,
	}, nil
}

// MarkConnected freezes interval and record_from once a request has
// been accepted by a target.
func (m *Multimeter) MarkConnected() { m.connected = true }

func (m *Multimeter) Collect(s event.Sample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.mu.Unlock()
}

// Samples returns the collected rows ordered by step, then sender.
func (m *Multimeter) Samples() []event.Sample {
	m.mu.Lock()
	out := append([]event.Sample(nil), m.samples...)
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		return out[i].Sender < out[j].Sender
	})
	return out
}

// Names returns the recorded quantities in column order.
func (m *Multimeter) Names() []string {
	return append([]string(nil), m.recordFrom...)
}
