package node

import (
	"errors"
	"sync"
	"testing"

	"github.com/san-kum/spikesim/internal/event"
)

func TestStatusUpdateFloat(t *testing.T) {
	s := Status{"tau_m": 10, "C_m": 250.5, "name": "x"}

	var v float64
	ok, err := s.UpdateFloat("tau_m", &v)
	if !ok || err != nil || v != 10 {
		t.Errorf("int should convert: ok=%v err=%v v=%g", ok, err, v)
	}
	ok, err = s.UpdateFloat("missing", &v)
	if ok || err != nil || v != 10 {
		t.Errorf("missing key must leave dst untouched")
	}
	_, err = s.UpdateFloat("name", &v)
	if !errors.Is(err, ErrBadProperty) {
		t.Errorf("expected ErrBadProperty, got %v", err)
	}
}

func TestStatusUpdateInt(t *testing.T) {
	s := Status{"a": 3.0, "b": 3.5}
	var n int64
	if ok, err := s.UpdateInt("a", &n); !ok || err != nil || n != 3 {
		t.Errorf("integral float should convert: %v %v %d", ok, err, n)
	}
	if _, err := s.UpdateInt("b", &n); !errors.Is(err, ErrBadProperty) {
		t.Errorf("fractional value should be rejected, got %v", err)
	}
}

func TestStatusLists(t *testing.T) {
	s := Status{
		"times": []any{1, 2.5, int64(3)},
		"lut":   []any{0, 1, 2},
		"names": []any{"V_m"},
		"bad":   []any{"x"},
	}

	var f []float64
	if _, err := s.UpdateFloats("times", &f); err != nil || len(f) != 3 || f[1] != 2.5 {
		t.Errorf("float list: %v %v", f, err)
	}
	var n []int64
	if _, err := s.UpdateInts("lut", &n); err != nil || len(n) != 3 || n[2] != 2 {
		t.Errorf("int list: %v %v", n, err)
	}
	var names []string
	if _, err := s.UpdateStrings("names", &names); err != nil || names[0] != "V_m" {
		t.Errorf("string list: %v %v", names, err)
	}
	if _, err := s.UpdateFloats("bad", &f); !errors.Is(err, ErrBadProperty) {
		t.Errorf("expected ErrBadProperty, got %v", err)
	}
}

func TestPropertyErrorTag(t *testing.T) {
	err := Tag("iaf", BadProperty("", "C_m", "must be positive"))
	var pe *PropertyError
	if !errors.As(err, &pe) || pe.Model != "iaf" {
		t.Fatalf("expected tagged PropertyError, got %v", err)
	}
	if err.Error() != "iaf: C_m: must be positive" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHistoryPruning(t *testing.T) {
	var h History
	h.Record(1)
	if h.Len() != 0 {
		t.Fatal("spikes are archived only when someone reads them")
	}

	h.Register(0)
	h.Register(0)
	h.Record(5)
	h.Record(10)
	h.Record(15)

	got := h.Range(4, 10)
	if len(got) != 2 || got[0].T != 5 || got[1].T != 10 {
		t.Fatalf("range (4,10]: got %+v", got)
	}
	// only one reader so far: nothing may be pruned
	h.Record(20)
	if h.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", h.Len())
	}

	h.Range(4, 10)
	h.Record(25)
	if h.Len() != 3 {
		t.Errorf("entries read by both connections should be pruned, got %d", h.Len())
	}
	if h.LastSpike() != 25 {
		t.Errorf("expected last spike 25, got %g", h.LastSpike())
	}

	h.Clear()
	if h.Len() != 0 || h.Incoming() != 2 {
		t.Errorf("clear must keep registrations: len=%d incoming=%d", h.Len(), h.Incoming())
	}
}

type fakeRecordable struct{ v float64 }

func (f *fakeRecordable) Recordables() []string { return []string{"V_m"} }
func (f *fakeRecordable) Record(name string) (float64, bool) {
	if name == "V_m" {
		return f.v, true
	}
	return 0, false
}

type collector struct {
	mu      sync.Mutex
	samples []event.Sample
}

func (c *collector) Collect(s event.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func TestDataLogger(t *testing.T) {
	var l DataLogger
	rec := &fakeRecordable{}
	sink := &collector{}

	if err := l.Connect(&event.LoggingRequest{Names: []string{"g_ex"}, Interval: 1, Sink: sink}, rec); !errors.Is(err, ErrUnknownRecordable) {
		t.Errorf("expected ErrUnknownRecordable, got %v", err)
	}
	if err := l.Connect(&event.LoggingRequest{Names: []string{"V_m"}, Interval: 0, Sink: sink}, rec); !errors.Is(err, ErrLoggingInterval) {
		t.Errorf("expected ErrLoggingInterval, got %v", err)
	}
	if err := l.Connect(&event.LoggingRequest{Names: []string{"V_m"}, Interval: 5, Sink: sink}, rec); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	for step := int64(0); step < 20; step++ {
		rec.v = float64(step)
		l.Record(7, step, rec)
	}

	if len(sink.samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(sink.samples))
	}
	first := sink.samples[0]
	if first.Sender != 7 || first.Step != 5 || first.Values[0] != 4 {
		t.Errorf("unexpected first sample %+v", first)
	}
}
