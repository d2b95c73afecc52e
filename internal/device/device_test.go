package device

import (
	"errors"
	"math"
	"sync"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

var res = simtime.Resolution{H: 0.1}

func drive(t *testing.T, n node.Node, st node.Status, from, to int64) []event.Event {
	t.Helper()
	if st != nil {
		if err := n.SetStatus(st); err != nil {
			t.Fatalf("set status: %v", err)
		}
	}
	if err := n.Calibrate(res); err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	n.InitState()
	n.InitBuffers(16)
	var out []event.Event
	ctx := node.NewContext(res, 0, rand.New(rand.NewSource(7)), func(e event.Event) {
		out = append(out, e)
	})
	ctx.Origin = from
	n.Update(ctx, from, to)
	return out
}

func TestDCGeneratorWindow(t *testing.T) {
	out := drive(t, NewDCGenerator(), node.Status{"amplitude": 50.0, "start": 1.0, "stop": 2.0}, 0, 40)
	if len(out) != 10 {
		t.Fatalf("expected 10 current events, got %d", len(out))
	}
	for i, e := range out {
		if e.Kind != event.Current || e.Current != 50 {
			t.Errorf("event %d: %v", i, e)
		}
		if want := int64(11 + i); e.Stamp.Step != want {
			t.Errorf("event %d stamped %d, want %d", i, e.Stamp.Step, want)
		}
	}
}

func TestDCGeneratorRejectsInvertedWindow(t *testing.T) {
	g := NewDCGenerator()
	err := g.SetStatus(node.Status{"start": 5.0, "stop": 1.0})
	if !errors.Is(err, node.ErrBadProperty) {
		t.Fatalf("expected ErrBadProperty, got %v", err)
	}
	if g.Status()["start"] != 0.0 {
		t.Error("failed update must not change the window")
	}
}

func TestPoissonGeneratorRate(t *testing.T) {
	// 100 Hz over 10 s
	out := drive(t, NewPoissonGenerator(), node.Status{"rate": 100.0}, 0, 100000)
	total := 0
	for _, e := range out {
		if e.Multiplicity < 1 {
			t.Fatalf("empty spike event %v", e)
		}
		total += e.Multiplicity
	}
	if total < 900 || total > 1100 {
		t.Errorf("expected about 1000 spikes, got %d", total)
	}
}

func TestPoissonGeneratorSilentAtZeroRate(t *testing.T) {
	if out := drive(t, NewPoissonGenerator(), nil, 0, 1000); len(out) != 0 {
		t.Errorf("zero rate produced %d events", len(out))
	}
	if err := NewPoissonGenerator().SetStatus(node.Status{"rate": -1.0}); !errors.Is(err, node.ErrBadProperty) {
		t.Errorf("negative rate accepted: %v", err)
	}
}

func TestSpikeGeneratorGrid(t *testing.T) {
	out := drive(t, NewSpikeGenerator(), node.Status{"spike_times": []float64{0.1, 0.5, 2.0}}, 0, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 spikes before 1 ms, got %d", len(out))
	}
	for i, want := range []int64{1, 5} {
		if out[i].Stamp.Step != want || !out[i].Stamp.OnGrid() {
			t.Errorf("spike %d stamped %v, want %d", i, out[i].Stamp, want)
		}
	}
}

func TestSpikeGeneratorPrecise(t *testing.T) {
	g := NewSpikeGenerator()
	out := drive(t, g, node.Status{"spike_times": []float64{0.63}, "precise_times": true}, 0, 10)
	if !g.OffGrid() {
		t.Error("precise generator must report off-grid spikes")
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 spike, got %d", len(out))
	}
	if got := res.StampMs(out[0].Stamp); math.Abs(got-0.63) > 1e-12 {
		t.Errorf("spike at %.15f, want 0.63", got)
	}
	if out[0].Stamp.Step != 7 {
		t.Errorf("spike stamped %v, want step 7", out[0].Stamp)
	}
}

func TestSpikeGeneratorAcrossSlices(t *testing.T) {
	g := NewSpikeGenerator()
	drive(t, g, node.Status{"spike_times": []float64{0.3, 0.8}}, 0, 0)

	var out []event.Event
	ctx := node.NewContext(res, 0, nil, func(e event.Event) { out = append(out, e) })
	for from := int64(0); from < 10; from += 2 {
		g.Update(ctx, from, from+2)
	}
	if len(out) != 2 {
		t.Fatalf("expected each spike once, got %d", len(out))
	}
}

func TestSpikeGeneratorValidation(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
	}{
		{"unsorted", []float64{2, 1}},
		{"zero", []float64{0, 1}},
		{"negative", []float64{-1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSpikeGenerator().SetStatus(node.Status{"spike_times": tt.times})
			if !errors.Is(err, node.ErrBadProperty) {
				t.Errorf("expected ErrBadProperty, got %v", err)
			}
		})
	}
}

func TestSpikeRecorderOrdersEvents(t *testing.T) {
	r := NewSpikeRecorder()
	if err := r.Calibrate(res); err != nil {
		t.Fatal(err)
	}
	evs := []event.Event{
		event.GridSpike(3, 4, 1),
		event.GridSpike(2, 4, 2),
		event.PreciseSpike(9, simtime.Stamp{Step: 5, Offset: 0.05}),
		event.GridSpike(1, 1, 1),
	}
	for i := range evs {
		if err := r.Handle(&evs[i]); err != nil {
			t.Fatal(err)
		}
	}
	got := r.Events()
	wantSenders := []int{1, 9, 2, 3}
	for i, s := range wantSenders {
		if got[i].Sender != s {
			t.Errorf("record %d from %d, want %d", i, got[i].Sender, s)
		}
	}
	if got[2].Multiplicity != 2 {
		t.Errorf("multiplicity lost: %+v", got[2])
	}
	if math.Abs(got[1].Time-0.45) > 1e-12 {
		t.Errorf("precise time %g, want 0.45", got[1].Time)
	}

	if err := r.SetStatus(node.Status{"n_events": 0}); err != nil {
		t.Fatal(err)
	}
	if len(r.Events()) != 0 {
		t.Error("n_events=0 should clear the recorder")
	}
}

func TestSpikeRecorderAccepts(t *testing.T) {
	r := NewSpikeRecorder()
	if err := r.Accepts(event.Current, 0); !errors.Is(err, node.ErrIncompatibleEvent) {
		t.Errorf("currents must be rejected, got %v", err)
	}
	if err := r.Accepts(event.Spike, 1); !errors.Is(err, node.ErrUnknownReceptor) {
		t.Errorf("receptor 1 must be rejected, got %v", err)
	}
}

func TestMultimeterRequest(t *testing.T) {
	m := NewMultimeter()
	if err := m.SetStatus(node.Status{"interval": 0.25, "record_from": []string{"V_m"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Request(res); !errors.Is(err, node.ErrLoggingInterval) {
		t.Fatalf("0.25 ms is not a multiple of 0.1 ms, got %v", err)
	}
	if err := m.SetStatus(node.Status{"interval": 0.5}); err != nil {
		t.Fatal(err)
	}
	req, err := m.Request(res)
	if err != nil {
		t.Fatal(err)
	}
	if req.Interval != 5 || len(req.Names) != 1 || req.Sink != m {
		t.Errorf("unexpected request %+v", req)
	}
	if err := m.SetStatus(node.Status{"record_from": []string{"V_m", "E_sfa"}}); err != nil {
		t.Errorf("record_from may change until connected, got %v", err)
	}
	m.MarkConnected()
	if err := m.SetStatus(node.Status{"record_from": []string{"I_syn"}}); !errors.Is(err, node.ErrBadProperty) {
		t.Errorf("record_from must be frozen after connecting, got %v", err)
	}
}

func TestMultimeterCollectConcurrent(t *testing.T) {
	m := NewMultimeter()
	var wg sync.WaitGroup
	for th := 0; th < 4; th++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for s := int64(1); s <= 100; s++ {
				m.Collect(event.Sample{Sender: sender, Step: s, Values: []float64{float64(s)}})
			}
		}(th)
	}
	wg.Wait()

	got := m.Samples()
	if len(got) != 400 {
		t.Fatalf("expected 400 samples, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		if a.Step > b.Step || (a.Step == b.Step && a.Sender > b.Sender) {
			t.Fatalf("samples out of order at %d: %+v then %+v", i, a, b)
		}
	}
}
