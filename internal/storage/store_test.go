package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/simtime"
)

func testRun() *Run {
	cfg := config.GetPreset("canon_dc")
	res := &experiment.Result{
		Name:        "canon_dc",
		Populations: map[string][]int{"neuron": {1}},
		Spikes: []device.SpikeRecord{
			{Sender: 1, Stamp: simtime.Stamp{Step: 278, Offset: 0.0123}, Time: 27.7877, Multiplicity: 1},
			{Sender: 1, Stamp: simtime.Stamp{Step: 575}, Time: 57.5, Multiplicity: 2},
		},
		Trace: experiment.Trace{
			Names: []string{"V_m", "I_syn"},
			Samples: []event.Sample{
				{Sender: 1, Step: 1, Values: []float64{-70, 0}},
				{Sender: 1, Step: 2, Values: []float64{-69.84, 0.5}},
			},
		},
		Metrics:    map[string]map[string]float64{"neuron": {"rate": 30}},
		Steps:      2000,
		Duration:   200,
		Resolution: 0.1,
		Elapsed:    1500 * time.Microsecond,
	}
	return NewRun(cfg, res)
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	run := testRun()
	if err := st.Save(ctx, run); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := st.Load(ctx, run.Meta.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Meta.Name != "canon_dc" || got.Meta.Seed != config.DefaultSeed {
		t.Errorf("metadata mismatch: %+v", got.Meta)
	}
	if got.Meta.Metrics["neuron"]["rate"] != 30 {
		t.Errorf("expected rate 30, got %g", got.Meta.Metrics["neuron"]["rate"])
	}
	if got.Config == nil || got.Config.Populations[0].Model != "iaf_psc_alpha_canon" {
		t.Errorf("config not restored: %+v", got.Config)
	}
	if len(got.Spikes) != 2 || got.Spikes[0] != run.Spikes[0] || got.Spikes[1] != run.Spikes[1] {
		t.Errorf("spikes mismatch: %+v", got.Spikes)
	}
	if len(got.Trace.Samples) != 2 || got.Trace.Samples[1].Values[0] != -69.84 {
		t.Errorf("trace mismatch: %+v", got.Trace)
	}
	if got.Trace.Names[1] != "I_syn" {
		t.Errorf("trace names %v", got.Trace.Names)
	}
	if got.Result().Elapsed != 1500*time.Microsecond {
		t.Errorf("elapsed %v", got.Result().Elapsed)
	}
}

func TestFileStoreWithoutTrace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := NewFileStore(dir)
	run := testRun()
	run.Trace = experiment.Trace{}
	if err := st.Save(ctx, run); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, run.Meta.ID, tracesFile)); !os.IsNotExist(err) {
		t.Error("expected no traces file")
	}
	got, err := st.Load(ctx, run.Meta.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got.Trace.Samples) != 0 {
		t.Errorf("expected empty trace")
	}
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())

	runs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	older, newer := testRun(), testRun()
	older.Meta.Timestamp = newer.Meta.Timestamp.Add(-time.Hour)
	for _, r := range []*Run{older, newer} {
		if err := st.Save(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	runs, err = st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.Meta.ID {
		t.Errorf("expected newest first, got %+v", runs)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	run := testRun()
	if err := st.Save(ctx, run); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := Resolve(ctx, st, run.Meta.ID[:8])
	if err != nil {
		t.Fatalf("resolve by prefix: %v", err)
	}
	if got.Meta.ID != run.Meta.ID {
		t.Errorf("resolved %s, want %s", got.Meta.ID, run.Meta.ID)
	}
	if _, err := Resolve(ctx, st, "zzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadSpikesRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"short row", "sender,step,offset,time,multiplicity\n1,2,0\n"},
		{"bad number", "sender,step,offset,time,multiplicity\n1,x,0,0.1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSpikes(bytes.NewBufferString(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, testRun()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Name != "canon_dc" {
		t.Errorf("expected name canon_dc, got %q", data.Name)
	}
	if len(data.Spikes) != 2 || data.Spikes[1].Multiplicity != 2 {
		t.Errorf("spikes %+v", data.Spikes)
	}
	if len(data.Samples) != 2 || data.Samples[1].Time != 0.2 {
		t.Errorf("samples %+v", data.Samples)
	}
}

func TestNewStore(t *testing.T) {
	st, err := NewStore("file", t.TempDir())
	if err != nil || st == nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := NewStore("unknown", ""); err == nil {
		t.Fatal("expected unsupported store error")
	}
	if err := CloseIfSupported(st); err != nil {
		t.Errorf("close: %v", err)
	}
}
