package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/storage"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		runes  int
	}{
		{"empty", nil, 5, 5},
		{"fits", []float64{1, 2, 3}, 10, 3},
		{"sampled", make([]float64, 100), 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sparkline(tt.values, tt.width)
			n := 0
			for _, r := range got {
				if r == '─' || (r >= '▁' && r <= '█') {
					n++
				}
			}
			if n != tt.runes {
				t.Errorf("expected %d bars, got %d in %q", tt.runes, n, got)
			}
		})
	}
}

func TestRaster(t *testing.T) {
	spikes := []device.SpikeRecord{
		{Sender: 2, Time: 0},
		{Sender: 1, Time: 50},
		{Sender: 2, Time: 99},
	}
	out := Raster(spikes, 100, 10, 10)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 2 rows and an axis, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "    1 ") || lines[0][6+5] != '|' {
		t.Errorf("row for node 1: %q", lines[0])
	}
	if strings.Count(lines[1], "|") != 2 {
		t.Errorf("row for node 2: %q", lines[1])
	}
	if got := Raster(spikes, 100, 10, 1); !strings.Contains(got, "1 more") {
		t.Errorf("expected truncation note, got %q", got)
	}
}

func TestTracePlots(t *testing.T) {
	tr := experiment.Trace{
		Names: []string{"V_m"},
		Samples: []event.Sample{
			{Sender: 1, Step: 1, Values: []float64{-70}},
			{Sender: 2, Step: 1, Values: []float64{-60}},
			{Sender: 1, Step: 2, Values: []float64{-65}},
		},
	}
	plots := TracePlots(tr, 1)
	if len(plots) != 1 || !strings.Contains(plots[0], "V_m of node 1") {
		t.Errorf("unexpected plots %q", plots)
	}
	if len(TracePlots(tr, 9)) != 0 {
		t.Error("unknown sender should produce no plot")
	}
}

func TestSummaryAndTable(t *testing.T) {
	res := &experiment.Result{
		Name:        "demo",
		Populations: map[string][]int{"exc": {1, 2}},
		Spikes:      []device.SpikeRecord{{Sender: 1, Time: 3, Multiplicity: 1}},
		Metrics:     map[string]map[string]float64{"exc": {"rate": 5, "spike_count": 1}},
		Duration:    100,
	}
	meta := storage.RunMetadata{
		ID:        "0123456789abcdef",
		Name:      "demo",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  100,
		Metrics:   res.Metrics,
	}
	out := Summary(meta, res)
	for _, want := range []string{"demo", "exc (2)", "spike_count", "rate"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q", want)
		}
	}

	var buf bytes.Buffer
	if err := RunTable(&buf, []storage.RunMetadata{meta}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(buf.String(), "01234567") || !strings.Contains(buf.String(), "exc=5.0") {
		t.Errorf("table %q", buf.String())
	}
}
