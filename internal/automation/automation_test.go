package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/san-kum/spikesim/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: drive levels
steps:
  - name: weak
    preset: canon_dc
    duration: 50
    overrides:
      neuron.I_e: 300.0
  - name: strong
    preset: canon_dc
    duration: 50
    overrides:
      neuron.I_e: 600.0
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	results, err := RunScenario(context.Background(), sc, quiet)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "weak" || results[0].Steps != 500 {
		t.Errorf("first step: name %q steps %d", results[0].Name, results[0].Steps)
	}
	if len(results[0].Spikes) != 0 {
		t.Errorf("subthreshold drive should not fire, got %d spikes", len(results[0].Spikes))
	}
	if len(results[1].Spikes) == 0 {
		t.Error("suprathreshold drive should fire")
	}
}

func TestScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no steps", "name: empty\n"},
		{"bad yaml", "steps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	sc := &Scenario{Steps: []ScenarioStep{{Preset: "canon_dc", Duration: 10}, {Preset: "nope"}}}
	results, err := RunScenario(context.Background(), sc, quiet)
	if err == nil {
		t.Fatal("expected unknown preset error")
	}
	if len(results) != 1 {
		t.Errorf("expected the first result to survive, got %d", len(results))
	}
}

func TestOverride(t *testing.T) {
	tests := []struct {
		name string
		key  string
		err  bool
	}{
		{"population param", "neuron.I_e", false},
		{"missing dot", "I_e", true},
		{"empty param", "neuron.", true},
		{"unknown population", "glia.I_e", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetPreset("canon_dc")
			err := Override(cfg, tt.key, 1.0)
			if tt.err {
				if !errors.Is(err, ErrBadOverride) {
					t.Errorf("expected ErrBadOverride, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Populations[0].Params["I_e"] != 1.0 {
				t.Errorf("override not applied")
			}
		})
	}
}

func TestSweepValues(t *testing.T) {
	sw := &ParameterSweep{Min: 100, Max: 500, Steps: 5}
	want := []float64{100, 200, 300, 400, 500}
	got := sw.Values()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: %g, want %g", i, got[i], want[i])
		}
	}
	if v := (&ParameterSweep{Min: 7, Max: 9, Steps: 1}).Values(); len(v) != 1 || v[0] != 7 {
		t.Errorf("single step sweep %v", v)
	}
}

func TestFICurve(t *testing.T) {
	base := config.GetPreset("canon_dc")
	base.Duration = 100
	base.Record.Multimeter = nil
	sw := &ParameterSweep{
		Base:       base,
		Population: "neuron",
		Param:      "I_e",
		Min:        300,
		Max:        500,
		Steps:      3,
		Workers:    2,
	}
	results, err := RunSweep(context.Background(), sw, quiet)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 points, got %d", len(results))
	}
	if results[0].Spikes != 0 {
		t.Errorf("300 pA is below rheobase, got %d spikes", results[0].Spikes)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Value <= results[i-1].Value {
			t.Errorf("results out of order at %d", i)
		}
		if results[i].Rate < results[i-1].Rate {
			t.Errorf("rate decreased from %g to %g", results[i-1].Rate, results[i].Rate)
		}
	}
	if results[2].Spikes <= results[1].Spikes {
		t.Errorf("500 pA should fire more than 400 pA: %d vs %d", results[2].Spikes, results[1].Spikes)
	}
	if base.Populations[0].Params["I_e"] != 400.0 {
		t.Error("sweep must not modify the base config")
	}
}

func TestSweepRejectsUnknownPopulation(t *testing.T) {
	sw := &ParameterSweep{Preset: "canon_dc", Population: "glia", Param: "I_e", Steps: 2}
	if _, err := RunSweep(context.Background(), sw, quiet); !errors.Is(err, ErrBadOverride) {
		t.Errorf("expected ErrBadOverride, got %v", err)
	}
}

func TestEnsemble(t *testing.T) {
	base := config.GetPreset("poisson_drive")
	base.Duration = 50
	base.Populations[1].Size = 5
	base.Record.Multimeter = nil

	ens := &Ensemble{Base: base, Runs: 3, SeedStart: 7, Workers: 3}
	results, err := ens.Run(context.Background(), quiet)
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(results))
	}
	for i, r := range results {
		if r.Seed != 7+uint64(i) {
			t.Errorf("run %d has seed %d", i, r.Seed)
		}
	}
	mean, std := Summary(results, "neurons", "rate")
	if mean <= 0 {
		t.Errorf("expected positive mean rate, got %g", mean)
	}
	if std < 0 {
		t.Errorf("negative std %g", std)
	}
	if m, s := Summary(results, "missing", "rate"); m != 0 || s != 0 {
		t.Errorf("missing population should summarize to zero")
	}
}

func TestGridSearchTargetRate(t *testing.T) {
	base := config.GetPreset("canon_dc")
	base.Duration = 100
	base.Record.Multimeter = nil

	g, err := NewGridSearch([]string{"neuron.I_e"}, [][]float64{{300, 420, 1000}})
	if err != nil {
		t.Fatal(err)
	}
	// 420 pA fires at a few tens of Hz, 1000 pA far faster, 300 pA not at all
	params, score, err := g.Search(context.Background(), base, TargetRate("neuron", 35), quiet)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if params["neuron.I_e"] != 420 {
		t.Errorf("expected 420 pA, got %v (score %g)", params, score)
	}

	if _, err := NewGridSearch([]string{"a.b"}, nil); err == nil {
		t.Error("expected mismatch error")
	}
	bad, _ := NewGridSearch([]string{"glia.I_e"}, [][]float64{{1}})
	if _, _, err := bad.Search(context.Background(), base, TargetRate("neuron", 1), quiet); !errors.Is(err, ErrBadOverride) {
		t.Errorf("expected ErrBadOverride, got %v", err)
	}
}
