package automation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
)

// ParameterSweep varies one population parameter over an evenly spaced
// range and records the population's response, e.g. an f-I curve when
// the parameter is I_e.
type ParameterSweep struct {
	Base       *config.Config `yaml:"-"`
	Preset     string         `yaml:"preset"`
	Population string         `yaml:"population"`
	Param      string         `yaml:"param"`
	Min        float64        `yaml:"min"`
	Max        float64        `yaml:"max"`
	Steps      int            `yaml:"steps"`
	Workers    int            `yaml:"workers"`
}

type SweepResult struct {
	Value  float64            `json:"value"`
	Spikes int                `json:"spikes"`
	Rate   float64            `json:"rate"`
	Stats  map[string]float64 `json:"stats"`
}

func (sw *ParameterSweep) base() (*config.Config, error) {
	if sw.Base != nil {
		return sw.Base, nil
	}
	cfg := config.GetPreset(sw.Preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset %q", sw.Preset)
	}
	return cfg, nil
}

// Values returns the swept parameter values.
func (sw *ParameterSweep) Values() []float64 {
	if sw.Steps < 1 {
		return nil
	}
	if sw.Steps == 1 {
		return []float64{sw.Min}
	}
	out := make([]float64, sw.Steps)
	step := (sw.Max - sw.Min) / float64(sw.Steps-1)
	for i := range out {
		out[i] = sw.Min + float64(i)*step
	}
	return out
}

// RunSweep runs one experiment per value, several at a time. Results are
// in the order of Values.
func RunSweep(ctx context.Context, sw *ParameterSweep, log *slog.Logger) ([]SweepResult, error) {
	if sw.Steps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sw.Steps)
	}
	base, err := sw.base()
	if err != nil {
		return nil, err
	}
	if _, ok := base.Population(sw.Population); !ok {
		return nil, fmt.Errorf("%w: unknown population %q", ErrBadOverride, sw.Population)
	}

	values := sw.Values()
	results := make([]SweepResult, len(values))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(sw.Workers))
	for i, v := range values {
		g.Go(func() error {
			cfg := base.Clone()
			if err := Override(cfg, sw.Population+"."+sw.Param, v); err != nil {
				return err
			}
			res, err := experiment.New(cfg, experiment.WithLogger(log)).Run(ctx)
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, v, err)
			}
			spikes := res.SpikesOf(sw.Population)
			stats := res.Metrics[sw.Population]
			results[i] = SweepResult{Value: v, Spikes: len(spikes), Rate: stats["rate"], Stats: stats}
			log.Debug("sweep point", slog.String(sw.Param, fmt.Sprint(v)), slog.Int("spikes", len(spikes)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
