// Package automation runs batches of experiments: scripted scenarios,
// parameter sweeps and seed ensembles.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
)

var ErrBadOverride = errors.New("automation: bad override")

// Scenario is a sequence of runs described in YAML.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or a config file and applies
// overrides. Override keys are "population.param".
type ScenarioStep struct {
	Name      string         `yaml:"name"`
	Preset    string         `yaml:"preset"`
	Config    string         `yaml:"config"`
	Duration  float64        `yaml:"duration"`
	Threads   int            `yaml:"threads"`
	Seed      uint64         `yaml:"seed"`
	Overrides map[string]any `yaml:"overrides"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// build resolves the step into a validated configuration.
func (s ScenarioStep) build() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Preset != "":
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", s.Preset)
		}
	case s.Config != "":
		var err error
		if cfg, err = config.Load(s.Config); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("step needs a preset or a config")
	}
	if s.Name != "" {
		cfg.Name = s.Name
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.Threads > 0 {
		cfg.Threads = s.Threads
	}
	if s.Seed > 0 {
		cfg.Seed = s.Seed
	}
	for key, v := range s.Overrides {
		if err := Override(cfg, key, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// Override sets one model parameter of a population, addressed as
// "population.param".
func Override(cfg *config.Config, key string, value any) error {
	pop, param, ok := strings.Cut(key, ".")
	if !ok || param == "" {
		return fmt.Errorf("%w: %q is not population.param", ErrBadOverride, key)
	}
	for i := range cfg.Populations {
		if cfg.Populations[i].Name != pop {
			continue
		}
		if cfg.Populations[i].Params == nil {
			cfg.Populations[i].Params = make(map[string]any)
		}
		cfg.Populations[i].Params[param] = value
		return nil
	}
	return fmt.Errorf("%w: unknown population %q", ErrBadOverride, pop)
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the results gathered so far.
func RunScenario(ctx context.Context, scenario *Scenario, log *slog.Logger) ([]*experiment.Result, error) {
	results := make([]*experiment.Result, 0, len(scenario.Steps))
	for i, step := range scenario.Steps {
		cfg, err := step.build()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Info("scenario step",
			slog.Int("step", i+1),
			slog.Int("of", len(scenario.Steps)),
			slog.String("name", cfg.Name))

		res, err := experiment.New(cfg, experiment.WithLogger(log)).Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}
