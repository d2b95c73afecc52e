package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultResolution = 0.1
	DefaultDuration   = 100.0
	DefaultMaxDelay   = 20.0
	DefaultSeed       = 12345
	DefaultInterval   = 1.0
	DefaultDelay      = 1.0
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config describes a network: its populations, how they are wired and
// what is recorded. Times are in ms, rates in Hz, currents in pA.
type Config struct {
	Name            string                    `yaml:"name,omitempty"`
	Resolution      float64                   `yaml:"resolution"`
	Threads         int                       `yaml:"threads"`
	Seed            uint64                    `yaml:"seed"`
	Duration        float64                   `yaml:"duration"`
	MaxDelay        float64                   `yaml:"max_delay"`
	SynapseDefaults map[string]map[string]any `yaml:"synapse_defaults,omitempty"`
	Populations     []PopulationConfig        `yaml:"populations"`
	Connections     []ConnectionConfig        `yaml:"connections"`
	Record          RecordConfig              `yaml:"record"`
}

type PopulationConfig struct {
	Name   string         `yaml:"name"`
	Model  string         `yaml:"model"`
	Size   int            `yaml:"size"`
	Params map[string]any `yaml:"params,omitempty"`
}

type ConnectionConfig struct {
	Source   string         `yaml:"source"`
	Target   string         `yaml:"target"`
	Rule     string         `yaml:"rule,omitempty"`
	Synapse  string         `yaml:"synapse,omitempty"`
	Weight   float64        `yaml:"weight"`
	Delay    float64        `yaml:"delay"`
	Receptor int            `yaml:"receptor,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

type RecordConfig struct {
	Spikes     []string          `yaml:"spikes,omitempty"`
	Multimeter *MultimeterConfig `yaml:"multimeter,omitempty"`
}

type MultimeterConfig struct {
	Targets    []string `yaml:"targets"`
	RecordFrom []string `yaml:"record_from"`
	Interval   float64  `yaml:"interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Resolution: DefaultResolution,
		Threads:    1,
		Seed:       DefaultSeed,
		Duration:   DefaultDuration,
		MaxDelay:   DefaultMaxDelay,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (c *Config) applyDefaults() {
	for i := range c.Connections {
		if c.Connections[i].Delay == 0 {
			c.Connections[i].Delay = DefaultDelay
		}
		if c.Connections[i].Rule == "" {
			c.Connections[i].Rule = "all_to_all"
		}
	}
	if m := c.Record.Multimeter; m != nil && m.Interval == 0 {
		m.Interval = DefaultInterval
	}
}

func (c *Config) Population(name string) (PopulationConfig, bool) {
	for _, p := range c.Populations {
		if p.Name == name {
			return p, true
		}
	}
	return PopulationConfig{}, false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the structure. Model parameters are checked by the
// models themselves when the network is built.
func (c *Config) Validate() error {
	switch {
	case !(c.Resolution > 0):
		return invalid("resolution must be positive, got %g", c.Resolution)
	case c.Threads < 1:
		return invalid("threads must be at least 1, got %d", c.Threads)
	case !(c.Duration > 0):
		return invalid("duration must be positive, got %g", c.Duration)
	case c.MaxDelay < c.Resolution:
		return invalid("max_delay %g is below the resolution", c.MaxDelay)
	case len(c.Populations) == 0:
		return invalid("no populations")
	}

	seen := make(map[string]bool)
	for _, p := range c.Populations {
		if p.Name == "" {
			return invalid("population without a name")
		}
		if seen[p.Name] {
			return invalid("duplicate population %q", p.Name)
		}
		if p.Model == "" {
			return invalid("population %q has no model", p.Name)
		}
		if p.Size < 1 {
			return invalid("population %q has size %d", p.Name, p.Size)
		}
		seen[p.Name] = true
	}

	for i, cn := range c.Connections {
		if !seen[cn.Source] {
			return invalid("connection %d: unknown source %q", i, cn.Source)
		}
		if !seen[cn.Target] {
			return invalid("connection %d: unknown target %q", i, cn.Target)
		}
		if cn.Delay < c.Resolution || cn.Delay > c.MaxDelay {
			return invalid("connection %d: delay %g outside [%g, %g]", i, cn.Delay, c.Resolution, c.MaxDelay)
		}
		switch cn.Rule {
		case "all_to_all", "one_to_one":
		default:
			return invalid("connection %d: unknown rule %q", i, cn.Rule)
		}
	}

	for _, name := range c.Record.Spikes {
		if !seen[name] {
			return invalid("record: unknown population %q", name)
		}
	}
	if m := c.Record.Multimeter; m != nil {
		if len(m.RecordFrom) == 0 {
			return invalid("multimeter records nothing")
		}
		for _, name := range m.Targets {
			if !seen[name] {
				return invalid("multimeter: unknown population %q", name)
			}
		}
		if !(m.Interval > 0) {
			return invalid("multimeter interval must be positive")
		}
	}
	return nil
}
