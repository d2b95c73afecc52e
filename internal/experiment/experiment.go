// Package experiment builds a network from a configuration, runs it and
// gathers what was recorded.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/metrics"
	"github.com/san-kum/spikesim/internal/network"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/registry"
	"github.com/san-kum/spikesim/internal/synapse"
)

var ErrNotBuilt = errors.New("experiment: network not built")

type Experiment struct {
	cfg *config.Config
	reg *registry.Registry
	log *slog.Logger

	net         *network.Network
	populations map[string][]int
	recorder    *device.SpikeRecorder
	meter       *device.Multimeter
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithRegistry(r *registry.Registry) Option {
	return func(e *Experiment) { e.reg = r }
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg: cfg,
		log: slog.Default().With(slog.String("component", "experiment")),
	}
	for _, o := range opts {
		o(e)
	}
	if e.reg == nil {
		e.reg = registry.New()
	}
	return e
}

// Trace holds the multimeter samples, one value per recorded name.
type Trace struct {
	Names   []string
	Samples []event.Sample
}

type Result struct {
	Name        string
	Populations map[string][]int
	Spikes      []device.SpikeRecord
	Trace       Trace
	Metrics     map[string]map[string]float64
	Steps       int64
	Duration    float64
	Resolution  float64
	Elapsed     time.Duration
}

// SpikesOf returns the recorded spikes sent by members of a population.
func (r *Result) SpikesOf(population string) []device.SpikeRecord {
	members := make(map[int]bool)
	for _, id := range r.Populations[population] {
		members[id] = true
	}
	var out []device.SpikeRecord
	for _, s := range r.Spikes {
		if members[s.Sender] {
			out = append(out, s)
		}
	}
	return out
}

// PopulationNames lists the populations in ascending order of their
// first id.
func (r *Result) PopulationNames() []string {
	names := make([]string, 0, len(r.Populations))
	for name := range r.Populations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.Populations[names[i]][0] < r.Populations[names[j]][0]
	})
	return names
}

func (e *Experiment) Network() *network.Network { return e.net }

// Build creates every population, applies synapse defaults, makes the
// connections and attaches the recording devices.
func (e *Experiment) Build() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	net, err := network.New(network.Config{
		Resolution: e.cfg.Resolution,
		Threads:    e.cfg.Threads,
		Seed:       e.cfg.Seed,
		MaxDelay:   e.cfg.MaxDelay,
	}, e.reg, network.WithLogger(e.log))
	if err != nil {
		return err
	}

	pops := make(map[string][]int, len(e.cfg.Populations))
	for _, p := range e.cfg.Populations {
		ids, err := net.Create(p.Model, p.Size, node.Status(p.Params))
		if err != nil {
			return fmt.Errorf("population %q: %w", p.Name, err)
		}
		pops[p.Name] = ids
	}

	for _, model := range sortedKeys(e.cfg.SynapseDefaults) {
		if err := net.SetSynapseDefaults(model, node.Status(e.cfg.SynapseDefaults[model])); err != nil {
			return fmt.Errorf("synapse defaults %q: %w", model, err)
		}
	}

	for i, c := range e.cfg.Connections {
		spec := synapse.Spec{
			Model:    c.Synapse,
			Weight:   c.Weight,
			Delay:    c.Delay,
			Receptor: c.Receptor,
			Params:   node.Status(c.Params),
		}
		if err := net.ConnectRule(pops[c.Source], pops[c.Target], c.Rule, spec); err != nil {
			return fmt.Errorf("connection %d (%s -> %s): %w", i, c.Source, c.Target, err)
		}
	}

	e.net = net
	e.populations = pops
	if err := e.attachRecorders(); err != nil {
		e.net = nil
		return err
	}

	e.log.Info("network built",
		slog.String("name", e.cfg.Name),
		slog.Int("nodes", len(net.Nodes())),
		slog.Int("connections", net.NumConnections()),
		slog.Int("threads", net.Threads()))
	return nil
}

func (e *Experiment) attachRecorders() error {
	rec := e.cfg.Record
	if len(rec.Spikes) > 0 {
		ids, err := e.net.Create(device.SpikeRecorderModel, 1, nil)
		if err != nil {
			return err
		}
		nd, _ := e.net.Node(ids[0])
		e.recorder = nd.(*device.SpikeRecorder)
		for _, name := range rec.Spikes {
			spec := synapse.Spec{Weight: 1, Delay: e.cfg.Resolution}
			if err := e.net.ConnectRule(e.populations[name], ids, network.AllToAll, spec); err != nil {
				return fmt.Errorf("recording %q: %w", name, err)
			}
		}
	}

	if m := rec.Multimeter; m != nil {
		ids, err := e.net.Create(device.MultimeterModel, 1, node.Status{
			"interval":    m.Interval,
			"record_from": m.RecordFrom,
		})
		if err != nil {
			return err
		}
		nd, _ := e.net.Node(ids[0])
		e.meter = nd.(*device.Multimeter)
		for _, name := range m.Targets {
			if err := e.net.ConnectRule(ids, e.populations[name], network.AllToAll, synapse.Spec{}); err != nil {
				return fmt.Errorf("multimeter on %q: %w", name, err)
			}
		}
	}
	return nil
}

// Run builds the network if needed and simulates the configured duration.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.net == nil {
		if err := e.Build(); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	if err := e.net.Simulate(ctx, e.cfg.Duration); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	res := &Result{
		Name:        e.cfg.Name,
		Populations: e.populations,
		Metrics:     make(map[string]map[string]float64),
		Steps:       e.net.Steps(),
		Duration:    e.net.Time(),
		Resolution:  e.cfg.Resolution,
		Elapsed:     elapsed,
	}
	if e.recorder != nil {
		res.Spikes = e.recorder.Events()
		for _, name := range e.cfg.Record.Spikes {
			ms := metrics.Defaults(len(e.populations[name]), res.Duration)
			res.Metrics[name] = metrics.Evaluate(ms, res.SpikesOf(name))
		}
	}
	if e.meter != nil {
		res.Trace = Trace{Names: e.meter.Names(), Samples: e.meter.Samples()}
	}

	e.log.Info("run finished",
		slog.String("name", e.cfg.Name),
		slog.Int64("steps", res.Steps),
		slog.Int("spikes", len(res.Spikes)),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

// Reset restores the network to its initial state so Run starts over.
func (e *Experiment) Reset() error {
	if e.net == nil {
		return ErrNotBuilt
	}
	return e.net.ResetNetwork()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
