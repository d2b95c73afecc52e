// Package network owns the nodes and connections of a simulation and
// advances them in time: one minimum-delay slice at a time, updating
// every thread's nodes in parallel, then delivering the emitted events
// behind a barrier.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/registry"
	"github.com/san-kum/spikesim/internal/simtime"
	"github.com/san-kum/spikesim/internal/synapse"
)

// Config holds the kernel settings. Times are in ms.
type Config struct {
	Resolution float64
	Threads    int
	Seed       uint64
	MaxDelay   float64
}

func DefaultConfig() Config {
	return Config{
		Resolution: 0.1,
		Threads:    1,
		Seed:       12345,
		MaxDelay:   20,
	}
}

type Option func(*Network)

func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.log = l }
}

// thread is the share of the network one worker updates: the nodes it
// owns, the connections into them, its generator and its outbox.
type thread struct {
	id     int
	nodes  []node.Node
	conns  map[int][]synapse.Connection // by source id
	rng    *rand.Rand
	ctx    *node.Context
	outbox []event.Event
}

type Network struct {
	cfg Config
	res simtime.Resolution
	reg *registry.Registry
	log *slog.Logger

	nodes   []node.Node // id-1
	threads []*thread
	order   []synapse.Connection

	maxDelay int64
	capacity int
	clock    int64
	running  atomic.Bool
}

func New(cfg Config, reg *registry.Registry, opts ...Option) (*Network, error) {
	res, err := simtime.NewResolution(cfg.Resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Threads < 1 {
		return nil, fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidConfig, cfg.Threads)
	}
	maxDelay := res.Steps(cfg.MaxDelay)
	if maxDelay < 1 {
		return nil, fmt.Errorf("%w: max delay %g ms is below one step", ErrInvalidConfig, cfg.MaxDelay)
	}
	if reg == nil {
		reg = registry.New()
	}

	n := &Network{
		cfg:      cfg,
		res:      res,
		reg:      reg,
		log:      slog.Default().With(slog.String("component", "network")),
		maxDelay: maxDelay,
		// a slice never exceeds max delay, so max delay plus one slice
		// of slots covers every pending delivery
		capacity: int(2 * maxDelay),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.threads = make([]*thread, cfg.Threads)
	for k := range n.threads {
		th := &thread{
			id:    k,
			conns: make(map[int][]synapse.Connection),
			rng:   rand.New(rand.NewSource(cfg.Seed + uint64(k))),
		}
		th.ctx = node.NewContext(res, k, th.rng, func(e event.Event) {
			th.outbox = append(th.outbox, e)
		})
		n.threads[k] = th
	}
	return n, nil
}

func (n *Network) Resolution() simtime.Resolution { return n.res }
func (n *Network) Registry() *registry.Registry   { return n.reg }
func (n *Network) Threads() int                   { return len(n.threads) }

// Steps is the number of steps simulated since the last reset.
func (n *Network) Steps() int64 { return n.clock }

// Time is the current simulation time in ms.
func (n *Network) Time() float64 { return n.res.Ms(n.clock) }

func (n *Network) MaxDelay() float64 { return n.res.Ms(n.maxDelay) }

// MinDelay is the smallest delay of any connection, or the maximum delay
// while there are none. It bounds the length of a slice.
func (n *Network) MinDelay() float64 { return n.res.Ms(n.minDelay()) }

func (n *Network) minDelay() int64 {
	d := n.maxDelay
	for _, c := range n.order {
		d = min(d, c.Delay())
	}
	return d
}

func (n *Network) threadOf(id int) *thread {
	return n.threads[id%len(n.threads)]
}

func (n *Network) frozen() error {
	if n.running.Load() {
		return ErrFrozenTopology
	}
	return nil
}

// Create adds count nodes of the model with the given parameters and
// returns their ids. Nothing is added unless every instance accepts st.
func (n *Network) Create(model string, count int, st node.Status) ([]int, error) {
	if err := n.frozen(); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: cannot create %d nodes", ErrInvalidConfig, count)
	}
	created := make([]node.Node, count)
	for i := range created {
		nd, err := n.reg.NewNode(model)
		if err != nil {
			return nil, err
		}
		if len(st) > 0 {
			if err := nd.SetStatus(st); err != nil {
				return nil, err
			}
		}
		created[i] = nd
	}
	ids := make([]int, count)
	for i, nd := range created {
		ids[i] = n.add(nd)
	}
	n.log.Debug("created nodes",
		slog.String("model", model),
		slog.Int("count", count),
		slog.Int("first", ids[0]))
	return ids, nil
}

// Add inserts a node built outside the registry.
func (n *Network) Add(nd node.Node) (int, error) {
	if err := n.frozen(); err != nil {
		return 0, err
	}
	return n.add(nd), nil
}

func (n *Network) add(nd node.Node) int {
	id := len(n.nodes) + 1
	nd.SetID(id)
	nd.InitState()
	nd.InitBuffers(n.capacity)
	n.nodes = append(n.nodes, nd)
	th := n.threadOf(id)
	th.nodes = append(th.nodes, nd)
	return id
}

func (n *Network) Node(id int) (node.Node, error) {
	if id < 1 || id > len(n.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n.nodes[id-1], nil
}

// Nodes returns every id in creation order.
func (n *Network) Nodes() []int {
	ids := make([]int, len(n.nodes))
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func (n *Network) GetStatus(id int) (node.Status, error) {
	nd, err := n.Node(id)
	if err != nil {
		return nil, err
	}
	st := nd.Status()
	st["model"] = nd.Model()
	st["global_id"] = id
	st["thread"] = n.threadOf(id).id
	return st, nil
}

func (n *Network) SetStatus(id int, st node.Status) error {
	if err := n.frozen(); err != nil {
		return err
	}
	nd, err := n.Node(id)
	if err != nil {
		return err
	}
	return nd.SetStatus(st)
}

// SetSynapseDefaults changes the properties shared by a synapse model.
func (n *Network) SetSynapseDefaults(model string, st node.Status) error {
	if err := n.frozen(); err != nil {
		return err
	}
	m, err := n.reg.Synapse(model)
	if err != nil {
		return err
	}
	return m.SetDefaults(st)
}

// Connections returns the outgoing connections of src.
func (n *Network) Connections(src int) []synapse.Connection {
	var out []synapse.Connection
	for _, th := range n.threads {
		out = append(out, th.conns[src]...)
	}
	return out
}

// NumConnections counts every connection in the network.
func (n *Network) NumConnections() int { return len(n.order) }

// Simulate advances the network by ms. Parameters changed since the last
// call take effect at its start.
func (n *Network) Simulate(ctx context.Context, ms float64) error {
	if ms < 0 || !n.res.IsMultiple(ms) {
		return fmt.Errorf("%w: simulation time %g ms is not a multiple of the resolution %g ms",
			ErrInvalidConfig, ms, n.res.H)
	}
	if !n.running.CompareAndSwap(false, true) {
		return ErrFrozenTopology
	}
	defer n.running.Store(false)

	if err := n.prepare(); err != nil {
		return err
	}

	steps := n.res.Steps(ms)
	slice := n.minDelay()
	n.log.Debug("simulating",
		slog.Float64("from", n.Time()),
		slog.Int64("steps", steps),
		slog.Int64("min_delay", slice),
		slog.Int("threads", len(n.threads)))

	for done := int64(0); done < steps; {
		select {
		case <-ctx.Done():
			return fmt.Errorf("network: interrupted at %g ms: %w", n.Time(), ctx.Err())
		default:
		}
		length := min(slice, steps-done)
		if err := n.step(n.clock, n.clock+length); err != nil {
			return err
		}
		n.clock += length
		done += length
	}
	return nil
}

// prepare calibrates every node and assigns synapse ids in connection
// order before any delivery runs.
func (n *Network) prepare() error {
	for _, nd := range n.nodes {
		if err := nd.Calibrate(n.res); err != nil {
			return fmt.Errorf("network: calibrating node %d: %w", nd.ID(), err)
		}
	}
	for _, c := range n.order {
		if p, ok := c.(synapse.Preparer); ok {
			p.Prepare()
		}
	}
	return nil
}

// step runs one slice [from, to): update, barrier, deliver, barrier.
func (n *Network) step(from, to int64) error {
	var g errgroup.Group
	for _, th := range n.threads {
		g.Go(func() error {
			th.ctx.Origin = from
			for _, nd := range th.nodes {
				nd.Update(th.ctx, from, to)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	events := n.collect()

	for _, th := range n.threads {
		g.Go(func() error {
			return n.deliver(th, events, from)
		})
	}
	return g.Wait()
}

// collect merges the outboxes in time order. Spikes at the same time are
// ordered by sender; a sender's own events keep their emission order.
func (n *Network) collect() []event.Event {
	var events []event.Event
	for _, th := range n.threads {
		events = append(events, th.outbox...)
		th.outbox = th.outbox[:0]
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Stamp != b.Stamp {
			return a.Stamp.Less(b.Stamp)
		}
		return a.Sender < b.Sender
	})
	return events
}

func (n *Network) deliver(th *thread, events []event.Event, from int64) error {
	for i := range events {
		for _, c := range th.conns[events[i].Sender] {
			e := events[i]
			if err := c.Send(&e, n.nodes[c.Target()-1]); err != nil {
				return &DeliveryError{Step: from, Sender: e.Sender, Target: c.Target(), Wrapped: err}
			}
		}
	}
	return nil
}

// ResetNetwork restores every node to its initial state, empties every
// buffer and outbox, rewinds the clock and reseeds the generators. It
// runs on every thread.
func (n *Network) ResetNetwork() error {
	if err := n.frozen(); err != nil {
		return err
	}
	var g errgroup.Group
	for _, th := range n.threads {
		g.Go(func() error {
			for _, nd := range th.nodes {
				nd.InitState()
				nd.InitBuffers(n.capacity)
			}
			for _, cs := range th.conns {
				for _, c := range cs {
					c.Reset()
				}
			}
			th.outbox = th.outbox[:0]
			th.rng.Seed(n.cfg.Seed + uint64(th.id))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	n.clock = 0
	n.log.Debug("network reset", slog.Int("nodes", len(n.nodes)))
	return nil
}
