package network

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
	"github.com/san-kum/spikesim/internal/synapse"
)

const (
	AllToAll = "all_to_all"
	OneToOne = "one_to_one"
)

// requester is implemented by recording devices that subscribe to a
// target's recordables instead of receiving its events.
type requester interface {
	Request(res simtime.Resolution) (*event.LoggingRequest, error)
	MarkConnected()
}

// pending is a checked connection that has not touched the network yet.
type pending struct {
	src, tgt int
	target   node.Node
	conn     synapse.Connection

	// set instead of conn for data logging subscriptions
	sender node.Node
	req    *event.LoggingRequest
}

// Connect wires src to tgt. Every check runs here so that no error can
// surface once the simulation is underway.
func (n *Network) Connect(src, tgt int, spec synapse.Spec) error {
	if err := n.frozen(); err != nil {
		return err
	}
	p, err := n.plan(src, tgt, spec)
	if err != nil {
		return err
	}
	return n.commit([]pending{p})
}

// plan runs every check for one connection without changing any state.
func (n *Network) plan(src, tgt int, spec synapse.Spec) (pending, error) {
	s, err := n.Node(src)
	if err != nil {
		return pending{}, err
	}
	t, err := n.Node(tgt)
	if err != nil {
		return pending{}, err
	}

	kind, ok := s.Emits()
	if !ok {
		return pending{}, fmt.Errorf("%w: %s %d sends no events", node.ErrIncompatibleEvent, s.Model(), src)
	}
	if err := t.Accepts(kind, spec.Receptor); err != nil {
		return pending{}, fmt.Errorf("network: connecting %d to %d: %w", src, tgt, err)
	}

	if kind == event.DataLogging {
		return n.planSubscription(s, t)
	}

	delay := n.res.Steps(spec.Delay)
	if delay < 1 || delay > n.maxDelay {
		return pending{}, fmt.Errorf("%w: %g ms must lie in [%g, %g] ms",
			ErrDelayOutOfRange, spec.Delay, n.res.H, n.MaxDelay())
	}

	name := spec.Model
	if name == "" {
		name = synapse.StaticModel
	}
	m, err := n.reg.Synapse(name)
	if err != nil {
		return pending{}, err
	}
	c, err := m.New(tgt, delay, spec)
	if err != nil {
		return pending{}, err
	}
	if tc, ok := c.(synapse.TargetChecker); ok {
		if err := tc.CheckTarget(t); err != nil {
			return pending{}, err
		}
	}
	return pending{src: src, tgt: tgt, target: t, conn: c}, nil
}

func (n *Network) planSubscription(s, t node.Node) (pending, error) {
	r, ok := s.(requester)
	if !ok {
		return pending{}, fmt.Errorf("%w: %s cannot request data", node.ErrIncompatibleEvent, s.Model())
	}
	rec, ok := t.(node.Recordable)
	if !ok {
		return pending{}, fmt.Errorf("%w: %s has no recordables", node.ErrIncompatibleEvent, t.Model())
	}
	req, err := r.Request(n.res)
	if err != nil {
		return pending{}, err
	}
	if err := node.CheckRequest(req, rec); err != nil {
		return pending{}, err
	}
	return pending{src: s.ID(), tgt: t.ID(), target: t, sender: s, req: req}, nil
}

// commit adds checked connections to the network.
func (n *Network) commit(ps []pending) error {
	for _, p := range ps {
		if p.req != nil {
			e := event.Event{Kind: event.DataLogging, Sender: p.src, Request: p.req}
			if err := p.target.Handle(&e); err != nil {
				return err
			}
			p.sender.(requester).MarkConnected()
			continue
		}
		if err := p.conn.Bind(n.res, p.target); err != nil {
			return err
		}
		th := n.threadOf(p.tgt)
		th.conns[p.src] = append(th.conns[p.src], p.conn)
		n.order = append(n.order, p.conn)
	}
	return nil
}

// ConnectRule wires two groups with a connection rule. Every pair is
// checked before the first connection is made, so a failing call leaves
// the network unchanged.
func (n *Network) ConnectRule(srcs, tgts []int, rule string, spec synapse.Spec) error {
	if err := n.frozen(); err != nil {
		return err
	}

	var ps []pending
	add := func(s, t int) error {
		p, err := n.plan(s, t, spec)
		if err != nil {
			return err
		}
		ps = append(ps, p)
		return nil
	}

	switch rule {
	case AllToAll, "":
		for _, s := range srcs {
			for _, t := range tgts {
				if err := add(s, t); err != nil {
					return err
				}
			}
		}
	case OneToOne:
		if len(srcs) != len(tgts) {
			return fmt.Errorf("%w: one_to_one needs equal group sizes, got %d and %d",
				ErrInvalidConfig, len(srcs), len(tgts))
		}
		for i := range srcs {
			if err := add(srcs[i], tgts[i]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown rule %q", ErrInvalidConfig, rule)
	}

	if err := n.commit(ps); err != nil {
		return err
	}
	n.log.Debug("connected",
		slog.String("rule", rule),
		slog.Int("sources", len(srcs)),
		slog.Int("targets", len(tgts)),
		slog.String("synapse", spec.Model))
	return nil
}
