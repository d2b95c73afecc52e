// Package neuron implements the neuron models: the stochastic point
// process pp_psc_delta, the grid-based iaf_psc_exp and the precise
// iaf_psc_alpha_canon.
//
// Each model keeps its parameters, state, derived variables and input
// buffers in separate structs. Status changes are applied to copies and
// committed only when every value validates.
package neuron

import (
	"fmt"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
)

// archiving bundles what every neuron shares: identity, its spike
// archive and its data logger.
type archiving struct {
	node.Base
	history node.History
	logger  node.DataLogger
}

func (a *archiving) History() *node.History { return &a.history }

func (a *archiving) Emits() (event.Kind, bool) { return event.Spike, true }

// accepts checks the common receptor layout: everything arrives on
// receptor 0.
func accepts(model string, kind event.Kind, receptor int) error {
	switch kind {
	case event.Spike, event.Current, event.DataLogging:
	default:
		return fmt.Errorf("%w: %s does not handle %s events", node.ErrIncompatibleEvent, model, kind)
	}
	if receptor != 0 {
		return fmt.Errorf("%w: %s has no receptor %d", node.ErrUnknownReceptor, model, receptor)
	}
	return nil
}

func positive(model, key string, v float64) error {
	if !(v > 0) {
		return node.BadProperty(model, key, "must be strictly positive")
	}
	return nil
}

func nonNegative(model, key string, v float64) error {
	if v < 0 {
		return node.BadProperty(model, key, "must not be negative")
	}
	return nil
}

type floatField struct {
	key string
	dst *float64
}

func readFloats(model string, st node.Status, fields ...floatField) error {
	for _, f := range fields {
		if _, err := st.UpdateFloat(f.key, f.dst); err != nil {
			return node.Tag(model, err)
		}
	}
	return nil
}
