// Package registry maps model names to constructors. A Registry is built
// once and handed to the network; there is no global model table.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/neuron"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/synapse"
)

var (
	ErrUnknownModel  = errors.New("registry: unknown model")
	ErrDuplicateName = errors.New("registry: name already registered")
)

type Registry struct {
	nodes    map[string]func() node.Node
	synapses map[string]synapse.Model
}

// New returns a registry with every built-in neuron, device and synapse
// model.
func New() *Registry {
	r := Empty()

	r.nodes[neuron.PPPscDeltaModel] = func() node.Node { return neuron.NewPPPscDelta() }
	r.nodes[neuron.AlphaCanonModel] = func() node.Node { return neuron.NewIafPscAlphaCanon() }
	r.nodes[neuron.PscExpModel] = func() node.Node { return neuron.NewIafPscExp() }

	r.nodes[device.DCGeneratorModel] = func() node.Node { return device.NewDCGenerator() }
	r.nodes[device.PoissonGeneratorModel] = func() node.Node { return device.NewPoissonGenerator() }
	r.nodes[device.SpikeGeneratorModel] = func() node.Node { return device.NewSpikeGenerator() }
	r.nodes[device.SpikeRecorderModel] = func() node.Node { return device.NewSpikeRecorder() }
	r.nodes[device.MultimeterModel] = func() node.Node { return device.NewMultimeter() }

	r.synapses[synapse.StaticModel] = synapse.StaticType{}
	r.synapses[synapse.FacetsHWModel] = synapse.NewFacetsHWType()

	return r
}

// Empty returns a registry without any models.
func Empty() *Registry {
	return &Registry{
		nodes:    make(map[string]func() node.Node),
		synapses: make(map[string]synapse.Model),
	}
}

func (r *Registry) RegisterNode(name string, fn func() node.Node) error {
	if _, ok := r.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.nodes[name] = fn
	return nil
}

func (r *Registry) RegisterSynapse(m synapse.Model) error {
	if _, ok := r.synapses[m.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, m.Name())
	}
	r.synapses[m.Name()] = m
	return nil
}

// NewNode creates a node of the named model with default parameters.
func (r *Registry) NewNode(name string) (node.Node, error) {
	fn, ok := r.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return fn(), nil
}

// Synapse returns the shared synapse model of that name.
func (r *Registry) Synapse(name string) (synapse.Model, error) {
	m, ok := r.synapses[name]
	if !ok {
		return nil, fmt.Errorf("%w: synapse %s", ErrUnknownModel, name)
	}
	return m, nil
}

func (r *Registry) Models() []string {
	return sortedKeys(r.nodes)
}

func (r *Registry) Synapses() []string {
	return sortedKeys(r.synapses)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
