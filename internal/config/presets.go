package config

import "sort"

func record(spikes []string, targets []string, names ...string) RecordConfig {
	r := RecordConfig{Spikes: spikes}
	if len(targets) > 0 {
		r.Multimeter = &MultimeterConfig{Targets: targets, RecordFrom: names, Interval: 0.1}
	}
	return r
}

func base(name string, duration float64) *Config {
	c := DefaultConfig()
	c.Name = name
	c.Duration = duration
	return c
}

var Presets = map[string]func() *Config{
	// one precise neuron driven to threshold by a constant current
	"canon_dc": func() *Config {
		c := base("canon_dc", 200)
		c.Populations = []PopulationConfig{
			{Name: "neuron", Model: "iaf_psc_alpha_canon", Size: 1,
				Params: map[string]any{"I_e": 400.0, "Interpol_Order": 3}},
		}
		c.Record = record([]string{"neuron"}, []string{"neuron"}, "V_m", "I_syn")
		return c
	},
	// grid neurons under Poisson bombardment
	"poisson_drive": func() *Config {
		c := base("poisson_drive", 500)
		c.Populations = []PopulationConfig{
			{Name: "noise", Model: "poisson_generator", Size: 1, Params: map[string]any{"rate": 20000.0}},
			{Name: "neurons", Model: "iaf_psc_exp", Size: 50},
		}
		c.Connections = []ConnectionConfig{
			{Source: "noise", Target: "neurons", Rule: "all_to_all", Weight: 40, Delay: 1},
		}
		c.Record = record([]string{"neurons"}, []string{"neurons"}, "V_m", "I_syn_ex")
		return c
	},
	// sparse excitatory/inhibitory network of grid neurons
	"balanced": func() *Config {
		c := base("balanced", 500)
		c.Threads = 2
		c.Populations = []PopulationConfig{
			{Name: "noise", Model: "poisson_generator", Size: 1, Params: map[string]any{"rate": 18000.0}},
			{Name: "exc", Model: "iaf_psc_exp", Size: 80, Params: map[string]any{"t_ref": 2.0}},
			{Name: "inh", Model: "iaf_psc_exp", Size: 20, Params: map[string]any{"t_ref": 2.0}},
		}
		c.Connections = []ConnectionConfig{
			{Source: "noise", Target: "exc", Rule: "all_to_all", Weight: 45, Delay: 1},
			{Source: "noise", Target: "inh", Rule: "all_to_all", Weight: 45, Delay: 1},
			{Source: "exc", Target: "exc", Rule: "all_to_all", Weight: 4, Delay: 1.5},
			{Source: "exc", Target: "inh", Rule: "all_to_all", Weight: 4, Delay: 1.5},
			{Source: "inh", Target: "exc", Rule: "all_to_all", Weight: -20, Delay: 1.5},
			{Source: "inh", Target: "inh", Rule: "all_to_all", Weight: -20, Delay: 1.5},
		}
		c.Record = record([]string{"exc", "inh"}, nil)
		return c
	},
	// escape-noise neurons with dead time and adaptation
	"point_process": func() *Config {
		c := base("point_process", 1000)
		c.Populations = []PopulationConfig{
			{Name: "pp", Model: "pp_psc_delta", Size: 100, Params: map[string]any{
				"c_1": 0.0, "c_2": 40.0, "c_3": 0.1,
				"dead_time": 2.0, "dead_time_random": true, "dead_time_shape": 4,
				"q_sfa": 5.0, "tau_sfa": 100.0,
			}},
		}
		c.Record = record([]string{"pp"}, []string{"pp"}, "V_m", "E_sfa")
		return c
	},
	// precise spikes relayed through a chain of canonical neurons
	"precise_chain": func() *Config {
		c := base("precise_chain", 100)
		c.Populations = []PopulationConfig{
			{Name: "input", Model: "spike_generator", Size: 1, Params: map[string]any{
				"spike_times":   []any{10.03, 30.07, 50.011, 70.09},
				"precise_times": true,
			}},
			{Name: "first", Model: "iaf_psc_alpha_canon", Size: 1, Params: map[string]any{"I_e": 350.0}},
			{Name: "second", Model: "iaf_psc_alpha_canon", Size: 1, Params: map[string]any{"I_e": 350.0}},
		}
		c.Connections = []ConnectionConfig{
			{Source: "input", Target: "first", Rule: "one_to_one", Weight: 1500, Delay: 1},
			{Source: "first", Target: "second", Rule: "one_to_one", Weight: 1500, Delay: 1},
		}
		c.Record = record([]string{"input", "first", "second"}, []string{"first", "second"}, "V_m")
		return c
	},
	// hardware constrained plasticity between Poisson sources and one neuron
	"facets_stdp": func() *Config {
		c := base("facets_stdp", 2000)
		c.SynapseDefaults = map[string]map[string]any{
			"stdp_facetshw_synapse_hom": {"Wmax": 100.0, "synapses_per_driver": 10, "driver_readout_time": 5.0},
		}
		c.Populations = []PopulationConfig{
			{Name: "inputs", Model: "poisson_generator", Size: 20, Params: map[string]any{"rate": 20.0}},
			{Name: "post", Model: "iaf_psc_exp", Size: 1, Params: map[string]any{"I_e": 350.0}},
		}
		c.Connections = []ConnectionConfig{
			{Source: "inputs", Target: "post", Rule: "all_to_all", Synapse: "stdp_facetshw_synapse_hom", Weight: 60, Delay: 1},
		}
		c.Record = record([]string{"inputs", "post"}, []string{"post"}, "V_m")
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := fn()
	cfg.applyDefaults()
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
