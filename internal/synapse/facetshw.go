package synapse

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/simtime"
)

const FacetsHWModel = "stdp_facetshw_synapse_hom"

// FacetsCommon holds the properties shared by every facetshw synapse of a
// registry: the STDP window, the 4-bit weight look-up tables and the
// synapse driver timing. Synapse ids are handed out by an atomic counter.
type FacetsCommon struct {
	mu sync.RWMutex

	tauPlus           float64
	tauMinus          float64
	wmax              float64
	synapsesPerDriver int64
	driverReadoutTime float64
	lut               [3][]int64
	configbit         [2][]int64
	resetPattern      []int64

	noSynapses atomic.Int64
}

func NewFacetsCommon() *FacetsCommon {
	c := &FacetsCommon{
		tauPlus:           20,
		tauMinus:          20,
		wmax:              100,
		synapsesPerDriver: 50,
		driverReadoutTime: 15,
		lut: [3][]int64{
			{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 15, 15},
			{0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
			{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		},
		configbit: [2][]int64{
			{0, 0, 1, 0},
			{0, 1, 0, 0},
		},
		resetPattern: []int64{1, 1, 1, 1, 1, 1},
	}
	return c
}

// nextID reserves a synapse id.
func (c *FacetsCommon) nextID() int64 {
	return c.noSynapses.Add(1) - 1
}

// WeightPerEntry is the weight step between neighbouring table entries.
func (c *FacetsCommon) WeightPerEntry() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weightPerEntry()
}

func (c *FacetsCommon) weightPerEntry() float64 {
	return c.wmax / float64(len(c.lut[0])-1)
}

// ReadoutCycle is the time between two updates of the same synapse: one
// driver readout per group of synapses_per_driver synapses.
func (c *FacetsCommon) ReadoutCycle() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readoutCycle()
}

func (c *FacetsCommon) readoutCycle() float64 {
	n := float64(max(c.noSynapses.Load(), 1))
	return float64(int64((n-1)/float64(c.synapsesPerDriver)+1)) * c.driverReadoutTime
}

func (c *FacetsCommon) Status() node.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return node.Status{
		"tau_plus":               c.tauPlus,
		"tau_minus_stdp":         c.tauMinus,
		"Wmax":                   c.wmax,
		"weight_per_lut_entry":   c.weightPerEntry(),
		"no_synapses":            c.noSynapses.Load(),
		"synapses_per_driver":    c.synapsesPerDriver,
		"driver_readout_time":    c.driverReadoutTime,
		"readout_cycle_duration": c.readoutCycle(),
		"lookuptable_0":          append([]int64(nil), c.lut[0]...),
		"lookuptable_1":          append([]int64(nil), c.lut[1]...),
		"lookuptable_2":          append([]int64(nil), c.lut[2]...),
		"configbit_0":            append([]int64(nil), c.configbit[0]...),
		"configbit_1":            append([]int64(nil), c.configbit[1]...),
		"reset_pattern":          append([]int64(nil), c.resetPattern...),
	}
}

// SetStatus must not run while spikes are delivered.
func (c *FacetsCommon) SetStatus(st node.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tauPlus, tauMinus, wmax := c.tauPlus, c.tauMinus, c.wmax
	spd, drt := c.synapsesPerDriver, c.driverReadoutTime
	lut, cfg, reset := c.lut, c.configbit, c.resetPattern
	n := c.noSynapses.Load()

	floats := []struct {
		key string
		dst *float64
	}{
		{"tau_plus", &tauPlus},
		{"tau_minus_stdp", &tauMinus},
		{"Wmax", &wmax},
		{"driver_readout_time", &drt},
	}
	for _, f := range floats {
		if _, err := st.UpdateFloat(f.key, f.dst); err != nil {
			return node.Tag(FacetsHWModel, err)
		}
	}
	if _, err := st.UpdateInt("synapses_per_driver", &spd); err != nil {
		return node.Tag(FacetsHWModel, err)
	}
	if _, err := st.UpdateInt("no_synapses", &n); err != nil {
		return node.Tag(FacetsHWModel, err)
	}
	lists := []struct {
		key string
		dst *[]int64
	}{
		{"lookuptable_0", &lut[0]},
		{"lookuptable_1", &lut[1]},
		{"lookuptable_2", &lut[2]},
		{"configbit_0", &cfg[0]},
		{"configbit_1", &cfg[1]},
		{"reset_pattern", &reset},
	}
	for _, l := range lists {
		if _, err := st.UpdateInts(l.key, l.dst); err != nil {
			return node.Tag(FacetsHWModel, err)
		}
	}

	switch {
	case !(tauPlus > 0):
		return node.BadProperty(FacetsHWModel, "tau_plus", "must be positive")
	case !(tauMinus > 0):
		return node.BadProperty(FacetsHWModel, "tau_minus_stdp", "must be positive")
	case !(wmax > 0):
		return node.BadProperty(FacetsHWModel, "Wmax", "must be positive")
	case !(drt > 0):
		return node.BadProperty(FacetsHWModel, "driver_readout_time", "must be positive")
	case spd < 1:
		return node.BadProperty(FacetsHWModel, "synapses_per_driver", "must be at least 1")
	case n < 0:
		return node.BadProperty(FacetsHWModel, "no_synapses", "must not be negative")
	case len(reset) != 6:
		return node.BadProperty(FacetsHWModel, "reset_pattern", "must have 6 entries")
	}
	size := len(lut[0])
	if size < 2 {
		return node.BadProperty(FacetsHWModel, "lookuptable_0", "must have at least 2 entries")
	}
	for i, t := range lut {
		key := fmt.Sprintf("lookuptable_%d", i)
		if len(t) != size {
			return node.BadProperty(FacetsHWModel, key, "look-up tables must have equal size")
		}
		for _, v := range t {
			if v < 0 || v >= int64(size) {
				return node.BadProperty(FacetsHWModel, key, "entries must index the table")
			}
		}
	}
	for i, b := range cfg {
		if len(b) != 4 {
			return node.BadProperty(FacetsHWModel, fmt.Sprintf("configbit_%d", i), "must have 4 entries")
		}
	}

	c.tauPlus, c.tauMinus, c.wmax = tauPlus, tauMinus, wmax
	c.synapsesPerDriver, c.driverReadoutTime = spd, drt
	c.lut, c.configbit, c.resetPattern = lut, cfg, reset
	c.noSynapses.Store(n)
	return nil
}

// eval compares the charge on the causal and anti-causal capacitors with
// the thresholds, weighted by the configuration bits e_cc, e_ca, e_ac, e_aa.
func eval(aCausal, aAcausal, th, tl float64, bits []int64) bool {
	b0, b1, b2, b3 := float64(bits[0]), float64(bits[1]), float64(bits[2]), float64(bits[3])
	return (tl+b2*aCausal+b1*aAcausal)/(1+b2+b1) >
		(th+b0*aCausal+b3*aAcausal)/(1+b0+b3)
}

// STDPFacetsHW is a spike-timing dependent synapse with the constraints of
// the FACETS wafer-scale hardware: 4-bit weights, look-up table updates,
// group-wise readout and reduced nearest-neighbour pairing.
type STDPFacetsHW struct {
	base
	common *FacetsCommon
	hist   *node.History

	aCausal  float64
	aAcausal float64
	thTh     float64
	thTl     float64

	assigned    bool
	synapseID   int64
	nextReadout float64
	lastSpike   float64

	initial facetsState
}

type facetsState struct {
	weight, aCausal, aAcausal float64
}

func (s *STDPFacetsHW) CheckTarget(tgt node.Node) error {
	if _, ok := tgt.(node.Archiver); !ok {
		return fmt.Errorf("%w: %s needs a target that archives spikes, %s does not",
			node.ErrIncompatibleEvent, FacetsHWModel, tgt.Model())
	}
	return nil
}

func (s *STDPFacetsHW) Bind(res simtime.Resolution, tgt node.Node) error {
	if err := s.CheckTarget(tgt); err != nil {
		return err
	}
	s.res = res
	s.hist = tgt.(node.Archiver).History()
	s.hist.Register(s.lastSpike - res.Ms(s.delay))
	return nil
}

// Prepare assigns the synapse id and the first readout time.
func (s *STDPFacetsHW) Prepare() {
	if s.assigned {
		return
	}
	s.synapseID = s.common.nextID()
	s.initReadout()
}

func (s *STDPFacetsHW) initReadout() {
	s.common.mu.RLock()
	s.nextReadout = float64(s.synapseID/s.common.synapsesPerDriver) * s.common.driverReadoutTime
	s.common.mu.RUnlock()
	s.assigned = true
}

func (s *STDPFacetsHW) SynapseID() int64 { return s.synapseID }

func (s *STDPFacetsHW) Send(e *event.Event, tgt node.Node) error {
	s.Prepare()

	cp := s.common
	cp.mu.RLock()
	tSpike := s.res.StampMs(e.Stamp)

	if tSpike > s.nextReadout {
		wpe := cp.weightPerEntry()
		w := int64(math.Round(s.weight / wpe))
		w = max(0, min(w, int64(len(cp.lut[0])-1)))

		e0 := eval(s.aCausal, s.aAcausal, s.thTh, s.thTl, cp.configbit[0])
		e1 := eval(s.aCausal, s.aAcausal, s.thTh, s.thTl, cp.configbit[1])
		table := -1
		switch {
		case e0 && !e1:
			table = 0
		case !e0 && e1:
			table = 1
		case e0 && e1:
			table = 2
		}
		if table >= 0 {
			w = cp.lut[table][w]
			if cp.resetPattern[2*table] != 0 {
				s.aCausal = 0
			}
			if cp.resetPattern[2*table+1] != 0 {
				s.aAcausal = 0
			}
		}

		cycle := cp.readoutCycle()
		for tSpike > s.nextReadout {
			s.nextReadout += cycle
		}
		s.weight = float64(w) * wpe
	}

	dd := s.res.Ms(s.delay)
	post := s.hist.Range(s.lastSpike-dd, tSpike-dd)
	if len(post) > 0 {
		// first postsynaptic spike after the last presynaptic one, and the
		// last one before the current
		minus := s.lastSpike - (post[0].T + dd)
		plus := (post[len(post)-1].T + dd) - tSpike
		if minus != 0 {
			s.aCausal += math.Exp(minus / cp.tauPlus)
		}
		if plus != 0 {
			s.aAcausal += math.Exp(plus / cp.tauMinus)
		}
	}
	cp.mu.RUnlock()

	s.lastSpike = tSpike
	return s.deliver(e, tgt)
}

func (s *STDPFacetsHW) Reset() {
	s.weight = s.initial.weight
	s.aCausal = s.initial.aCausal
	s.aAcausal = s.initial.aAcausal
	s.lastSpike = 0
	if s.assigned {
		s.initReadout()
	}
}

func (s *STDPFacetsHW) Status() node.Status {
	st := s.status()
	st["a_causal"] = s.aCausal
	st["a_acausal"] = s.aAcausal
	st["a_thresh_th"] = s.thTh
	st["a_thresh_tl"] = s.thTl
	st["synapse_id"] = s.synapseID
	st["next_readout_time"] = s.nextReadout
	return st
}

func (s *STDPFacetsHW) SetStatus(st node.Status) error {
	nb, err := s.set(st)
	if err != nil {
		return err
	}
	aC, aA, th, tl := s.aCausal, s.aAcausal, s.thTh, s.thTl
	floats := []struct {
		key string
		dst *float64
	}{
		{"a_causal", &aC},
		{"a_acausal", &aA},
		{"a_thresh_th", &th},
		{"a_thresh_tl", &tl},
	}
	for _, f := range floats {
		if _, err := st.UpdateFloat(f.key, f.dst); err != nil {
			return node.Tag(FacetsHWModel, err)
		}
	}
	id := s.synapseID
	idSet, err := st.UpdateInt("synapse_id", &id)
	if err != nil {
		return node.Tag(FacetsHWModel, err)
	}
	if idSet && id < 0 {
		return node.BadProperty(FacetsHWModel, "synapse_id", "must not be negative")
	}
	if nb.weight < 0 {
		return node.BadProperty(FacetsHWModel, "weight", "must not be negative")
	}

	s.base = nb
	s.aCausal, s.aAcausal, s.thTh, s.thTl = aC, aA, th, tl
	s.initial = facetsState{weight: s.weight, aCausal: aC, aAcausal: aA}
	if idSet {
		s.synapseID = id
		s.initReadout()
	}
	return nil
}

// FacetsHWType creates facetshw synapses sharing one FacetsCommon.
type FacetsHWType struct {
	Common *FacetsCommon
}

func NewFacetsHWType() *FacetsHWType {
	return &FacetsHWType{Common: NewFacetsCommon()}
}

func (*FacetsHWType) Name() string { return FacetsHWModel }

func (t *FacetsHWType) New(target int, delay int64, spec Spec) (Connection, error) {
	s := &STDPFacetsHW{
		base:   newBase(FacetsHWModel, target, delay, spec),
		common: t.Common,
		thTh:   21.835,
		thTl:   21.835,
	}
	if spec.Weight < 0 {
		return nil, node.BadProperty(FacetsHWModel, "weight", "must not be negative")
	}
	s.initial = facetsState{weight: s.weight}
	if len(spec.Params) > 0 {
		if err := s.SetStatus(spec.Params); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (t *FacetsHWType) Defaults() node.Status {
	st := t.Common.Status()
	st["synapse_model"] = FacetsHWModel
	st["a_thresh_th"] = 21.835
	st["a_thresh_tl"] = 21.835
	return st
}

func (t *FacetsHWType) SetDefaults(st node.Status) error {
	return t.Common.SetStatus(st)
}
