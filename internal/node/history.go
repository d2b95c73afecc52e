package node

// HistoryEntry is one archived spike. Accesses counts the incoming
// plastic connections that have read it.
type HistoryEntry struct {
	T        float64
	Accesses int
}

// History archives a neuron's own spike times for the plastic synapses
// that target it. Entries every reader has consumed are pruned when the
// next spike is archived, except the most recent one.
type History struct {
	incoming int
	last     float64
	entries  []HistoryEntry
}

// Register announces a new incoming plastic connection that will first
// read spikes after tFirstRead. Older entries count as already read by it.
func (h *History) Register(tFirstRead float64) {
	for i := range h.entries {
		if h.entries[i].T > tFirstRead {
			break
		}
		h.entries[i].Accesses++
	}
	h.incoming++
}

func (h *History) Incoming() int { return h.incoming }

// LastSpike returns the time of the most recent spike, or 0.
func (h *History) LastSpike() float64 { return h.last }

// Record archives a spike at t ms.
func (h *History) Record(t float64) {
	h.last = t
	if h.incoming == 0 {
		return
	}
	n := 0
	for n < len(h.entries)-1 && h.entries[n].Accesses >= h.incoming {
		n++
	}
	if n > 0 {
		h.entries = append(h.entries[:0], h.entries[n:]...)
	}
	h.entries = append(h.entries, HistoryEntry{T: t})
}

// Range returns the archived spikes with t1 < t <= t2 and marks them read.
// The returned slice aliases the archive and is valid until the next
// Record.
func (h *History) Range(t1, t2 float64) []HistoryEntry {
	i := 0
	for i < len(h.entries) && h.entries[i].T <= t1 {
		i++
	}
	j := i
	for j < len(h.entries) && h.entries[j].T <= t2 {
		h.entries[j].Accesses++
		j++
	}
	return h.entries[i:j]
}

func (h *History) Len() int { return len(h.entries) }

// Clear forgets every spike but keeps the registered connections.
func (h *History) Clear() {
	h.entries = h.entries[:0]
	h.last = 0
}
