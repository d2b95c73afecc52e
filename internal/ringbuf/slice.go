package ringbuf

// EntryKind tags entries of a SliceRingBuffer.
type EntryKind uint8

const (
	// Input carries a weight to be applied at its offset.
	Input EntryKind = iota
	// RefractoryEnd marks the instant a precise neuron leaves its
	// refractory period. It carries no weight.
	RefractoryEnd
)

func (k EntryKind) String() string {
	if k == RefractoryEnd {
		return "refractory_end"
	}
	return "input"
}

// Entry is one off-grid event inside an update step. Offset is measured
// forward from the start of the step and lies in [0, h].
type Entry struct {
	Offset float64
	Weight float64
	Kind   EntryKind
}

type bucket struct {
	entries []Entry
	head    int
}

// SliceRingBuffer keeps a time-ordered queue of off-grid entries per
// update step. Entries of one step are ordered by offset ascending with
// insertion order preserved between equal offsets.
type SliceRingBuffer struct {
	buckets []bucket
}

func NewSliceRingBuffer(capacity int) *SliceRingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SliceRingBuffer{buckets: make([]bucket, capacity)}
}

func (b *SliceRingBuffer) Len() int { return len(b.buckets) }

// Add queues an input of weight w at offset inside step.
func (b *SliceRingBuffer) Add(step int64, offset, w float64) {
	b.insert(step, Entry{Offset: offset, Weight: w, Kind: Input})
}

// AddRefractoryEnd queues the end of a refractory period at offset
// inside step.
func (b *SliceRingBuffer) AddRefractoryEnd(step int64, offset float64) {
	b.insert(step, Entry{Offset: offset, Kind: RefractoryEnd})
}

func (b *SliceRingBuffer) insert(step int64, e Entry) {
	bk := &b.buckets[slot(step, len(b.buckets))]
	// stable: after every entry with an offset <= e.Offset, and never
	// before the read cursor
	i := len(bk.entries)
	for i > bk.head && bk.entries[i-1].Offset > e.Offset {
		i--
	}
	bk.entries = append(bk.entries, Entry{})
	copy(bk.entries[i+1:], bk.entries[i:])
	bk.entries[i] = e
}

// Next pops the earliest pending entry of step. When the step is
// exhausted it reports false and recycles the slot.
func (b *SliceRingBuffer) Next(step int64) (Entry, bool) {
	bk := &b.buckets[slot(step, len(b.buckets))]
	if bk.head < len(bk.entries) {
		e := bk.entries[bk.head]
		bk.head++
		return e, true
	}
	bk.entries = bk.entries[:0]
	bk.head = 0
	return Entry{}, false
}

// Pending reports the number of unread entries of step.
func (b *SliceRingBuffer) Pending(step int64) int {
	bk := &b.buckets[slot(step, len(b.buckets))]
	return len(bk.entries) - bk.head
}

// Discard drops every entry of step.
func (b *SliceRingBuffer) Discard(step int64) {
	bk := &b.buckets[slot(step, len(b.buckets))]
	bk.entries = bk.entries[:0]
	bk.head = 0
}

func (b *SliceRingBuffer) Clear() {
	for i := range b.buckets {
		b.buckets[i].entries = b.buckets[i].entries[:0]
		b.buckets[i].head = 0
	}
}

// Resize sets the capacity and clears the buffer.
func (b *SliceRingBuffer) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity != len(b.buckets) {
		b.buckets = make([]bucket, capacity)
		return
	}
	b.Clear()
}
