// Package ringbuf provides the per-node input buffers that hold event
// contributions until the update step they are due in.
//
// Both buffers are indexed by absolute update step modulo their capacity.
// The capacity must cover the minimum delay plus the maximum delay so a
// slot is always drained before it is reused.
package ringbuf

func slot(step int64, n int) int {
	i := int(step % int64(n))
	if i < 0 {
		i += n
	}
	return i
}

// RingBuffer accumulates scalar input per update step.
type RingBuffer struct {
	buf []float64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]float64, capacity)}
}

func (b *RingBuffer) Len() int { return len(b.buf) }

// AddValue adds v to the slot of step. Contributions accumulate.
func (b *RingBuffer) AddValue(step int64, v float64) {
	b.buf[slot(step, len(b.buf))] += v
}

// GetValue returns the accumulated value of step and zeroes the slot.
func (b *RingBuffer) GetValue(step int64) float64 {
	i := slot(step, len(b.buf))
	v := b.buf[i]
	b.buf[i] = 0
	return v
}

// Peek returns the accumulated value of step without draining it.
func (b *RingBuffer) Peek(step int64) float64 {
	return b.buf[slot(step, len(b.buf))]
}

func (b *RingBuffer) Clear() {
	clear(b.buf)
}

// Resize sets the capacity and clears the buffer.
func (b *RingBuffer) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity != len(b.buf) {
		b.buf = make([]float64, capacity)
		return
	}
	b.Clear()
}
