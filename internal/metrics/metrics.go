// Package metrics summarizes recorded spike trains: firing rate, spike
// count, interval irregularity and count variability.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/spikesim/internal/device"
)

// Metric observes spikes one at a time and reports a single number.
type Metric interface {
	Name() string
	Observe(s device.SpikeRecord)
	Value() float64
	Reset()
}

// Defaults returns the standard metrics for a group of neurons recorded
// over duration ms.
func Defaults(neurons int, duration float64) []Metric {
	return []Metric{
		NewCount(),
		NewRate(neurons, duration),
		NewISICV(),
		NewFano(duration, 10),
	}
}

// Evaluate feeds spikes to every metric and collects the values.
func Evaluate(ms []Metric, spikes []device.SpikeRecord) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, s := range spikes {
			m.Observe(s)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

type Count struct {
	n int
}

func NewCount() *Count { return &Count{} }

func (c *Count) Name() string { return "spike_count" }

func (c *Count) Observe(s device.SpikeRecord) { c.n += s.Multiplicity }

func (c *Count) Value() float64 { return float64(c.n) }

func (c *Count) Reset() { c.n = 0 }

// Rate is the mean firing rate per neuron in Hz.
type Rate struct {
	neurons  int
	duration float64
	n        int
}

func NewRate(neurons int, duration float64) *Rate {
	return &Rate{neurons: neurons, duration: duration}
}

func (r *Rate) Name() string { return "rate" }

func (r *Rate) Observe(s device.SpikeRecord) { r.n += s.Multiplicity }

func (r *Rate) Value() float64 {
	if r.neurons == 0 || r.duration <= 0 {
		return 0
	}
	return float64(r.n) * 1000 / (float64(r.neurons) * r.duration)
}

func (r *Rate) Reset() { r.n = 0 }

// ISICV is the coefficient of variation of the inter-spike intervals,
// pooled over senders. Spikes must be observed in time order.
type ISICV struct {
	last map[int]float64
	isis []float64
}

func NewISICV() *ISICV {
	return &ISICV{last: make(map[int]float64)}
}

func (c *ISICV) Name() string { return "isi_cv" }

func (c *ISICV) Observe(s device.SpikeRecord) {
	if t, ok := c.last[s.Sender]; ok {
		c.isis = append(c.isis, s.Time-t)
	}
	c.last[s.Sender] = s.Time
}

func (c *ISICV) Value() float64 {
	if len(c.isis) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(c.isis, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

func (c *ISICV) Reset() {
	clear(c.last)
	c.isis = c.isis[:0]
}

// Fano is the variance over mean of the population spike count in bins
// of width ms.
type Fano struct {
	width  float64
	counts []float64
}

func NewFano(duration, width float64) *Fano {
	n := int(math.Ceil(duration / width))
	return &Fano{width: width, counts: make([]float64, max(n, 1))}
}

func (f *Fano) Name() string { return "fano" }

func (f *Fano) Observe(s device.SpikeRecord) {
	i := int(s.Time / f.width)
	if i >= len(f.counts) {
		i = len(f.counts) - 1
	}
	if i >= 0 {
		f.counts[i] += float64(s.Multiplicity)
	}
}

func (f *Fano) Value() float64 {
	if len(f.counts) < 2 {
		return 0
	}
	mean, variance := stat.MeanVariance(f.counts, nil)
	if mean == 0 {
		return 0
	}
	return variance / mean
}

func (f *Fano) Reset() { clear(f.counts) }
