package analysis

import (
	"sort"

	"github.com/san-kum/spikesim/internal/device"
)

// PSTH bins spikes into windows of bin ms over [0, duration) and scales
// each count to a per-neuron rate in Hz. Spikes outside the range are
// dropped.
func PSTH(spikes []device.SpikeRecord, bin, duration float64, neurons int) []float64 {
	if bin <= 0 || duration <= 0 {
		return nil
	}
	n := int(duration / bin)
	if float64(n)*bin < duration {
		n++
	}
	out := make([]float64, n)
	for _, s := range spikes {
		if s.Time < 0 || s.Time >= duration {
			continue
		}
		out[int(s.Time/bin)] += float64(s.Multiplicity)
	}
	scale := 1000 / (bin * float64(max(neurons, 1)))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Raster groups spike times by sender, in ascending sender order.
func Raster(spikes []device.SpikeRecord) (senders []int, times [][]float64) {
	byID := make(map[int][]float64)
	for _, s := range spikes {
		byID[s.Sender] = append(byID[s.Sender], s.Time)
	}
	for id := range byID {
		senders = append(senders, id)
	}
	sort.Ints(senders)
	for _, id := range senders {
		times = append(times, byID[id])
	}
	return senders, times
}
