package report

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/spikesim/internal/analysis"
	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/experiment"
)

// TracePlots draws each recorded variable of one sender.
func TracePlots(tr experiment.Trace, sender int) []string {
	plots := make([]string, 0, len(tr.Names))
	for j, name := range tr.Names {
		var data []float64
		for _, s := range tr.Samples {
			if s.Sender == sender {
				data = append(data, s.Values[j])
			}
		}
		if len(data) == 0 {
			continue
		}
		plots = append(plots, asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s of node %d", name, sender))))
	}
	return plots
}

// RatePlot draws the population rate over time.
func RatePlot(rate []float64, caption string) string {
	if len(rate) == 0 {
		return ""
	}
	return asciigraph.Plot(rate,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption))
}

// SpectrumPlot draws the spectrum of a population rate sampled every bin
// ms and reports the peak frequency.
func SpectrumPlot(rate []float64, bin float64) (string, float64) {
	ps := analysis.PowerSpectrum(rate)
	if len(ps) < 2 {
		return "", 0
	}
	hz := analysis.Frequencies(len(rate), bin)
	peak := analysis.Peak(ps, hz)
	graph := asciigraph.Plot(ps[1:],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("power spectrum, %.3g Hz per bin, peak %.3g Hz", hz[1], peak)))
	return graph, peak
}

// Raster draws one row per sender with a mark in every column that holds
// a spike.
func Raster(spikes []device.SpikeRecord, duration float64, width, rows int) string {
	ids, times := analysis.Raster(spikes)
	if len(ids) == 0 {
		return Subtle.Render("no spikes")
	}
	var b strings.Builder
	for i, id := range ids {
		if i == rows {
			fmt.Fprintf(&b, "%s\n", Subtle.Render(fmt.Sprintf("... %d more", len(ids)-rows)))
			break
		}
		line := []rune(strings.Repeat(" ", width))
		for _, t := range times[i] {
			col := int(t / duration * float64(width))
			if col >= 0 && col < width {
				line[col] = '|'
			}
		}
		fmt.Fprintf(&b, "%5d %s\n", id, string(line))
	}
	fmt.Fprintf(&b, "%5s 0%s%g ms", "", strings.Repeat(" ", max(width-len(fmt.Sprint(duration))-4, 1)), duration)
	return b.String()
}
