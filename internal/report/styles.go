// Package report renders run summaries and plots for the terminal.
package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3a4a3a")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7fd17f"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6b7b6b"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0c060")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8a948a"))

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("#3a4a3a"))
)

var (
	burst  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f25c54"))
	active = lipgloss.NewStyle().Foreground(lipgloss.Color("#f2a154"))
	quiet  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5c7cf2"))
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a rate series as one line of at most width bars,
// colouring bursts warm and quiet stretches cool.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return strings.Repeat("─", max(width, 0))
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := max(len(values)/width, 1)
	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / span
		idx := min(max(int(norm*float64(len(sparkChars)-1)), 0), len(sparkChars)-1)
		c := string(sparkChars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(burst.Render(c))
		case norm > 0.3:
			b.WriteString(active.Render(c))
		default:
			b.WriteString(quiet.Render(c))
		}
	}
	return b.String()
}
