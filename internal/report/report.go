package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/spikesim/internal/analysis"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/storage"
)

// Summary renders the metadata and per-population metrics of a run.
func Summary(meta storage.RunMetadata, res *experiment.Result) string {
	var b strings.Builder
	b.WriteString(Title.Render(meta.Name) + " " + Subtle.Render(meta.ID) + "\n")
	fmt.Fprintf(&b, "%s %s  %s %d  %s %d  %s %g ms\n",
		MetricLabel.Render("when"), meta.Timestamp.Format("2006-01-02 15:04:05"),
		MetricLabel.Render("seed"), meta.Seed,
		MetricLabel.Render("threads"), meta.Threads,
		MetricLabel.Render("h"), meta.Resolution)
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		MetricLabel.Render("simulated"), MetricValue.Render(fmt.Sprintf("%g ms", meta.Duration)),
		MetricLabel.Render("steps"), MetricValue.Render(fmt.Sprint(meta.Steps)),
		MetricLabel.Render("wall"), MetricValue.Render(fmt.Sprintf("%.1f ms", meta.ElapsedMs)))

	for _, pop := range res.PopulationNames() {
		stats, ok := meta.Metrics[pop]
		if !ok {
			continue
		}
		b.WriteString("\n" + Header.Render(fmt.Sprintf("%s (%d)", pop, len(res.Populations[pop]))) + "\n")
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-12s %s\n", MetricLabel.Render(k), MetricValue.Render(fmt.Sprintf("%.4g", stats[k])))
		}
		rate := analysis.PSTH(res.SpikesOf(pop), binWidth(meta.Duration), meta.Duration, len(res.Populations[pop]))
		b.WriteString("  " + Sparkline(rate, 60) + "\n")
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func binWidth(duration float64) float64 {
	return max(duration/60, 0.1)
}

// RunTable lists stored runs, one per line.
func RunTable(w io.Writer, runs []storage.RunMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIME\tDURATION\tTHREADS\tSEED\tSPIKES/S")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%gms\t%d\t%d\t%s\n",
			run.ID[:min(8, len(run.ID))],
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Threads,
			run.Seed,
			meanRates(run.Metrics),
		)
	}
	return tw.Flush()
}

func meanRates(m map[string]map[string]float64) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.1f", name, m[name]["rate"])
	}
	return strings.Join(parts, " ")
}
