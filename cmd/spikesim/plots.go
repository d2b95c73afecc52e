package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/spikesim/internal/analysis"
	"github.com/san-kum/spikesim/internal/registry"
	"github.com/san-kum/spikesim/internal/report"
)

var (
	rasterRows  int
	rasterWidth int
	traceNode   int
	population  string
	binWidth    float64
)

func plotCommands() []*cobra.Command {
	rasterCmd := &cobra.Command{
		Use:   "raster [run]",
		Short: "spike raster of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  rasterPlot,
	}
	rasterCmd.Flags().IntVar(&rasterRows, "rows", 40, "maximum number of neurons shown")
	rasterCmd.Flags().IntVar(&rasterWidth, "width", 100, "columns")

	traceCmd := &cobra.Command{
		Use:   "trace [run]",
		Short: "plot multimeter traces of one node",
		Args:  cobra.ExactArgs(1),
		RunE:  tracePlot,
	}
	traceCmd.Flags().IntVar(&traceNode, "node", 0, "node id (default: first recorded)")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [run]",
		Short: "population rate and its power spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  spectrumPlot,
	}
	spectrumCmd.Flags().StringVar(&population, "population", "", "population (default: first recorded)")
	spectrumCmd.Flags().Float64Var(&binWidth, "bin", 1, "rate bin width in ms")

	return []*cobra.Command{rasterCmd, traceCmd, spectrumCmd}
}

func rasterPlot(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s %s, %d spikes\n\n", report.Title.Render(run.Meta.Name), run.Meta.ID, len(run.Spikes))
	fmt.Println(report.Raster(run.Spikes, run.Meta.Duration, rasterWidth, rasterRows))
	return nil
}

func tracePlot(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(run.Trace.Samples) == 0 {
		return fmt.Errorf("run %s has no multimeter data", run.Meta.ID)
	}
	node := traceNode
	if node == 0 {
		node = run.Trace.Samples[0].Sender
	}
	plots := report.TracePlots(run.Trace, node)
	if len(plots) == 0 {
		return fmt.Errorf("node %d was not recorded", node)
	}
	for _, p := range plots {
		fmt.Println(p)
		fmt.Println()
	}
	return nil
}

func spectrumPlot(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	res := run.Result()
	pop := population
	if pop == "" {
		for _, name := range res.PopulationNames() {
			if _, ok := run.Meta.Metrics[name]; ok {
				pop = name
				break
			}
		}
	}
	ids, ok := res.Populations[pop]
	if !ok {
		return fmt.Errorf("unknown population %q", pop)
	}

	rate := analysis.PSTH(res.SpikesOf(pop), binWidth, run.Meta.Duration, len(ids))
	fmt.Println(report.RatePlot(rate, fmt.Sprintf("%s rate (Hz), %g ms bins", pop, binWidth)))
	fmt.Println()
	graph, peak := report.SpectrumPlot(rate, binWidth)
	if graph == "" {
		return fmt.Errorf("too few bins for a spectrum")
	}
	fmt.Println(graph)
	fmt.Printf("\ndominant frequency: %.3f Hz\n", peak)
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := registry.New()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME")
	for _, m := range reg.Models() {
		fmt.Fprintf(w, "node\t%s\n", m)
	}
	for _, s := range reg.Synapses() {
		fmt.Fprintf(w, "synapse\t%s\n", s)
	}
	return w.Flush()
}
