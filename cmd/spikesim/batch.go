package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/spikesim/internal/automation"
	"github.com/san-kum/spikesim/internal/config"
)

var (
	sweep          automation.ParameterSweep
	ensemblePreset string
	runs           int
	workers        int
	seedFrom       uint64
	targetRate     float64
)

func batchCommands() []*cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary one population parameter, e.g. an f-I curve",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVarP(&sweep.Preset, "preset", "p", "canon_dc", "preset to start from")
	sweepCmd.Flags().StringVar(&sweep.Population, "population", "neuron", "population to modify")
	sweepCmd.Flags().StringVar(&sweep.Param, "param", "I_e", "parameter to vary")
	sweepCmd.Flags().Float64Var(&sweep.Min, "min", 300, "first value")
	sweepCmd.Flags().Float64Var(&sweep.Max, "max", 800, "last value")
	sweepCmd.Flags().IntVar(&sweep.Steps, "steps", 11, "number of values")
	sweepCmd.Flags().IntVar(&sweep.Workers, "workers", 0, "parallel runs (default GOMAXPROCS)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [scenario.yaml]",
		Short: "run the steps of a scenario file in order",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat a preset with consecutive seeds",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().StringVarP(&ensemblePreset, "preset", "p", "poisson_drive", "preset to repeat")
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of runs")
	ensembleCmd.Flags().Uint64Var(&seedFrom, "seed", 1, "first seed")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (default GOMAXPROCS)")
	ensembleCmd.Flags().Float64VarP(&duration, "duration", "t", 0, "simulated time in ms")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search a parameter for a target population rate",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	tuneCmd.Flags().StringVarP(&sweep.Preset, "preset", "p", "canon_dc", "preset to start from")
	tuneCmd.Flags().StringVar(&sweep.Population, "population", "neuron", "population to modify and score")
	tuneCmd.Flags().StringVar(&sweep.Param, "param", "I_e", "parameter to vary")
	tuneCmd.Flags().Float64Var(&sweep.Min, "min", 300, "first value")
	tuneCmd.Flags().Float64Var(&sweep.Max, "max", 800, "last value")
	tuneCmd.Flags().IntVar(&sweep.Steps, "steps", 11, "number of values")
	tuneCmd.Flags().Float64Var(&targetRate, "rate", 20, "target rate in Hz")

	return []*cobra.Command{sweepCmd, scenarioCmd, ensembleCmd, tuneCmd}
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunSweep(ctx, &sweep, slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSPIKES\tRATE (Hz)\tISI CV\n", sweep.Param)
	rates := make([]float64, len(results))
	for i, r := range results {
		fmt.Fprintf(w, "%g\t%d\t%.2f\t%.3f\n", r.Value, r.Spikes, r.Rate, r.Stats["isi_cv"])
		rates[i] = r.Rate
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(rates) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(rates,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("rate vs %s (%g..%g)", sweep.Param, sweep.Min, sweep.Max))))
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, slog.Default())
	for i, res := range results {
		fmt.Printf("%d. %s: %d spikes in %g ms (%v)\n", i+1, res.Name, len(res.Spikes), res.Duration, res.Elapsed)
	}
	return err
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	base := config.GetPreset(ensemblePreset)
	if base == nil {
		return fmt.Errorf("unknown preset: %s", ensemblePreset)
	}
	if cmd.Flags().Changed("duration") {
		base.Duration = duration
	}
	ctx, cancel := signalContext()
	defer cancel()

	ens := &automation.Ensemble{Base: base, Runs: runs, SeedStart: seedFrom, Workers: workers}
	results, err := ens.Run(ctx, slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POPULATION\tRATE MEAN\tRATE SD\tCV MEAN\tFANO MEAN")
	for _, name := range base.Record.Spikes {
		rm, rs := automation.Summary(results, name, "rate")
		cv, _ := automation.Summary(results, name, "isi_cv")
		fano, _ := automation.Summary(results, name, "fano")
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.3f\t%.3f\n", name, rm, rs, cv, fano)
	}
	return w.Flush()
}

func runTune(cmd *cobra.Command, args []string) error {
	base := config.GetPreset(sweep.Preset)
	if base == nil {
		return fmt.Errorf("unknown preset: %s", sweep.Preset)
	}
	base.Record.Multimeter = nil
	key := sweep.Population + "." + sweep.Param
	g, err := automation.NewGridSearch([]string{key}, [][]float64{sweep.Values()})
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	params, score, err := g.Search(ctx, base, automation.TargetRate(sweep.Population, targetRate), slog.Default())
	if err != nil {
		return err
	}
	fmt.Printf("best %s = %g (%.2f Hz from target %g Hz)\n", key, params[key], score, targetRate)
	return nil
}
