package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/report"
	"github.com/san-kum/spikesim/internal/storage"
)

var (
	dataDir   string
	storeKind string
	logLevel  string

	preset   string
	duration float64
	threads  int
	seed     uint64
	noSave   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spikesim",
		Short: "event-driven spiking network simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./runs", "directory for stored runs")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "run store backend: file or sqlite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "build and simulate a network",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVarP(&preset, "preset", "p", "", "start from a named preset")
	runCmd.Flags().Float64VarP(&duration, "duration", "t", 0, "simulated time in ms")
	runCmd.Flags().IntVar(&threads, "threads", 0, "worker threads")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run]",
		Short: "summarize a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list the built-in network presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list node and synapse models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, presetsCmd, modelsCmd)
	rootCmd.AddCommand(plotCommands()...)
	rootCmd.AddCommand(exportCommands()...)
	rootCmd.AddCommand(batchCommands()...)
	rootCmd.AddCommand(toolCommands()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("bad --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func openStore(ctx context.Context) (storage.Store, error) {
	path := dataDir
	if storeKind == "sqlite" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dataDir, "runs.db")
	}
	st, err := storage.NewStore(storeKind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func loadRun(ctx context.Context, id string) (*storage.Run, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer storage.CloseIfSupported(st)
	return storage.Resolve(ctx, st, id)
}

// loadConfig picks the preset or file and applies the command line
// overrides.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case len(args) == 1:
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	default:
		return nil, fmt.Errorf("give a config file or --preset")
	}

	if cmd.Flags().Changed("duration") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("threads") {
		cfg.Threads = threads
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s for %g ms on %d thread(s)...\n", cfg.Name, cfg.Duration, cfg.Threads)
	res, err := experiment.New(cfg).Run(ctx)
	if err != nil {
		return err
	}

	run := storage.NewRun(cfg, res)
	if !noSave {
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer storage.CloseIfSupported(st)
		if err := st.Save(ctx, run); err != nil {
			return err
		}
	}

	fmt.Println(report.Summary(run.Meta, res))
	if !noSave {
		fmt.Printf("run id: %s\n", run.Meta.ID)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	runs, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	return report.RunTable(os.Stdout, runs)
}

func showRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(report.Summary(run.Meta, run.Result()))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		pops := make([]string, len(cfg.Populations))
		for i, p := range cfg.Populations {
			pops[i] = fmt.Sprintf("%s:%s x%d", p.Name, p.Model, p.Size)
		}
		fmt.Printf("%s %s\n", report.Title.Render(fmt.Sprintf("%-14s", name)),
			report.Subtle.Render(fmt.Sprintf("%g ms, %s", cfg.Duration, strings.Join(pops, ", "))))
	}
	return nil
}
