package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/spikesim/internal/simtime"
	"github.com/san-kum/spikesim/internal/storage"
)

var outPath string

func exportCommands() []*cobra.Command {
	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run]",
		Short: "export a run as one JSON document",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run]",
		Short: "export spikes and traces as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output directory (default: spikes to stdout)")

	return []*cobra.Command{exportJSONCmd, exportCSVCmd}
}

func exportJSON(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.ExportJSON(os.Stdout, run)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.ExportJSON(f, run); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", run.Meta.ID, outPath)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.WriteSpikes(os.Stdout, run.Spikes)
	}
	if err := os.MkdirAll(outPath, 0755); err != nil {
		return err
	}

	spikes, err := os.Create(filepath.Join(outPath, "spikes.csv"))
	if err != nil {
		return err
	}
	defer spikes.Close()
	if err := storage.WriteSpikes(spikes, run.Spikes); err != nil {
		return err
	}

	if len(run.Trace.Names) > 0 {
		traces, err := os.Create(filepath.Join(outPath, "traces.csv"))
		if err != nil {
			return err
		}
		defer traces.Close()
		if err := storage.WriteTrace(traces, run.Trace, simtime.Resolution{H: run.Meta.Resolution}); err != nil {
			return err
		}
	}
	fmt.Printf("exported %s to %s\n", run.Meta.ID, outPath)
	return nil
}
