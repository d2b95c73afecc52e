package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/integrators"
	"github.com/san-kum/spikesim/internal/propagator"
)

var (
	tauM       float64
	tauSyn     float64
	capac      float64
	stepH      float64
	repeats    int
	maxThreads int
	fixedName  string
	fixedSteps int
)

func toolCommands() []*cobra.Command {
	propCmd := &cobra.Command{
		Use:   "propagators",
		Short: "compare closed-form propagators with the matrix exponential and RK45",
		Args:  cobra.NoArgs,
		RunE:  comparePropagators,
	}
	propCmd.Flags().Float64Var(&tauM, "tau-m", 10, "membrane time constant (ms)")
	propCmd.Flags().Float64Var(&tauSyn, "tau-syn", 2, "synaptic time constant (ms)")
	propCmd.Flags().Float64Var(&capac, "c", 250, "membrane capacitance (pF)")
	propCmd.Flags().Float64Var(&stepH, "h", 0.1, "step size (ms)")
	propCmd.Flags().StringVar(&fixedName, "integrator", "rk4", "fixed-step integrator: euler, rk4 or rk45")
	propCmd.Flags().IntVar(&fixedSteps, "substeps", 10, "fixed-step substeps per h")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "time a preset with increasing thread counts",
		Args:  cobra.ExactArgs(1),
		RunE:  benchPreset,
	}
	benchCmd.Flags().IntVar(&maxThreads, "max-threads", 4, "largest thread count")
	benchCmd.Flags().IntVar(&repeats, "repeat", 3, "runs per thread count")

	return []*cobra.Command{propCmd, benchCmd}
}

type coefficient struct {
	name   string
	closed float64
	matrix float64
	x0     integrators.State
	out    int
	sys    integrators.System
}

func comparePropagators(cmd *cobra.Command, args []string) error {
	ex, err := propagator.NewExp(stepH, tauM, tauSyn, capac)
	if err != nil {
		return err
	}
	al, err := propagator.NewAlpha(stepH, tauM, tauSyn, capac)
	if err != nil {
		return err
	}
	fixed, ok := integrators.ByName(fixedName)
	if !ok {
		return fmt.Errorf("unknown integrator: %s", fixedName)
	}
	expM := propagator.Exact(propagator.ExpSystem(tauM, tauSyn, capac), stepH)
	alphaM := propagator.Exact(propagator.AlphaSystem(tauM, tauSyn, capac), stepH)
	expSys := integrators.ExpMembrane(tauM, tauSyn, capac, 0)
	alphaSys := integrators.AlphaMembrane(tauM, tauSyn, capac, 0)

	coeffs := []coefficient{
		{"exp P11", ex.P11, expM.At(0, 0), integrators.State{1, 0}, 0, expSys},
		{"exp P21", ex.P21, expM.At(1, 0), integrators.State{1, 0}, 1, expSys},
		{"exp P22", ex.P22, expM.At(1, 1), integrators.State{0, 1}, 1, expSys},
		{"alpha P31", al.P31, alphaM.At(2, 0), integrators.State{1, 0, 0}, 2, alphaSys},
		{"alpha P32", al.P32, alphaM.At(2, 1), integrators.State{0, 1, 0}, 2, alphaSys},
	}

	fmt.Printf("tau_m=%g tau_syn=%g C=%g h=%g singular=%v\n\n",
		tauM, tauSyn, capac, stepH, propagator.Singular(stepH, tauM, tauSyn))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "COEFFICIENT\tCLOSED FORM\tEXPM\tRK45\t%s x%d\tMAX REL ERR\n", strings.ToUpper(fixedName), fixedSteps)
	rk := integrators.NewRK45()
	for _, c := range coeffs {
		ode := rk.Solve(c.sys, c.x0, 0, stepH, stepH/10, 1e-12)[c.out]
		n := max(fixedSteps, 1)
		step := integrators.Integrate(fixed, c.sys, c.x0, stepH/float64(n), n)[c.out]
		rel := max(relErr(c.closed, c.matrix), relErr(c.closed, ode), relErr(c.closed, step))
		fmt.Fprintf(w, "%s\t%.12g\t%.12g\t%.12g\t%.12g\t%.2e\n", c.name, c.closed, c.matrix, ode, step, rel)
	}
	return w.Flush()
}

func relErr(a, b float64) float64 {
	if a == 0 {
		return math.Abs(b)
	}
	return math.Abs(a-b) / math.Abs(a)
}

func benchPreset(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s", args[0])
	}
	cfg.Record.Multimeter = nil

	fmt.Printf("benchmarking %s (%g ms)\n\n", cfg.Name, cfg.Duration)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THREADS\tSTEPS\tSPIKES\tBEST\tSTEPS/SEC")
	for n := 1; n <= max(maxThreads, 1); n *= 2 {
		c := cfg.Clone()
		c.Threads = n
		var best time.Duration
		var res *experiment.Result
		for range max(repeats, 1) {
			r, err := experiment.New(c).Run(cmd.Context())
			if err != nil {
				return err
			}
			if best == 0 || r.Elapsed < best {
				best = r.Elapsed
			}
			res = r
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%.0f\n",
			n, res.Steps, len(res.Spikes), best, float64(res.Steps)/best.Seconds())
	}
	return w.Flush()
}
