package automation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
)

// Ensemble repeats one configuration with consecutive seeds.
type Ensemble struct {
	Base      *config.Config
	Runs      int
	SeedStart uint64
	Workers   int
}

type EnsembleResult struct {
	Seed    uint64
	Metrics map[string]map[string]float64
}

func (e *Ensemble) Run(ctx context.Context, log *slog.Logger) ([]EnsembleResult, error) {
	results := make([]EnsembleResult, e.Runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(e.Workers))
	for i := range results {
		g.Go(func() error {
			cfg := e.Base.Clone()
			cfg.Seed = e.SeedStart + uint64(i)
			res, err := experiment.New(cfg, experiment.WithLogger(log)).Run(ctx)
			if err != nil {
				return err
			}
			results[i] = EnsembleResult{Seed: cfg.Seed, Metrics: res.Metrics}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary returns the mean and standard deviation of one metric of one
// population across the ensemble.
func Summary(results []EnsembleResult, population, metric string) (mean, std float64) {
	xs := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Metrics[population][metric]; ok {
			xs = append(xs, v)
		}
	}
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
