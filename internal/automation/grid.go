package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/experiment"
)

// GridSearch tries every combination of values for a set of override
// keys and keeps the one with the lowest score.
type GridSearch struct {
	keys   []string
	ranges [][]float64
}

func NewGridSearch(keys []string, ranges [][]float64) (*GridSearch, error) {
	if len(keys) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d keys but %d ranges", len(keys), len(ranges))
	}
	return &GridSearch{keys: keys, ranges: ranges}, nil
}

// Score rates a finished run; lower is better.
type Score func(*experiment.Result) float64

// TargetRate scores a run by how far the population rate is from hz.
func TargetRate(population string, hz float64) Score {
	return func(res *experiment.Result) float64 {
		return math.Abs(res.Metrics[population]["rate"] - hz)
	}
}

func (g *GridSearch) Search(ctx context.Context, base *config.Config, score Score, log *slog.Logger) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	err := g.search(ctx, 0, make(map[string]float64), base, score, log, &best, &bestParams)
	return bestParams, best, err
}

func (g *GridSearch) search(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	score Score,
	log *slog.Logger,
	best *float64,
	bestParams *map[string]float64,
) error {
	if depth == len(g.keys) {
		cfg := base.Clone()
		for k, v := range current {
			if err := Override(cfg, k, v); err != nil {
				return err
			}
		}
		res, err := experiment.New(cfg, experiment.WithLogger(log)).Run(ctx)
		if err != nil {
			return err
		}
		if val := score(res); val < *best {
			*best = val
			*bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[g.keys[depth]] = val
		if err := g.search(ctx, depth+1, next, base, score, log, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
