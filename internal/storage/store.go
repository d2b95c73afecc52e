// Package storage persists finished runs: their metadata, configuration,
// recorded spikes and multimeter traces.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/experiment"
)

var ErrNotFound = errors.New("storage: run not found")

type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, run *Run) error
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*Run, error)
}

type RunMetadata struct {
	ID          string                        `json:"id"`
	Name        string                        `json:"name"`
	Timestamp   time.Time                     `json:"timestamp"`
	Seed        uint64                        `json:"seed"`
	Threads     int                           `json:"threads"`
	Resolution  float64                       `json:"resolution"`
	Duration    float64                       `json:"duration"`
	Steps       int64                         `json:"steps"`
	ElapsedMs   float64                       `json:"elapsed_ms"`
	Populations map[string][]int              `json:"populations"`
	Metrics     map[string]map[string]float64 `json:"metrics"`
	TraceNames  []string                      `json:"trace_names,omitempty"`
}

// Run is everything stored for one simulation.
type Run struct {
	Meta   RunMetadata
	Config *config.Config
	Spikes []device.SpikeRecord
	Trace  experiment.Trace
}

// NewRun packages a result under a fresh id.
func NewRun(cfg *config.Config, res *experiment.Result) *Run {
	return &Run{
		Meta: RunMetadata{
			ID:          uuid.NewString(),
			Name:        res.Name,
			Timestamp:   time.Now().UTC(),
			Seed:        cfg.Seed,
			Threads:     cfg.Threads,
			Resolution:  res.Resolution,
			Duration:    res.Duration,
			Steps:       res.Steps,
			ElapsedMs:   float64(res.Elapsed.Microseconds()) / 1000,
			Populations: res.Populations,
			Metrics:     res.Metrics,
			TraceNames:  res.Trace.Names,
		},
		Config: cfg,
		Spikes: res.Spikes,
		Trace:  res.Trace,
	}
}

// Result rebuilds the experiment result of a stored run.
func (r *Run) Result() *experiment.Result {
	return &experiment.Result{
		Name:        r.Meta.Name,
		Populations: r.Meta.Populations,
		Spikes:      r.Spikes,
		Trace:       r.Trace,
		Metrics:     r.Meta.Metrics,
		Steps:       r.Meta.Steps,
		Duration:    r.Meta.Duration,
		Resolution:  r.Meta.Resolution,
		Elapsed:     time.Duration(r.Meta.ElapsedMs * float64(time.Millisecond)),
	}
}

// Resolve finds a run by full id or unique id prefix.
func Resolve(ctx context.Context, s Store, prefix string) (*Run, error) {
	runs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var match string
	for _, m := range runs {
		if m.ID == prefix {
			match = m.ID
			break
		}
		if len(prefix) > 0 && len(m.ID) >= len(prefix) && m.ID[:len(prefix)] == prefix {
			if match != "" {
				return nil, errors.New("storage: ambiguous run id " + prefix)
			}
			match = m.ID
		}
	}
	if match == "" {
		return nil, ErrNotFound
	}
	return s.Load(ctx, match)
}
