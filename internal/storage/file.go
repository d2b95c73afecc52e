package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/simtime"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	spikesFile   = "spikes.csv"
	tracesFile   = "traces.csv"
)

// FileStore keeps one directory per run under a base directory.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Save(_ context.Context, run *Run) error {
	runDir := filepath.Join(s.baseDir, run.Meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), run.Meta); err != nil {
		return err
	}
	if run.Config != nil {
		if err := config.Save(filepath.Join(runDir, configFile), run.Config); err != nil {
			return err
		}
	}

	spikes, err := os.Create(filepath.Join(runDir, spikesFile))
	if err != nil {
		return err
	}
	defer spikes.Close()
	if err := WriteSpikes(spikes, run.Spikes); err != nil {
		return err
	}

	if len(run.Trace.Names) == 0 {
		return nil
	}
	traces, err := os.Create(filepath.Join(runDir, tracesFile))
	if err != nil {
		return err
	}
	defer traces.Close()
	return WriteTrace(traces, run.Trace, simtime.Resolution{H: run.Meta.Resolution})
}

// List returns the stored runs, newest first.
func (s *FileStore) List(context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.loadMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *FileStore) Load(_ context.Context, id string) (*Run, error) {
	meta, err := s.loadMeta(id)
	if err != nil {
		return nil, err
	}
	run := &Run{Meta: *meta}
	runDir := filepath.Join(s.baseDir, id)

	if _, err := os.Stat(filepath.Join(runDir, configFile)); err == nil {
		if run.Config, err = config.Load(filepath.Join(runDir, configFile)); err != nil {
			return nil, err
		}
	}

	spikes, err := os.Open(filepath.Join(runDir, spikesFile))
	if err != nil {
		return nil, err
	}
	defer spikes.Close()
	if run.Spikes, err = ReadSpikes(spikes); err != nil {
		return nil, err
	}

	traces, err := os.Open(filepath.Join(runDir, tracesFile))
	if errors.Is(err, os.ErrNotExist) {
		return run, nil
	}
	if err != nil {
		return nil, err
	}
	defer traces.Close()
	if run.Trace, err = ReadTrace(traces); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *FileStore) loadMeta(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
