//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/spikesim/internal/config"
	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/event"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps runs in a single database file. Metadata and config
// are stored as documents, spikes and samples as rows.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, run *Run) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	meta, err := json.Marshal(run.Meta)
	if err != nil {
		return err
	}
	var cfg []byte
	if run.Config != nil {
		if cfg, err = yaml.Marshal(run.Config); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created, metadata, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created = excluded.created,
			metadata = excluded.metadata,
			config = excluded.config
	`, run.Meta.ID, run.Meta.Timestamp.UnixNano(), meta, cfg); err != nil {
		return err
	}
	for _, table := range []string{"spikes", "samples"} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, run.Meta.ID); err != nil {
			return err
		}
	}

	spikeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spikes (run_id, seq, sender, step, step_offset, time, multiplicity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer spikeStmt.Close()
	for i, sp := range run.Spikes {
		if _, err = spikeStmt.ExecContext(ctx, run.Meta.ID, i, sp.Sender, sp.Stamp.Step,
			sp.Stamp.Offset, sp.Time, sp.Multiplicity); err != nil {
			return err
		}
	}

	sampleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, seq, sender, step, payload)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sampleStmt.Close()
	for i, smp := range run.Trace.Samples {
		values, err := json.Marshal(smp.Values)
		if err != nil {
			return err
		}
		if _, err = sampleStmt.ExecContext(ctx, run.Meta.ID, i, smp.Sender, smp.Step, values); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT metadata FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var meta, cfg []byte
	err = db.QueryRowContext(ctx, `SELECT metadata, config FROM runs WHERE id = ?`, id).Scan(&meta, &cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run := &Run{}
	if err := json.Unmarshal(meta, &run.Meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	if len(cfg) > 0 {
		if run.Config, err = config.Parse(cfg); err != nil {
			return nil, fmt.Errorf("decode config of run %s: %w", id, err)
		}
	}
	if run.Spikes, err = loadSpikes(ctx, db, id); err != nil {
		return nil, err
	}
	run.Trace.Names = run.Meta.TraceNames
	if run.Trace.Samples, err = loadSamples(ctx, db, id); err != nil {
		return nil, err
	}
	return run, nil
}

func loadSpikes(ctx context.Context, db *sql.DB, id string) ([]device.SpikeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sender, step, step_offset, time, multiplicity
		FROM spikes WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []device.SpikeRecord
	for rows.Next() {
		var sp device.SpikeRecord
		if err := rows.Scan(&sp.Sender, &sp.Stamp.Step, &sp.Stamp.Offset, &sp.Time, &sp.Multiplicity); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func loadSamples(ctx context.Context, db *sql.DB, id string) ([]event.Sample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sender, step, payload
		FROM samples WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Sample
	for rows.Next() {
		var smp event.Sample
		var payload []byte
		if err := rows.Scan(&smp.Sender, &smp.Step, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &smp.Values); err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created INTEGER NOT NULL,
			metadata BLOB NOT NULL,
			config BLOB
		);
		CREATE TABLE IF NOT EXISTS spikes (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			sender INTEGER NOT NULL,
			step INTEGER NOT NULL,
			step_offset REAL NOT NULL,
			time REAL NOT NULL,
			multiplicity INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			sender INTEGER NOT NULL,
			step INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}
