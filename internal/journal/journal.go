// Package journal keeps a sqlite history of training runs: per-window loss,
// drawn samples and written snapshots.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/samcharles93/charnn/internal/options"
)

// schema is applied statement by statement on open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs(
		id         TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		corpus     TEXT NOT NULL,
		options    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS losses(
		run_id      TEXT NOT NULL REFERENCES runs(id),
		step        INTEGER NOT NULL,
		loss        REAL NOT NULL,
		smooth_loss REAL NOT NULL,
		PRIMARY KEY(run_id, step)
	)`,
	`CREATE TABLE IF NOT EXISTS samples(
		run_id TEXT NOT NULL REFERENCES runs(id),
		step   INTEGER NOT NULL,
		text   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots(
		run_id TEXT NOT NULL REFERENCES runs(id),
		step   INTEGER NOT NULL,
		path   TEXT NOT NULL
	)`,
}

// Journal is a handle on the database. It is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Run is one training run.
type Run struct {
	ID        string
	StartedAt time.Time
	Corpus    string
	Options   options.Options
}

// LossPoint is the loss of one training window.
type LossPoint struct {
	Step       int
	Loss       float64
	SmoothLoss float64
}

// Sample is text drawn during training.
type Sample struct {
	Step int
	Text string
}

// SnapshotRecord is a snapshot written during training.
type SnapshotRecord struct {
	Step int
	Path string
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// foreign_keys is a per-connection pragma, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	stmts := append([]string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"}, schema...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open journal %s: %w", path, err)
		}
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun records a new run. The id must be unused.
func (j *Journal) StartRun(ctx context.Context, r Run) error {
	return j.insertRun(ctx, "INSERT", r)
}

// EnsureRun records r unless a run with its id already exists, as when a
// run resumes from a snapshot.
func (j *Journal) EnsureRun(ctx context.Context, r Run) error {
	return j.insertRun(ctx, "INSERT OR IGNORE", r)
}

func (j *Journal) insertRun(ctx context.Context, verb string, r Run) error {
	opts, err := json.Marshal(r.Options)
	if err != nil {
		return fmt.Errorf("journal: encode options: %w", err)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err = j.db.ExecContext(ctx,
		verb+" INTO runs(id, started_at, corpus, options) VALUES(?,?,?,?)",
		r.ID, r.StartedAt.UnixMilli(), r.Corpus, string(opts))
	if err != nil {
		return fmt.Errorf("journal: start run %s: %w", r.ID, err)
	}
	return nil
}

// RecordLoss stores the loss of the window at step. A repeated step
// overwrites the previous value, which happens when a run is resumed.
func (j *Journal) RecordLoss(ctx context.Context, runID string, step int, loss, smooth float64) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO losses(run_id, step, loss, smooth_loss) VALUES(?,?,?,?)",
		runID, step, loss, smooth)
	if err != nil {
		return fmt.Errorf("journal: record loss: %w", err)
	}
	return nil
}

// RecordSample stores sampled text.
func (j *Journal) RecordSample(ctx context.Context, runID string, step int, text string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO samples(run_id, step, text) VALUES(?,?,?)", runID, step, text)
	if err != nil {
		return fmt.Errorf("journal: record sample: %w", err)
	}
	return nil
}

// RecordSnapshot stores the path of a written snapshot.
func (j *Journal) RecordSnapshot(ctx context.Context, runID string, step int, path string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO snapshots(run_id, step, path) VALUES(?,?,?)", runID, step, path)
	if err != nil {
		return fmt.Errorf("journal: record snapshot: %w", err)
	}
	return nil
}

// Runs lists every run, oldest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT id, started_at, corpus, options FROM runs ORDER BY started_at, id")
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			opts    string
		)
		if err := rows.Scan(&r.ID, &started, &r.Corpus, &opts); err != nil {
			return nil, fmt.Errorf("journal: list runs: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if err := json.Unmarshal([]byte(opts), &r.Options); err != nil {
			return nil, fmt.Errorf("journal: decode options of run %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Losses returns the loss history of a run ordered by step.
func (j *Journal) Losses(ctx context.Context, runID string) ([]LossPoint, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT step, loss, smooth_loss FROM losses WHERE run_id = ? ORDER BY step", runID)
	if err != nil {
		return nil, fmt.Errorf("journal: losses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LossPoint
	for rows.Next() {
		var p LossPoint
		if err := rows.Scan(&p.Step, &p.Loss, &p.SmoothLoss); err != nil {
			return nil, fmt.Errorf("journal: losses: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Samples returns the samples of a run in the order they were drawn.
func (j *Journal) Samples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT step, text FROM samples WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("journal: samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Step, &s.Text); err != nil {
			return nil, fmt.Errorf("journal: samples: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Snapshots returns the snapshots of a run in the order they were written.
func (j *Journal) Snapshots(ctx context.Context, runID string) ([]SnapshotRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT step, path FROM snapshots WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("journal: snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SnapshotRecord
	for rows.Next() {
		var s SnapshotRecord
		if err := rows.Scan(&s.Step, &s.Path); err != nil {
			return nil, fmt.Errorf("journal: snapshots: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
