// Package history keeps past evaluation results in SQLite so runs, such as
// the checkpoints of one training job, can be compared later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	mapeval "github.com/jamesainslie/go-mapeval"
)

// ErrNotFound indicates no run has the requested id.
var ErrNotFound = errors.New("history: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	label           TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	map             REAL NOT NULL,
	no_ground_truth INTEGER NOT NULL,
	frames          INTEGER NOT NULL,
	detections      INTEGER NOT NULL,
	ground_truths   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_levels (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	iou             REAL NOT NULL,
	ap              REAL NOT NULL,
	true_positives  INTEGER NOT NULL,
	false_positives INTEGER NOT NULL,
	false_negatives INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Run is a stored evaluation.
type Run struct {
	ID            string
	Label         string
	CreatedAt     time.Time
	MAP           float64
	NoGroundTruth bool
	Frames        int
	Detections    int
	GroundTruths  int
	Levels        []Level
}

// Level is the stored outcome at one IoU threshold.
type Level struct {
	IoU            float64
	AP             float64
	TruePositives  int
	FalsePositives int
	FalseNegatives int
}

// Store wraps the history database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Record stores res under a fresh id and returns the stored run.
func (s *Store) Record(ctx context.Context, label string, res *mapeval.Result) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("history store is closed")
	}

	run := &Run{
		ID:            uuid.New().String(),
		Label:         label,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
		MAP:           res.MAP,
		NoGroundTruth: res.NoGroundTruth,
		Frames:        res.Frames,
		Detections:    res.Detections,
		GroundTruths:  res.GroundTruths,
	}
	for _, r := range res.PerThreshold {
		run.Levels = append(run.Levels, Level{
			IoU:            r.Threshold,
			AP:             r.AP,
			TruePositives:  r.TruePositives,
			FalsePositives: r.FalsePositives,
			FalseNegatives: r.FalseNegatives,
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, label, created_at, map, no_ground_truth, frames, detections, ground_truths)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.CreatedAt.UnixMilli(), run.MAP, run.NoGroundTruth,
		run.Frames, run.Detections, run.GroundTruths)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for i, l := range run.Levels {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_levels (run_id, position, iou, ap, true_positives, false_positives, false_negatives)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, l.IoU, l.AP, l.TruePositives, l.FalsePositives, l.FalseNegatives)
		if err != nil {
			return nil, fmt.Errorf("failed to insert level %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first, without levels. limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("history store is closed")
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, map, no_ground_truth, frames, detections, ground_truths
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its levels.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("history store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, created_at, map, no_ground_truth, frames, detections, ground_truths
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT iou, ap, true_positives, false_positives, false_negatives
		 FROM run_levels WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.IoU, &l.AP, &l.TruePositives, &l.FalsePositives, &l.FalseNegatives); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		run.Levels = append(run.Levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate levels: %w", err)
	}
	return run, nil
}

// Delete removes a run and its levels.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("history store is closed")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run     Run
		created int64
	)
	err := sc.Scan(&run.ID, &run.Label, &created, &run.MAP, &run.NoGroundTruth,
		&run.Frames, &run.Detections, &run.GroundTruths)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	return &run, nil
}
