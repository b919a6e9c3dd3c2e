// Package history persists one record per calibration run so past runs
// can be compared without digging through log directories.
package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed calibration run.
type Run struct {
	ID          string
	Subject     string
	SubjectMass float64 // kg
	StartedAt   time.Time
	Duration    time.Duration
	Phases      int
	Passes      int
	Converged   bool
	FinalCost   float64
	OutputModel string
}

// Store keeps run records in a SQLite file.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("history path is required")
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

func (s *Store) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, subject, subject_mass, started_at, duration_ms, phases, passes, converged, final_cost, output_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			subject_mass = excluded.subject_mass,
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms,
			phases = excluded.phases,
			passes = excluded.passes,
			converged = excluded.converged,
			final_cost = excluded.final_cost,
			output_model = excluded.output_model
	`, run.ID, run.Subject, run.SubjectMass, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds(),
		run.Phases, run.Passes, run.Converged, run.FinalCost, run.OutputModel)
	return err
}

// ListRuns returns the most recent runs first, at most limit of them.
// A limit of zero or less means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, subject, subject_mass, started_at, duration_ms, phases, passes, converged, final_cost, output_model
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.Subject, &run.SubjectMass, &startedAt, &durationMS,
			&run.Phases, &run.Passes, &run.Converged, &run.FinalCost, &run.OutputModel); err != nil {
			return nil, err
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	var (
		run        Run
		startedAt  string
		durationMS int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, subject, subject_mass, started_at, duration_ms, phases, passes, converged, final_cost, output_model
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Subject, &run.SubjectMass, &startedAt, &durationMS,
		&run.Phases, &run.Passes, &run.Converged, &run.FinalCost, &run.OutputModel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, false, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, true, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
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
			subject TEXT NOT NULL,
			subject_mass REAL NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			phases INTEGER NOT NULL,
			passes INTEGER NOT NULL,
			converged INTEGER NOT NULL,
			final_cost REAL NOT NULL,
			output_model TEXT NOT NULL
		);
	`)
	return err
}
