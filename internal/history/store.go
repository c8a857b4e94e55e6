// Package history persists script run records in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mwarner/greenflow/internal/script"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

// ErrNotFound is returned when no run with the requested id exists.
var ErrNotFound = errors.New("run not found")

// RunSummary is a listing entry for one stored run.
type RunSummary struct {
	ID         string           `json:"run_id"`
	ScriptID   string           `json:"script_id"`
	SessionID  string           `json:"session_id"`
	Status     script.RunStatus `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Steps      int              `json:"steps"`
}

// Store reads and writes run records.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveRun inserts a run and its log entries in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *script.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, script_id, session_id, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScriptID, run.SessionID, string(run.Status),
		run.StartedAt.UTC().Format(timeFormat), run.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting run %q: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_steps (run_id, seq, step_id, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing step insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range run.Log {
		_, err := stmt.ExecContext(ctx, run.ID, i, entry.StepID, string(entry.Status),
			entry.Message, entry.Timestamp.UTC().Format(timeFormat))
		if err != nil {
			return fmt.Errorf("inserting step %d of run %q: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %q: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one run with its full log.
func (s *Store) GetRun(ctx context.Context, id string) (*script.Run, error) {
	run := &script.Run{ID: id}
	var status, startedAt, finishedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT script_id, session_id, status, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ScriptID, &run.SessionID, &status, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %q: %w", id, err)
	}
	run.Status = script.RunStatus(status)
	run.StartedAt, _ = time.Parse(timeFormat, startedAt)
	run.FinishedAt, _ = time.Parse(timeFormat, finishedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, status, message, created_at FROM run_steps WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("loading steps of run %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry script.LogEntry
		var entryStatus, createdAt string
		if err := rows.Scan(&entry.StepID, &entryStatus, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning step of run %q: %w", id, err)
		}
		entry.Status = script.Status(entryStatus)
		entry.Timestamp, _ = time.Parse(timeFormat, createdAt)
		run.Log = append(run.Log, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps of run %q: %w", id, err)
	}
	return run, nil
}

// ListRuns returns summaries of all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.script_id, r.session_id, r.status, r.started_at, r.finished_at,
		        (SELECT COUNT(*) FROM run_steps WHERE run_id = r.id)
		 FROM runs r ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		var sum RunSummary
		var status, startedAt, finishedAt string
		if err := rows.Scan(&sum.ID, &sum.ScriptID, &sum.SessionID, &status, &startedAt, &finishedAt, &sum.Steps); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		sum.Status = script.RunStatus(status)
		sum.StartedAt, _ = time.Parse(timeFormat, startedAt)
		sum.FinishedAt, _ = time.Parse(timeFormat, finishedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return summaries, nil
}
