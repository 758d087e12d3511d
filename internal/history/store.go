// Package history persists summaries of completed walks in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/treewalk/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("history: run not found")

// Failure is a directory that could not be listed during a run.
type Failure struct {
	Path  string
	Error string
}

// Run is the recorded summary of one walk.
type Run struct {
	ID           string
	Root         string
	Pattern      string
	Mode         string
	StartedAt    time.Time
	Duration     time.Duration
	Files        int
	Directories  int
	Inaccessible int
	TotalBytes   int64
	Failures     []Failure // Populated by Get, not by List
}

// NewRun summarizes result as a Run with a fresh id.
func NewRun(root, pattern, mode string, startedAt time.Time, duration time.Duration, result *models.TraversalResult) *Run {
	s := result.Summary()
	run := &Run{
		ID:           uuid.NewString(),
		Root:         root,
		Pattern:      pattern,
		Mode:         mode,
		StartedAt:    startedAt,
		Duration:     duration,
		Files:        s.Files,
		Directories:  s.Directories,
		Inaccessible: s.Inaccessible,
		TotalBytes:   s.TotalBytes,
	}
	if result != nil {
		for _, d := range result.Inaccessible {
			msg := ""
			if d.Err != nil {
				msg = d.Err.Error()
			}
			run.Failures = append(run.Failures, Failure{Path: d.Dir.Path, Error: msg})
		}
	}
	return run
}

// Store manages the SQLite database of walk runs
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must come first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores run and its failures in one transaction.
// An empty run.ID is replaced with a new UUID.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("history: run is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO walk_runs
		(id, root, pattern, mode, started_at, duration_ms, files, directories, inaccessible, total_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Root,
		run.Pattern,
		run.Mode,
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
		run.Files,
		run.Directories,
		run.Inaccessible,
		run.TotalBytes,
	)
	if err != nil {
		return fmt.Errorf("insert walk run: %w", err)
	}

	for i, f := range run.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO walk_failures (run_id, position, path, error) VALUES (?, ?, ?, ?)`,
			run.ID, i, f.Path, f.Error)
		if err != nil {
			return fmt.Errorf("insert walk failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit walk run: %w", err)
	}
	return nil
}

// List returns the most recent runs first. A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, root, pattern, mode, started_at, duration_ms, files, directories, inaccessible, total_bytes
		FROM walk_runs
		ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query walk runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walk runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its failures.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, root, pattern, mode, started_at, duration_ms, files, directories, inaccessible, total_bytes
		FROM walk_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, error FROM walk_failures WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query walk failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.Error); err != nil {
			return nil, fmt.Errorf("scan walk failure: %w", err)
		}
		run.Failures = append(run.Failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walk failures: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var durationMS int64
	err := row.Scan(
		&run.ID,
		&run.Root,
		&run.Pattern,
		&run.Mode,
		&run.StartedAt,
		&durationMS,
		&run.Files,
		&run.Directories,
		&run.Inaccessible,
		&run.TotalBytes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan walk run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
