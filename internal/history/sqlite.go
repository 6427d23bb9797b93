package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", ErrOpenFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		status TEXT NOT NULL,
		revision TEXT,
		runtime TEXT,
		package_manager TEXT,
		artifacts INTEGER NOT NULL DEFAULT 0,
		routes INTEGER NOT NULL DEFAULT 0,
		manifest_hash TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	CREATE TABLE IF NOT EXISTS build_stages (
		build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (build_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a build and its stages in one transaction. Recording an id twice
// replaces the earlier row.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO builds
			(id, project, status, revision, runtime, package_manager, artifacts, routes, manifest_hash, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Project, string(e.Status), e.Revision, e.Runtime, e.PackageManager,
		e.Artifacts, e.Routes, e.ManifestHash, e.Error, e.StartedAt.UnixMilli(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert build: %w", ErrWriteFailed, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM build_stages WHERE build_id = ?", e.ID); err != nil {
		return fmt.Errorf("%w: clear stages: %w", ErrWriteFailed, err)
	}
	for i, st := range e.Stages {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO build_stages (build_id, seq, name, status, duration_ms) VALUES (?, ?, ?, ?, ?)",
			e.ID, i, st.Name, string(st.Status), st.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("%w: insert stage: %w", ErrWriteFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWriteFailed, err)
	}
	return nil
}

const selectBuild = `SELECT id, project, status, revision, runtime, package_manager, artifacts, routes,
	manifest_hash, error, started_at, duration_ms FROM builds`

// Get returns one build including its stages.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectBuild+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, status, duration_ms FROM build_stages WHERE build_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("%w: query stages: %w", ErrQueryFailed, err)
	}
	defer rows.Close()
	for rows.Next() {
		var st Stage
		var status string
		var ms int64
		if err := rows.Scan(&st.Name, &status, &ms); err != nil {
			return nil, fmt.Errorf("%w: scan stage: %w", ErrQueryFailed, err)
		}
		st.Status = Status(status)
		st.Duration = time.Duration(ms) * time.Millisecond
		e.Stages = append(e.Stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate stages: %w", ErrQueryFailed, err)
	}
	return e, nil
}

// List returns the most recent builds first. Stages are not loaded.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectBuild+" ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan build: %w", ErrQueryFailed, err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrQueryFailed, err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var status string
	var revision, runtime, pm, hash, errMsg sql.NullString
	var startedMS, durationMS int64
	err := row.Scan(&e.ID, &e.Project, &status, &revision, &runtime, &pm,
		&e.Artifacts, &e.Routes, &hash, &errMsg, &startedMS, &durationMS)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Revision = revision.String
	e.Runtime = runtime.String
	e.PackageManager = pm.String
	e.ManifestHash = hash.String
	e.Error = errMsg.String
	e.StartedAt = time.UnixMilli(startedMS)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
