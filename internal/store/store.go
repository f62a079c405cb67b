package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a store whose handle is closed.
var ErrClosed = errors.New("store closed")

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps a reconnectable SQLite handle.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// Heartbeat is one record written by the example daemon each cycle.
type Heartbeat struct {
	ID         int64
	Daemon     string
	PID        int
	CycleID    string
	RecordedAt time.Time
}

// Open creates or connects to the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// RecordHeartbeat stores hb and returns its id. A zero RecordedAt means now.
func (s *Store) RecordHeartbeat(ctx context.Context, hb Heartbeat) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	if hb.RecordedAt.IsZero() {
		hb.RecordedAt = time.Now()
	}
	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = db.ExecContext(ctx,
			"INSERT INTO heartbeats (daemon, pid, cycle_id, recorded_at) VALUES (?, ?, ?, ?)",
			hb.Daemon, hb.PID, hb.CycleID, hb.RecordedAt.UTC().Format(timeLayout),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("record heartbeat: %w", err)
	}
	return res.LastInsertId()
}

// PruneHeartbeats deletes heartbeats recorded before cutoff.
func (s *Store) PruneHeartbeats(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = db.ExecContext(ctx,
			"DELETE FROM heartbeats WHERE recorded_at < ?",
			cutoff.UTC().Format(timeLayout),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune heartbeats: %w", err)
	}
	return res.RowsAffected()
}

// LastHeartbeat returns the most recent heartbeat for daemon, or nil.
func (s *Store) LastHeartbeat(ctx context.Context, daemon string) (*Heartbeat, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		"SELECT id, daemon, pid, cycle_id, recorded_at FROM heartbeats WHERE daemon = ? ORDER BY recorded_at DESC, id DESC LIMIT 1",
		daemon,
	)
	var (
		hb       Heartbeat
		recorded string
	)
	if err := row.Scan(&hb.ID, &hb.Daemon, &hb.PID, &hb.CycleID, &recorded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last heartbeat: %w", err)
	}
	hb.RecordedAt, err = time.Parse(timeLayout, recorded)
	if err != nil {
		return nil, fmt.Errorf("parse heartbeat time %q: %w", recorded, err)
	}
	return &hb, nil
}

// CountHeartbeats returns the number of stored heartbeats.
func (s *Store) CountHeartbeats(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM heartbeats").Scan(&count); err != nil {
		return 0, fmt.Errorf("count heartbeats: %w", err)
	}
	return count, nil
}

// Reset closes the current handle and opens a fresh one. It is the recovery
// action for errors reported by IsTransient.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	db, err := openDB(ctx, s.path)
	if err != nil {
		return fmt.Errorf("reopen store: %w", err)
	}
	s.db = db
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// IsTransient reports whether err is a connection-level failure that a Reset
// is expected to clear.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if isSQLiteBusy(err) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
