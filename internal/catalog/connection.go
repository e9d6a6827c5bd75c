// Package catalog owns the embedded relational database: it serializes
// writes, applies the retry policy, and exposes event/volume/file/job
// operations to the rest of the core.
package catalog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo
)

// Config holds catalog connection settings.
type Config struct {
	// Path is the on-disk SQLite file. Empty means in-memory (":memory:"),
	// which disables the RunInitialScans(parallel=true) worker-pool path
	// since workers cannot share an in-memory database across connections.
	Path         string
	BusyTimeout  time.Duration
	ConnMaxLife  time.Duration
}

// DefaultConfig returns catalog configuration with the pragma set spec.md
// §4.1 names: foreign keys on, a 10s busy timeout, WAL when supported.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:        path,
		BusyTimeout: 10 * time.Second,
		ConnMaxLife: 30 * time.Minute,
	}
}

func (c *Config) dsn(readOnly bool) string {
	path := c.Path
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" && !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf(
		"file:%s?mode=%s&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_pragma=busy_timeout(%d)",
		path, mode, c.BusyTimeout.Milliseconds(),
	)
}

// DB is the catalog's sole writer gateway. It holds a single read-write
// connection (SQLite's single-writer discipline: SetMaxOpenConns(1)) and a
// separate read-only connection for consumers that must never be able to
// write, per spec.md §4.1's "read-only consumers open the database in a
// mode that fails any attempted write."
type DB struct {
	rw   *sql.DB
	ro   *sql.DB
	path string

	// writeMu serializes writes from multiple in-process watchers. Readers
	// do not take it.
	writeMu sync.Mutex
}

// Open opens (and, if absent, creates) the catalog at cfg.Path, applies the
// schema bootstrap, and returns a ready DB.
func Open(cfg *Config) (*DB, error) {
	rw, err := sql.Open("sqlite", cfg.dsn(false))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	rw.SetMaxOpenConns(1)
	rw.SetMaxIdleConns(1)
	rw.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := rw.Ping(); err != nil {
		rw.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	var ro *sql.DB
	if cfg.Path != "" {
		ro, err = sql.Open("sqlite", cfg.dsn(true))
		if err != nil {
			rw.Close()
			return nil, fmt.Errorf("open read-only catalog handle: %w", err)
		}
		ro.SetConnMaxLifetime(cfg.ConnMaxLife)
	} else {
		// in-memory: a second connection would see an empty database, so
		// reads go through the same handle as writes.
		ro = rw
	}

	db := &DB{rw: rw, ro: ro, path: cfg.Path}
	if err := db.applyPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := ensureSchema(rw); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func (db *DB) applyPragmas() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, s := range stmts {
		if _, err := db.rw.Exec(s); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}

// Path returns the on-disk database path, or "" for in-memory catalogs.
// RunInitialScans uses this to decide whether the parallel worker pool can
// be used at all (spec.md §4.5: "if the catalog path cannot be determined,
// transparently degrade to serial mode").
func (db *DB) Path() string { return db.path }

// Writer returns the read-write *sql.DB for building statements.
func (db *DB) Writer() *sql.DB { return db.rw }

// Reader returns the read-only *sql.DB for read projections.
func (db *DB) Reader() *sql.DB { return db.ro }

// Lock acquires the writer mutex; callers must Unlock when their
// transaction completes. Exposed so AppendEvent can wrap a whole
// transaction, not just a single statement.
func (db *DB) Lock()   { db.writeMu.Lock() }
func (db *DB) Unlock() { db.writeMu.Unlock() }

// Close closes both handles.
func (db *DB) Close() error {
	var firstErr error
	if err := db.rw.Close(); err != nil {
		firstErr = err
	}
	if db.ro != db.rw {
		if err := db.ro.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HealthStatus reports basic connectivity and pool statistics, grounded on
// the teacher's Health() check.
type HealthStatus struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	OpenConns    int           `json:"open_connections"`
	Error        string        `json:"error,omitempty"`
}

// Health pings the writer connection and reports status.
func (db *DB) Health() *HealthStatus {
	start := time.Now()
	err := db.rw.Ping()
	elapsed := time.Since(start)
	status := &HealthStatus{ResponseTime: elapsed}
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	stats := db.rw.Stats()
	status.OpenConns = stats.OpenConnections
	if elapsed > time.Second {
		status.Status = "degraded"
	} else {
		status.Status = "healthy"
	}
	return status
}
