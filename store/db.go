// Package store persists user identities and vector memories in SQLite
// behind a bounded database/sql connection pool.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tidemind/tidemind/config"
)

// DB manages the connection pool and schema initialization.
//
// Connect is idempotent and safe to call multiple times. Any failure during
// connection or schema init marks the DB disabled for the remainder of its
// lifetime; every query method then degrades to its unavailable outcome
// instead of returning an error to the caller.
type DB struct {
	cfg config.DatabaseConfig

	mu       sync.Mutex
	db       *sql.DB
	enabled  bool
	attempts int // Connect calls after a failure are no-ops, not retries
}

// New creates a DB from cfg. No connection is made until Connect.
func New(cfg config.DatabaseConfig) *DB {
	return &DB{cfg: cfg, enabled: cfg.Enabled}
}

// Connect opens the database file, bounds the pool, and initializes the
// schema with create-if-not-exists semantics. On failure the DB is disabled
// rather than retried indefinitely.
func (d *DB) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled || d.db != nil {
		return nil
	}
	if d.attempts > 0 {
		return nil
	}
	d.attempts++

	path := config.ExpandHome(d.cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		d.enabled = false
		slog.Error("store: create db dir failed", "path", path, "err", err)
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		d.enabled = false
		slog.Error("store: open database failed", "path", path, "err", err)
		return fmt.Errorf("open sqlite: %w", err)
	}

	maxOpen := d.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		d.enabled = false
		slog.Error("store: schema init failed", "err", err)
		return fmt.Errorf("init schema: %w", err)
	}

	d.db = db
	slog.Info("store: connected", "path", path, "maxOpenConns", maxOpen)
	return nil
}

// Close releases the pool. Safe when never connected or already closed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	slog.Info("store: connection pool closed")
	return err
}

// Enabled reports whether the store is connected and usable.
func (d *DB) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled && d.db != nil
}

// conn returns the pool, or nil when the store is disabled or not connected.
func (d *DB) conn() *sql.DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return nil
	}
	return d.db
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_identities (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			PRIMARY KEY (channel, sender_id)
		)`,
		`CREATE TABLE IF NOT EXISTS vector_memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_memories_user
			ON vector_memories(user_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:min(len(s), 40)], err)
		}
	}
	return nil
}

// OpenMemory returns a connected DB backed by an in-memory SQLite database,
// for tests.
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// A :memory: database exists per connection; the pool must stay at one.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db, enabled: true, attempts: 1}, nil
}

// ping verifies liveness; used by tests.
func (d *DB) ping(ctx context.Context) error {
	c := d.conn()
	if c == nil {
		return fmt.Errorf("store disabled")
	}
	return c.PingContext(ctx)
}
