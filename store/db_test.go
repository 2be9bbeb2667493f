package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidemind/tidemind/config"
)

// testDB returns a connected in-memory database.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConnect_FileBacked(t *testing.T) {
	dir := t.TempDir()
	db := New(config.DatabaseConfig{
		Enabled:      true,
		Path:         filepath.Join(dir, "memory.db"),
		MaxOpenConns: 10,
	})
	if err := db.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if !db.Enabled() {
		t.Fatal("expected store enabled after Connect")
	}
	if err := db.ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	// Idempotent: a second Connect is a no-op.
	if err := db.Connect(); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

func TestConnect_FailureDisables(t *testing.T) {
	dir := t.TempDir()
	// Make the parent "directory" a regular file so MkdirAll fails.
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	db := New(config.DatabaseConfig{
		Enabled: true,
		Path:    filepath.Join(blocker, "sub", "memory.db"),
	})
	if err := db.Connect(); err == nil {
		t.Fatal("expected Connect to fail")
	}
	if db.Enabled() {
		t.Fatal("expected store disabled after failed Connect")
	}

	// A later Connect must not retry.
	if err := db.Connect(); err != nil {
		t.Fatalf("expected no-op on second Connect, got: %v", err)
	}
	if db.Enabled() {
		t.Fatal("store must stay disabled for its lifetime")
	}
}

func TestConnect_DisabledConfig(t *testing.T) {
	db := New(config.DatabaseConfig{Enabled: false})
	if err := db.Connect(); err != nil {
		t.Fatalf("Connect on disabled store: %v", err)
	}
	if db.Enabled() {
		t.Fatal("expected store disabled")
	}

	if _, ok := db.GetOrCreateUserID(context.Background(), "telegram", "42"); ok {
		t.Fatal("expected no user id from disabled store")
	}
}

func TestClose_NeverConnected(t *testing.T) {
	db := New(config.DatabaseConfig{Enabled: true})
	if err := db.Close(); err != nil {
		t.Fatalf("Close on unconnected store: %v", err)
	}
	// And twice.
	if err := db.Close(); err != nil {
		t.Fatalf("double Close: %v", err)
	}
}
