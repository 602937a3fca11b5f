// Package testutil provides shared test helpers for databases, directories and timers.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/feedwise/internal/storage"
	"github.com/starford/feedwise/internal/store"
)

// TestStore opens a migrated SQLite store in a per-test directory.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "feedwise.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDir returns an empty directory and a storage provider rooted at it.
func TestDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("open dir: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return dir, fs
}
