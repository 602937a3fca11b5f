package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/storage"
)

type recordingImporter struct {
	mu    sync.Mutex
	snaps []models.Snapshot
	err   error
}

func (r *recordingImporter) Import(_ context.Context, snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recordingImporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func inboxEnv(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fs.Close() })
	return dir, fs
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

const validExport = `{"profiles":[{"id":3,"name":"Luna","weight":4,"age":12,"activity":"medium","foodType":"dry","mealTimes":"08:00, 18:00"}],"exportDate":"2024-01-15T10:00:00Z","version":"1.0"}`

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessPending(t *testing.T) {
	dir, fs := inboxEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "good.json"), []byte(validExport), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"profiles":"x"}`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	imp := &recordingImporter{}
	var events []string
	w := New(dir, fs, imp, quietLogger(), func(kind, path string) {
		events = append(events, kind)
	})

	if n := w.ProcessPending(context.Background()); n != 1 {
		t.Fatalf("imported %d files, want 1", n)
	}
	if imp.count() != 1 {
		t.Fatalf("importer called %d times", imp.count())
	}
	snap := imp.snaps[0]
	if len(snap.Profiles) != 1 || snap.Profiles[0].ID != 3 || len(snap.Profiles[0].MealTimes) != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if got := listDir(t, filepath.Join(dir, ProcessedDir)); len(got) != 1 {
		t.Errorf("processed = %v", got)
	}
	if got := listDir(t, filepath.Join(dir, FailedDir)); len(got) != 1 {
		t.Errorf("failed = %v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-json file should stay in place")
	}
	if len(events) != 2 {
		t.Errorf("events = %v", events)
	}
}

func TestProcessFileImportError(t *testing.T) {
	dir, fs := inboxEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "export.json"), []byte(validExport), 0o644)

	imp := &recordingImporter{err: errors.New("db down")}
	w := New(dir, fs, imp, quietLogger(), nil)

	if err := w.ProcessFile(context.Background(), "export.json"); err == nil {
		t.Fatal("expected error")
	}
	if got := listDir(t, filepath.Join(dir, FailedDir)); len(got) != 1 {
		t.Errorf("failed = %v", got)
	}
}

func TestProcessFileMissing(t *testing.T) {
	dir, fs := inboxEnv(t)
	w := New(dir, fs, &recordingImporter{}, quietLogger(), nil)
	if err := w.ProcessFile(context.Background(), "gone.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRun_NewFileImported(t *testing.T) {
	dir, fs := inboxEnv(t)
	imp := &recordingImporter{}
	w := New(dir, fs, imp, quietLogger(), nil)
	w.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if _, err := fs.Put("drop.json", []byte(validExport)); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return imp.count() == 1
	}, "dropped file not imported")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return len(listDir(t, filepath.Join(dir, ProcessedDir))) == 1
	}, "dropped file not moved to processed")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	if imp.count() != 1 {
		t.Errorf("file imported %d times", imp.count())
	}
}
