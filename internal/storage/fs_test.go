package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/checksum"
)

func openTemp(t *testing.T) (string, *FS) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return dir, f
}

const doc = `{"profiles":[],"exportDate":"2024-03-10T07:00:00Z","version":"1.0"}`

func TestPutDescribesDocument(t *testing.T) {
	dir, f := openTemp(t)

	meta, err := f.Put("backup.json", []byte(doc))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if meta.Path != "backup.json" || meta.Size != int64(len(doc)) || meta.Checksum != checksum.Sum([]byte(doc)) {
		t.Errorf("unexpected meta %+v", meta)
	}
	if meta.UpdatedAt.IsZero() {
		t.Error("missing modification time")
	}

	got, err := f.Read("backup.json")
	if err != nil || string(got) != doc {
		t.Fatalf("Read = %q, %v", got, err)
	}

	// No temporary files are left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries", len(entries))
	}
}

func TestPutReplaces(t *testing.T) {
	_, f := openTemp(t)
	if _, err := f.Put("a.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Put("a.json", []byte(doc)); err != nil {
		t.Fatal(err)
	}
	got, _ := f.Read("a.json")
	if string(got) != doc {
		t.Errorf("content = %q", got)
	}
}

func TestNamesAreFlat(t *testing.T) {
	_, f := openTemp(t)
	for _, name := range []string{"", ".hidden.json", "../escape.json", "sub/a.json", `sub\a.json`, "notes.txt"} {
		if _, err := f.Put(name, []byte("{}")); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Put(%q) = %v, want validation error", name, err)
		}
		if _, err := f.Read(name); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Read(%q) = %v, want validation error", name, err)
		}
	}
}

func TestReadMissing(t *testing.T) {
	_, f := openTemp(t)
	if _, err := f.Read("gone.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSkipsOtherEntries(t *testing.T) {
	dir, f := openTemp(t)
	_, _ = f.Put("b.json", []byte(doc))
	_, _ = f.Put("a.json", []byte("{}"))
	_ = os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, ".partial.json"), []byte("x"), 0o644)
	_ = os.MkdirAll(filepath.Join(dir, "processed.json"), 0o755)

	metas, err := f.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 || metas[0].Path != "a.json" || metas[1].Path != "b.json" {
		t.Fatalf("List = %+v", metas)
	}
	if metas[0].Checksum != checksum.Sum([]byte("{}")) {
		t.Errorf("checksum = %s", metas[0].Checksum)
	}
}

func TestArchive(t *testing.T) {
	dir, f := openTemp(t)
	_, _ = f.Put("drop.json", []byte(doc))

	target, err := f.Archive("drop.json", "processed", "20240310T070000Z")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if target != filepath.Join("processed", "20240310T070000Z-drop.json") {
		t.Errorf("target = %s", target)
	}
	if _, err := os.Stat(filepath.Join(dir, target)); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
	if metas, _ := f.List(); len(metas) != 0 {
		t.Errorf("archived file still listed: %+v", metas)
	}

	if _, err := f.Archive("drop.json", "processed", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second archive = %v, want ErrNotFound", err)
	}
	if _, err := f.Archive("drop.json", "../out", "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad bucket = %v, want validation error", err)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	_, f := openTemp(t)
	for _, day := range []string{"01", "02", "03", "04"} {
		if _, err := f.Put("cat-food-reminder-2024-03-"+day+"-080000.json", []byte(doc)); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := f.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 2 || !strings.Contains(removed[0], "03-01") || !strings.Contains(removed[1], "03-02") {
		t.Errorf("removed = %v", removed)
	}
	metas, _ := f.List()
	if len(metas) != 2 || !strings.Contains(metas[0].Path, "03-03") {
		t.Errorf("kept = %+v", metas)
	}

	if removed, _ := f.Prune(0); removed != nil {
		t.Errorf("Prune(0) removed %v", removed)
	}
	if removed, _ := f.Prune(5); removed != nil {
		t.Errorf("Prune above count removed %v", removed)
	}
}

func TestNewFSMissingDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}
