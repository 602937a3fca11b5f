package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/checksum"
	"github.com/starford/feedwise/internal/models"
)

// FS is a Provider confined to one directory with os.Root.
type FS struct {
	dir  string
	root *os.Root
	seq  atomic.Uint64
}

var _ Provider = (*FS)(nil)

// NewFS opens dir, which must already exist.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", abs, err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Dir returns the absolute directory path.
func (f *FS) Dir() string { return f.dir }

// Close releases the directory handle.
func (f *FS) Close() error {
	return f.root.Close()
}

func checkName(name string) error {
	switch {
	case name == "", strings.HasPrefix(name, "."):
		return apperr.Validation(fmt.Errorf("storage: invalid name %q", name))
	case strings.ContainsAny(name, `/\`):
		return apperr.Validation(fmt.Errorf("storage: name %q has a separator", name))
	case !strings.HasSuffix(name, ".json"):
		return apperr.Validation(fmt.Errorf("storage: %q is not a .json document", name))
	}
	return nil
}

// names returns the visible *.json entries, ordered by name.
func (f *FS) names() ([]string, error) {
	entries, err := fs.ReadDir(f.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", f.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || checkName(e.Name()) != nil {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (f *FS) describe(name string, data []byte) (models.FileMeta, error) {
	info, err := f.root.Stat(name)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return models.FileMeta{
		Path:      name,
		Checksum:  checksum.Sum(data),
		Size:      info.Size(),
		UpdatedAt: info.ModTime().UTC(),
	}, nil
}

// List implements Provider.
func (f *FS) List() ([]models.FileMeta, error) {
	names, err := f.names()
	if err != nil {
		return nil, err
	}
	out := make([]models.FileMeta, 0, len(names))
	for _, name := range names {
		data, err := f.Read(name)
		if errors.Is(err, apperr.ErrNotFound) {
			// Moved away while listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		meta, err := f.describe(name, data)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Read implements Provider. A missing document yields apperr.ErrNotFound.
func (f *FS) Read(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Put implements Provider. The document is written to a hidden temporary
// file, synced and renamed over name.
func (f *FS) Put(name string, data []byte) (models.FileMeta, error) {
	if err := checkName(name); err != nil {
		return models.FileMeta{}, err
	}
	tmp := "." + name + "." + strconv.FormatUint(f.seq.Add(1), 10) + ".tmp"
	if err := f.writeSynced(tmp, data); err != nil {
		_ = f.root.Remove(tmp)
		return models.FileMeta{}, err
	}
	if err := f.root.Rename(tmp, name); err != nil {
		_ = f.root.Remove(tmp)
		return models.FileMeta{}, fmt.Errorf("storage: replace %s: %w", name, err)
	}
	return f.describe(name, data)
}

func (f *FS) writeSynced(name string, data []byte) error {
	file, err := f.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", name, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("storage: sync %s: %w", name, err)
	}
	return file.Close()
}

// Archive implements Provider.
func (f *FS) Archive(name, bucket, stamp string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if bucket == "" || strings.ContainsAny(bucket, `/\.`) {
		return "", apperr.Validation(fmt.Errorf("storage: invalid bucket %q", bucket))
	}
	if err := f.root.MkdirAll(bucket, 0o755); err != nil {
		return "", fmt.Errorf("storage: create %s: %w", bucket, err)
	}
	target := filepath.Join(bucket, stamp+"-"+name)
	if err := f.root.Rename(name, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("storage: %s: %w", name, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("storage: archive %s: %w", name, err)
	}
	return target, nil
}

// Prune implements Provider. keep <= 0 disables pruning.
func (f *FS) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	names, err := f.names()
	if err != nil || len(names) <= keep {
		return nil, err
	}
	var removed []string
	for _, name := range names[:len(names)-keep] {
		if err := f.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("storage: remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
