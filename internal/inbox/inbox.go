// Package inbox imports export files dropped into a watched directory.
//
// A *.json file created or written in the inbox root is debounced, decoded
// and imported. Afterwards it is moved to processed/ or failed/ so that it is
// never imported twice.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/feedwise/internal/checksum"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/storage"
)

// Subdirectories of the inbox root.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultDebounce is the quiet period after the last write before a file is read.
const DefaultDebounce = 300 * time.Millisecond

// Importer applies a decoded snapshot.
type Importer interface {
	Import(ctx context.Context, snap models.Snapshot) error
}

// EventCallback is called after a file was handled. kind is "processed" or
// "failed"; path is the file's new location relative to the inbox root.
type EventCallback func(kind string, path string)

// Watcher imports files from an inbox directory.
type Watcher struct {
	root     string
	store    storage.Provider
	importer Importer
	logger   *slog.Logger
	cb       EventCallback
	now      func() time.Time

	// Debounce is the quiet period before a changed file is processed.
	Debounce time.Duration

	mu   sync.Mutex // serializes processing
	seen map[string]string
}

// New creates a Watcher for the inbox rooted at root. store must be rooted at
// the same directory.
func New(root string, store storage.Provider, importer Importer, logger *slog.Logger, cb EventCallback) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Watcher{
		root:     root,
		store:    store,
		importer: importer,
		logger:   logger,
		cb:       cb,
		now:      time.Now,
		Debounce: DefaultDebounce,
		seen:     make(map[string]string),
	}
}

// ProcessPending imports every file already waiting in the inbox, oldest
// name first. It returns the number of files imported successfully.
func (w *Watcher) ProcessPending(ctx context.Context) int {
	metas, err := w.store.List()
	if err != nil {
		w.logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return 0
	}
	n := 0
	for _, m := range metas {
		if err := w.ProcessFile(ctx, m.Path); err == nil {
			n++
		}
	}
	return n
}

// ProcessFile imports a single inbox file and moves it out of the inbox.
// A file whose content was already handled under the same name is skipped.
func (w *Watcher) ProcessFile(ctx context.Context, rel string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.store.Read(rel)
	if err != nil {
		// Already moved by an earlier event for the same file.
		w.logger.Debug("inbox: read skipped", slog.String("path", rel), slog.String("error", err.Error()))
		return err
	}
	sum := checksum.Sum(data)
	if w.seen[rel] == sum {
		return nil
	}

	snap, err := models.DecodeSnapshot(data)
	if err == nil {
		err = w.importer.Import(ctx, snap)
	}

	dest := FailedDir
	kind := "failed"
	if err == nil {
		dest = ProcessedDir
		kind = "processed"
	}
	target, mvErr := w.store.Archive(rel, dest, w.now().UTC().Format("20060102T150405Z"))
	if mvErr != nil {
		w.logger.Warn("inbox: move failed",
			slog.String("path", rel),
			slog.String("error", mvErr.Error()))
		// Remember the content so the same file is not imported again.
		w.seen[rel] = sum
		target = rel
	} else {
		delete(w.seen, rel)
	}

	if err != nil {
		w.logger.Warn("inbox: import failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		if w.cb != nil {
			w.cb(kind, target)
		}
		return fmt.Errorf("inbox: import %s: %w", rel, err)
	}

	w.logger.Info("inbox: imported",
		slog.String("path", rel),
		slog.Int("profiles", len(snap.Profiles)))
	if w.cb != nil {
		w.cb(kind, target)
	}
	return nil
}

// Run processes pending files, then watches the inbox root until ctx is
// cancelled. Subdirectories are not watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	w.logger.Info("inbox: started", slog.String("root", w.root))

	w.ProcessPending(ctx)

	pending := make(map[string]struct{})
	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	scheduleFlush := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(w.Debounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(w.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.logger.Info("inbox: stopped")
			return nil

		case <-debounceCh:
			for rel := range pending {
				_ = w.ProcessFile(ctx, rel)
			}
			clear(pending)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
				continue
			}
			if filepath.Dir(ev.Name) != w.root {
				continue
			}
			pending[name] = struct{}{}
			scheduleFlush()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}
