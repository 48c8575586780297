package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; path is relative to the
// content root.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// watchEnv bundles what the watcher needs to index a file.
type watchEnv struct {
	db     *DB
	store  storage.Provider
	lay    layout.Layout
	root   string
	logger *slog.Logger
	cb     EventCallback
}

func (e *watchEnv) notify(kind, rel string) {
	if e.cb != nil {
		e.cb(kind, rel)
	}
}

// Watch starts an fsnotify watcher on the content root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each index mutation caused by an out-of-band edit. Writes that leave the
// indexed checksum unchanged (including Folio's own writes, which index
// synchronously) produce no callback.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, lay layout.Layout, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	env := &watchEnv{db: db, store: store, lay: lay, root: root, logger: logger, cb: cb}
	if err := env.addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			env.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			env.handle(w, ev, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (e *watchEnv) handle(w *fsnotify.Watcher, ev fsnotify.Event, scheduleReconcile func()) {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if e.skipDir(absPath) {
				return
			}
			if addErr := e.addDirsRecursive(w, absPath); addErr != nil {
				e.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				e.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			}
			e.indexNewDir(absPath)
			return
		}
	}

	rel, relErr := filepath.Rel(e.root, absPath)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if _, ok := e.lay.Resolve(rel); !ok {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		changed, err := e.indexIfChanged(rel)
		if err != nil {
			e.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		if !changed {
			return
		}
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		e.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
		e.notify(kind, rel)

	case ev.Op&fsnotify.Remove != 0:
		e.remove(rel)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify fires Rename on the OLD path only. The new path will
		// arrive as a separate Create event (if it stays within a watched
		// dir). Delete the old entry now and reconcile shortly after.
		e.remove(rel)
		scheduleReconcile()
	}
}

// indexIfChanged re-indexes rel unless its checksum matches the index.
func (e *watchEnv) indexIfChanged(rel string) (bool, error) {
	data, err := e.store.Read(rel)
	if err != nil {
		return false, err
	}
	if cs, _ := e.db.GetChecksum(rel); cs == storage.Checksum(data) {
		return false, nil
	}
	if err := indexFile(e.db, e.store, e.lay, rel); err != nil {
		return false, err
	}
	return true, nil
}

func (e *watchEnv) remove(rel string) {
	if cs, _ := e.db.GetChecksum(rel); cs == "" {
		return
	}
	if exists, _ := e.store.Exists(rel); exists {
		return
	}
	if err := e.db.DeleteDocument(rel); err != nil {
		e.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	e.logger.Debug("watcher: deleted", slog.String("path", rel))
	e.notify("deleted", rel)
}

// reconcile does a lightweight sync: removes index entries without a file
// on disk and indexes on-disk files that are missing or stale.
func (e *watchEnv) reconcile() {
	checksums, err := e.db.AllChecksums()
	if err != nil {
		e.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	files, err := listContent(e.store, e.lay)
	if err != nil {
		e.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(files))
	for _, f := range files {
		disk[f.Path] = f.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := e.db.DeleteDocument(p); delErr == nil {
				e.logger.Debug("reconcile: removed stale", slog.String("path", p))
				e.notify("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		if idxErr := indexFile(e.db, e.store, e.lay, p); idxErr == nil {
			e.logger.Debug("reconcile: indexed new", slog.String("path", p))
			e.notify("created", p)
		}
	}
}

// indexNewDir indexes any document files found in a newly created directory.
func (e *watchEnv) indexNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, ok := e.lay.Resolve(rel); !ok {
			return nil
		}
		if changed, idxErr := e.indexIfChanged(rel); idxErr == nil && changed {
			e.logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			e.notify("created", rel)
		}
		return nil
	})
}

// skipDir reports whether a directory is hidden or holds recycled files.
func (e *watchEnv) skipDir(abs string) bool {
	if abs != e.root && strings.HasPrefix(filepath.Base(abs), ".") {
		return true
	}
	rel, err := filepath.Rel(e.root, abs)
	if err != nil {
		return true
	}
	return rel != "." && e.lay.IsRecycled(filepath.ToSlash(rel))
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func (e *watchEnv) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if e.skipDir(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
