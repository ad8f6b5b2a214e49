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

	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the corpus root and turns file
// changes into linker notifications until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. A rename of a file the index still knows at its old path schedules
// a debounced full rebuild, since the new path arrives as an unrelated
// create event.
func Watch(ctx context.Context, l *Linker, store storage.Provider, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// checksums of the last content applied per relative path; fsnotify
	// reports several writes for one save.
	applied := make(map[string]string)

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
			clear(applied)
			if _, err := l.Rebuild(ctx, models.Scope{}); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(l, store, root, absPath, applied, logger)
					continue
				}
			}

			name := filepath.Base(absPath)
			if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			kind, loc, parseErr := storage.ParsePath(rel)
			if parseErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				applyFile(l, store, rel, kind, loc, applied, logger)

			case ev.Op&fsnotify.Remove != 0:
				delete(applied, rel)
				if id, ok := l.IDAt(kind, loc); ok {
					l.DocumentDeleted(id)
					logger.Debug("watcher: deleted", slog.String("path", rel))
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. Moves made
				// through the document service have already updated the
				// index, so only unknown renames need a rebuild.
				delete(applied, rel)
				if _, ok := l.IDAt(kind, loc); ok {
					logger.Debug("watcher: rename detected", slog.String("path", rel))
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// applyFile loads one document and hands it to the linker unless its
// content was already applied.
func applyFile(l *Linker, store storage.Provider, rel string, kind models.Kind, loc models.Location, applied map[string]string, logger *slog.Logger) {
	doc, err := store.Lookup(kind, loc)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if applied[rel] == doc.Checksum {
		return
	}
	applied[rel] = doc.Checksum
	st := l.DocumentSaved(doc)
	logger.Debug("watcher: indexed",
		slog.String("path", rel),
		slog.Int("added", st.Added),
		slog.Int("removed", st.Removed))
}

// indexNewDir applies any documents found in a newly created directory.
func indexNewDir(l *Linker, store storage.Provider, root, dirPath string, applied map[string]string, logger *slog.Logger) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		kind, loc, parseErr := storage.ParsePath(rel)
		if parseErr != nil {
			return nil
		}
		applyFile(l, store, rel, kind, loc, applied, logger)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
