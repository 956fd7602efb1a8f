package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for file events to settle
// before rescanning.
const DefaultDebounce = 300 * time.Millisecond

// Watch runs an initial scan of root and rescans after each burst of file
// events until ctx is cancelled. Directories created at runtime are added
// to the watch list.
func Watch(ctx context.Context, im *Importer, root string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := im.logger

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, root); err != nil {
		return err
	}
	logger.Info("inbox: watching", slog.String("root", root), slog.String("user_id", im.userID))

	scan := func() {
		if _, err := im.Scan(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("inbox: scan failed", slog.String("error", err.Error()))
		}
	}
	scan()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-timerCh:
			scan()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if skipped(root, ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, root, ev.Name); addErr != nil {
						logger.Warn("inbox: watch new dir", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}
			if strings.HasSuffix(ev.Name, ".md") {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// skipped reports whether p lies in a directory the importer ignores.
func skipped(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return true
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first == ImportedDir || first == FailedDir || strings.HasPrefix(first, ".")
}

// addDirsRecursive watches dir and its subdirectories, except the
// importer's own output directories.
func addDirsRecursive(w *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipped(root, p) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
