package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/spachava753/assetflow/internal/fileset"
)

// skipDirs are never watched.
var skipDirs = []string{".git", "node_modules"}

// Watcher is the watch task. It watches the base directory of every rule
// pattern under Root recursively and feeds changes to a Dispatcher until its
// context is cancelled.
type Watcher struct {
	Root       string
	Dispatcher *Dispatcher
	Skip       []string // absolute directories not to watch

	ready chan struct{}
}

// New creates a watcher over rules rooted at root.
func New(root string, d *Dispatcher, skip ...string) *Watcher {
	return &Watcher{
		Root:       root,
		Dispatcher: d,
		Skip:       skip,
		ready:      make(chan struct{}),
	}
}

func (w *Watcher) Name() string { return "watch" }

// Ready is closed once the initial directories are being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled, then waits for running handlers. A
// failing handler is logged and does not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()
	defer w.Dispatcher.Close()

	var patterns []string
	for _, r := range w.Dispatcher.Rules() {
		patterns = append(patterns, r.Patterns...)
	}
	for _, base := range fileset.BaseDirs(patterns) {
		dir := filepath.Join(w.Root, filepath.FromSlash(base))
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			slog.Debug("watch directory does not exist", "task", w.Name(), "dir", dir)
			continue
		}
		if err := w.addRecursive(fsw, dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	slog.Info("watching for changes", "task", w.Name(), "root", w.Root, "dirs", len(fsw.WatchList()))
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "task", w.Name(), "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&^fsnotify.Chmod == 0 {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, ev.Name); err != nil {
				slog.Warn("failed to watch new directory", "task", w.Name(), "dir", ev.Name, "error", err)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.Root, ev.Name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	rel = filepath.ToSlash(rel)

	if matched := w.Dispatcher.Dispatch(ctx, rel); len(matched) > 0 {
		slog.Debug("file changed", "task", w.Name(), "path", rel, "op", ev.Op.String(), "rules", matched)
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && (slices.Contains(skipDirs, d.Name()) || slices.Contains(w.Skip, p)) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}
