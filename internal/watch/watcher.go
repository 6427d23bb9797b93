// Package watch re-runs a callback when build inputs change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// DefaultDebounce collapses bursts such as a generator rewriting the whole output tree.
const DefaultDebounce = 500 * time.Millisecond

// Target is a watched path. Recursive targets are directories whose whole subtree counts.
type Target struct {
	Path      string
	Recursive bool
}

// Handler is called with the changed paths once a burst of events settles.
type Handler func(ctx context.Context, changed []string) error

// Watcher monitors targets and calls a Handler after each debounced burst of changes.
type Watcher struct {
	targets  []Target
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New creates a watcher. Targets need not exist yet. A target whose parent directory is
// missing is skipped with a warning.
func New(debounce time.Duration, targets ...Target) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{debounce: debounce, watcher: fw}
	for _, t := range targets {
		abs, err := filepath.Abs(t.Path)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to resolve watch path: %w", err)
		}
		t.Path = abs
		parent := filepath.Dir(abs)
		if _, err := os.Stat(parent); errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Not watching path, parent directory does not exist", logfields.Path(abs))
			continue
		}
		w.targets = append(w.targets, t)

		// Watch the parent (more reliable than watching a file directly, and catches
		// the target being created or replaced).
		if err := fw.Add(parent); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", parent, err)
		}
		if t.Recursive {
			w.addTree(abs)
		}
	}
	return w, nil
}

// addTree watches dir and every directory beneath it. Missing dirs are ignored.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.watcher.Add(path); addErr != nil {
				slog.Warn("Failed to watch directory", logfields.Path(path), logfields.Error(addErr))
			}
		}
		return nil
	})
}

// match returns the target an event path belongs to.
func (w *Watcher) match(name string) (Target, bool) {
	for _, t := range w.targets {
		if name == t.Path {
			return t, true
		}
		if t.Recursive && strings.HasPrefix(name, t.Path+string(filepath.Separator)) {
			return t, true
		}
	}
	return Target{}, false
}

// Run blocks until ctx is done. The handler runs on the calling goroutine, so a
// slow handler delays the next burst instead of overlapping it. Handler errors are
// logged and watching continues.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer func() { _ = w.watcher.Close() }()

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			t, relevant := w.match(event.Name)
			if !relevant || event.Op == fsnotify.Chmod {
				continue
			}
			if t.Recursive && event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}
			slog.Debug("Watched path changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			if err := handle(ctx, changed); err != nil {
				slog.Error("Rebuild after change failed", logfields.Error(err), logfields.Count(len(changed)))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}
