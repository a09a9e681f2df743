// Package watcher observes task files and the project registry for edits
// and reports them after a debounce window. It powers `fleet watch`,
// which re-scores the workspace whenever a human or a worker touches a
// task file.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/registry"
)

// DefaultDebounce coalesces bursts of events (editors often write a file
// several times per save).
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes one workspace.
type Watcher struct {
	workspace string
	reg       *registry.Registry
	debounce  time.Duration
	log       *slog.Logger
}

// New creates a watcher. debounce <= 0 uses DefaultDebounce.
func New(workspace string, reg *registry.Registry, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		workspace: workspace,
		reg:       reg,
		debounce:  debounce,
		log:       logging.Module("watcher"),
	}
}

// interesting reports whether a path is one fleet cares about.
func (w *Watcher) interesting(path string) bool {
	base := filepath.Base(path)
	return base == "tasks.json" || base == registry.FileName
}

// Run watches until the context is cancelled. onChange receives the set
// of changed paths once per debounce window.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the workspace root for projects.json and each project's
	// tasks directory. Directories that do not exist yet are skipped;
	// they get picked up on the next watch start.
	if err := fw.Add(w.workspace); err != nil {
		return err
	}
	for i := range w.reg.Projects {
		dir := filepath.Dir(w.reg.Projects[i].TasksPath(w.workspace))
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.log.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = map[string]bool{}
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.interesting(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = map[string]bool{}
			timer = nil
			timerC = nil
			w.log.Debug("change detected", "paths", paths)
			onChange(paths)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}
