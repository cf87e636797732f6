// Package watch keeps the project registry in step with project files that
// change on disk while the tool is running.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/dreamunreal/ueman/internal/project"
	"github.com/dreamunreal/ueman/internal/uproject"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of events for the same file
const DefaultDebounce = 250 * time.Millisecond

// Registry is the part of *project.Registry the watcher drives
type Registry interface {
	Paths() []string
	CleanupInvalid() (int, error)
	RefreshPath(path string) (project.Record, error)
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Logger   *logrus.Logger
}

// Watcher reacts to .uproject changes in the directories of known projects
type Watcher struct {
	reg      Registry
	debounce time.Duration
	log      *logrus.Logger

	mu      sync.Mutex
	pending map[string]fsnotify.Op
	timer   *time.Timer
}

// New creates a Watcher for reg
func New(reg Registry, opts Options) *Watcher {
	d := opts.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Watcher{
		reg:      reg,
		debounce: d,
		log:      logging.OrDiscard(opts.Logger),
		pending:  map[string]fsnotify.Op{},
	}
}

// Run watches until ctx is cancelled. Removed or renamed project files
// trigger CleanupInvalid; written ones trigger RefreshPath.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dirs := map[string]bool{}
	for _, p := range w.reg.Paths() {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.log.WithField("path", dir).Warnf("cannot watch project directory: %v", err)
			continue
		}
		dirs[dir] = true
	}
	w.log.Infof("watching %d project director(ies)", len(dirs))

	flush := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), uproject.Ext) {
				continue
			}
			w.queue(ev, flush)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch error: %v", err)
		case <-flush:
			w.apply()
		}
	}
}

func (w *Watcher) queue(ev fsnotify.Event, flush chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.Name] |= ev.Op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case flush <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// apply handles the coalesced events. Removal wins over writes for a path.
func (w *Watcher) apply() {
	w.mu.Lock()
	pending := w.pending
	w.pending = map[string]fsnotify.Op{}
	w.mu.Unlock()

	cleanup := false
	for path, op := range pending {
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			cleanup = true
			continue
		}
		if op.Has(fsnotify.Write) || op.Has(fsnotify.Create) {
			if _, err := w.reg.RefreshPath(path); err != nil {
				w.log.WithField("path", path).Debugf("refresh skipped: %v", err)
			}
		}
	}
	if cleanup {
		n, err := w.reg.CleanupInvalid()
		if err != nil {
			w.log.Warnf("cleanup after removal failed: %v", err)
			return
		}
		if n > 0 {
			w.log.Infof("removed %d deleted project(s)", n)
		}
	}
}
