// Package engine keeps the registry of known Unreal Engine installations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/dreamunreal/ueman/internal/store"
	"github.com/dreamunreal/ueman/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Options configures a Registry
type Options struct {
	// Fs is the filesystem engines live on. Defaults to the OS filesystem.
	Fs afero.Fs
	// Roots are scanned by AutoDetect. Defaults to DefaultRoots.
	Roots []string
	// LockPath enables a cross-process lock around saves
	LockPath string
	// SkipInitialDetect disables the auto-detect run when no store exists yet
	SkipInitialDetect bool
	Logger            *logrus.Logger
	Now               func() time.Time
}

// Registry manages the collection of known engines
type Registry struct {
	fs      afero.Fs
	file    *store.File
	roots   []string
	log     *logrus.Logger
	now     func() time.Time
	detect  bool
	records []Record
	closed  bool
	mu      sync.RWMutex
}

// Open creates a Registry backed by the engines.json document at path and loads it
func Open(ctx context.Context, path string, opts Options) (*Registry, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	roots := opts.Roots
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var fileOpts []store.Option
	if opts.LockPath != "" {
		fileOpts = append(fileOpts, store.WithLock(opts.LockPath))
	}

	r := &Registry{
		fs:     fs,
		file:   store.NewFile(fs, path, fileOpts...),
		roots:  append([]string(nil), roots...),
		log:    logging.OrDiscard(opts.Logger),
		now:    now,
		detect: !opts.SkipInitialDetect,
	}
	if err := r.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load engine registry: %w", err)
	}
	return r, nil
}

// Close releases the in-memory state. Further mutations fail with errs.ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.closed = true
	return nil
}

// Load reads the persisted list and revalidates every entry against the
// filesystem. A missing store starts empty and triggers auto-detection; a
// corrupt one starts empty.
func (r *Registry) Load(ctx context.Context) error {
	var records []Record
	err := r.file.ReadJSON(&records)
	missing := errors.Is(err, errs.ErrNotFound)
	if err != nil {
		if !missing {
			r.log.WithField("path", r.file.Path()).Warnf("engine store unreadable, starting empty: %v", err)
		}
		records = nil
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = GenerateEngineID()
		}
		r.refresh(&records[i])
	}

	r.mu.Lock()
	r.records = records
	r.closed = false
	r.mu.Unlock()

	if missing && r.detect {
		if _, err := r.AutoDetect(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the full in-memory list
func (r *Registry) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveNoLock()
}

// saveNoLock persists without locking (caller must hold lock)
func (r *Registry) saveNoLock() error {
	records := r.records
	if records == nil {
		records = []Record{}
	}
	return r.file.WriteJSON(records)
}

// refresh recomputes derived fields. It never fails: filesystem errors
// make the engine invalid or its version unknown.
func (r *Registry) refresh(rec *Record) {
	rec.IsValid = validate(r.fs, rec.InstallPath)

	info := detectVersion(r.fs, rec.InstallPath)
	rec.ShortVersion = info.Short
	rec.FullVersion = info.Full
	rec.BuildVersionInfo = info.Build

	if strings.TrimSpace(rec.DisplayName) == "" {
		rec.DisplayName = defaultDisplayName(rec.InstallPath, info)
	}
}

func defaultDisplayName(installPath string, info version.Info) string {
	if info.Known() {
		return "Unreal Engine " + info.Display()
	}
	if base := filepath.Base(filepath.Clean(installPath)); base != "." && base != string(filepath.Separator) {
		return base
	}
	return "Unreal Engine"
}

func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

func (r *Registry) indexOfPathNoLock(path string) int {
	for i := range r.records {
		if samePath(r.records[i].InstallPath, path) {
			return i
		}
	}
	return -1
}

func (r *Registry) indexOfIDNoLock(id string) int {
	for i := range r.records {
		if r.records[i].ID == id {
			return i
		}
	}
	return -1
}

// Add registers a new engine at path. A path already registered
// (case-insensitively) is rejected with errs.ErrDuplicateEntry.
func (r *Registry) Add(displayName, path string) (Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Record{}, fmt.Errorf("%w: empty engine path", errs.ErrNotFound)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	rec := Record{
		ID:          GenerateEngineID(),
		DisplayName: strings.TrimSpace(displayName),
		InstallPath: path,
		CreatedAt:   r.now(),
	}
	r.refresh(&rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Record{}, errs.ErrClosed
	}
	if r.indexOfPathNoLock(path) >= 0 {
		return Record{}, fmt.Errorf("%w: engine path=%s", errs.ErrDuplicateEntry, path)
	}

	r.records = append(r.records, rec)
	if err := r.saveNoLock(); err != nil {
		// Rollback in-memory change
		r.records = r.records[:len(r.records)-1]
		return Record{}, err
	}

	r.log.WithField("path", path).Infof("added engine %s (%s)", rec.DisplayName, rec.Version())
	return rec, nil
}

// Update applies the editable fields of rec (display name, install path) to
// the stored record, revalidates it and persists.
func (r *Registry) Update(rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Record{}, errs.ErrClosed
	}

	i := r.indexOfIDNoLock(rec.ID)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: engine id=%s", errs.ErrNotFound, rec.ID)
	}
	if j := r.indexOfPathNoLock(rec.InstallPath); j >= 0 && j != i {
		return Record{}, fmt.Errorf("%w: engine path=%s", errs.ErrDuplicateEntry, rec.InstallPath)
	}

	prev := r.records[i]
	updated := prev
	updated.DisplayName = strings.TrimSpace(rec.DisplayName)
	updated.InstallPath = rec.InstallPath
	r.refresh(&updated)

	r.records[i] = updated
	if err := r.saveNoLock(); err != nil {
		r.records[i] = prev
		return Record{}, err
	}
	return updated, nil
}

// Remove deletes the engine with the given id
func (r *Registry) Remove(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Record{}, errs.ErrClosed
	}

	i := r.indexOfIDNoLock(id)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: engine id=%s", errs.ErrNotFound, id)
	}

	prev := r.records
	removed := r.records[i]
	next := make([]Record, 0, len(r.records)-1)
	next = append(next, r.records[:i]...)
	next = append(next, r.records[i+1:]...)
	r.records = next

	if err := r.saveNoLock(); err != nil {
		r.records = prev
		return Record{}, err
	}
	return removed, nil
}

// AutoDetect scans the configured roots for engine folders and registers every
// valid one not already known. It saves only when something was added.
func (r *Registry) AutoDetect(ctx context.Context) ([]Record, error) {
	r.mu.RLock()
	roots := append([]string(nil), r.roots...)
	r.mu.RUnlock()

	candidates, err := r.scanRoots(ctx, roots)
	if err != nil {
		return nil, err
	}

	var found []Record
	for _, path := range candidates {
		if err := errs.Cancelled(ctx); err != nil {
			return nil, err
		}
		rec := Record{ID: GenerateEngineID(), InstallPath: path, CreatedAt: r.now()}
		r.refresh(&rec)
		if !rec.IsValid {
			r.log.WithField("path", path).Debug("skipping invalid engine candidate")
			continue
		}
		found = append(found, rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errs.ErrClosed
	}

	before := len(r.records)
	var added []Record
	for _, rec := range found {
		if r.indexOfPathNoLock(rec.InstallPath) >= 0 {
			continue
		}
		r.records = append(r.records, rec)
		added = append(added, rec)
	}
	if len(added) == 0 {
		return nil, nil
	}
	if err := r.saveNoLock(); err != nil {
		r.records = r.records[:before]
		return nil, err
	}

	r.log.Infof("auto-detect registered %d engine(s)", len(added))
	return added, nil
}

// RefreshAll re-runs validation and version detection for every entry and persists
func (r *Registry) RefreshAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errs.ErrClosed
	}
	for i := range r.records {
		r.refresh(&r.records[i])
	}
	return r.saveNoLock()
}

// MarkUsed stamps LastUsed on the engine (selected, launched or made default)
func (r *Registry) MarkUsed(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Record{}, errs.ErrClosed
	}

	i := r.indexOfIDNoLock(id)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: engine id=%s", errs.ErrNotFound, id)
	}
	prev := r.records[i].LastUsed
	r.records[i].LastUsed = r.now()
	if err := r.saveNoLock(); err != nil {
		r.records[i].LastUsed = prev
		return Record{}, err
	}
	return r.records[i], nil
}

// List returns every engine in stored order
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}

// Get returns the engine with the given id
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOfIDNoLock(id); i >= 0 {
		return r.records[i], true
	}
	return Record{}, false
}

// GetValid returns valid engines, most recently used first
func (r *Registry) GetValid() []Record {
	r.mu.RLock()
	valid := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.IsValid {
			valid = append(valid, rec)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(valid, func(i, j int) bool {
		if !valid[i].LastUsed.Equal(valid[j].LastUsed) {
			return valid[i].LastUsed.After(valid[j].LastUsed)
		}
		if valid[i].DisplayName != valid[j].DisplayName {
			return valid[i].DisplayName < valid[j].DisplayName
		}
		return valid[i].ID < valid[j].ID
	})
	return valid
}

// GetByVersion returns the first engine whose short or full version equals v
func (r *Registry) GetByVersion(v string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ShortVersion == v || rec.FullVersion == v {
			return rec, true
		}
	}
	return Record{}, false
}

// GetByDisplayName returns the first engine with the given display name
func (r *Registry) GetByDisplayName(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.DisplayName == name {
			return rec, true
		}
	}
	return Record{}, false
}

// GetByMajorVersion returns valid engines of major version n, newest version first
func (r *Registry) GetByMajorVersion(n int) []Record {
	var out []Record
	for _, rec := range r.GetValid() {
		if major, ok := rec.Major(); ok && major == n {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return version.Compare(out[i].Version(), out[j].Version()) > 0
	})
	return out
}
