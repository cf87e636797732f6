// Package project keeps the registry of known Unreal projects.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreamunreal/ueman/internal/engine"
	"github.com/dreamunreal/ueman/internal/enrich"
	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/dreamunreal/ueman/internal/resolve"
	"github.com/dreamunreal/ueman/internal/store"
	"github.com/dreamunreal/ueman/internal/uproject"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// EngineSource supplies the engines project associations are resolved against.
// *engine.Registry satisfies it.
type EngineSource interface {
	GetValid() []engine.Record
}

// Options configures a Registry
type Options struct {
	// Fs is the filesystem projects live on. Defaults to the OS filesystem.
	Fs      afero.Fs
	Engines EngineSource
	// BackupPath receives a copy of the previous snapshot before each save
	BackupPath string
	// LegacyPath is the pipe-delimited projects.txt migrated on Open
	LegacyPath string
	LockPath   string
	// Enricher computes size and Git fields. Enrich is a no-op without one.
	Enricher *enrich.Enricher
	// OnChange is called after every committed mutation, outside the registry lock
	OnChange func(Change)
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Registry manages the collection of known projects
type Registry struct {
	fs       afero.Fs
	file     *store.File
	legacy   string
	engines  EngineSource
	enricher *enrich.Enricher
	onChange func(Change)
	log      *logrus.Logger
	now      func() time.Time
	records  []Record
	closed   bool
	mu       sync.RWMutex
}

// Open creates a Registry backed by the projects.json document at path,
// migrates the legacy list if needed and loads it.
func Open(path string, opts Options) (*Registry, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var fileOpts []store.Option
	if opts.BackupPath != "" {
		fileOpts = append(fileOpts, store.WithBackup(opts.BackupPath))
	}
	if opts.LockPath != "" {
		fileOpts = append(fileOpts, store.WithLock(opts.LockPath))
	}

	r := &Registry{
		fs:       fs,
		file:     store.NewFile(fs, path, fileOpts...),
		legacy:   opts.LegacyPath,
		engines:  opts.Engines,
		enricher: opts.Enricher,
		onChange: opts.OnChange,
		log:      logging.OrDiscard(opts.Logger),
		now:      now,
	}
	if _, err := r.MigrateLegacy(); err != nil {
		return nil, fmt.Errorf("failed to migrate legacy project list: %w", err)
	}
	if err := r.Load(); err != nil {
		return nil, fmt.Errorf("failed to load project registry: %w", err)
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

// Load reads the persisted list, drops entries whose project file is gone and
// rebuilds every remaining record from its descriptor. A missing or corrupt
// store starts empty. Dropped entries are written back on a best-effort basis.
func (r *Registry) Load() error {
	var doc document
	if err := r.file.ReadJSON(&doc); err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			r.log.WithField("path", r.file.Path()).Warnf("project store unreadable, starting empty: %v", err)
		}
		doc = document{}
	}

	engines := r.validEngines()
	records := make([]Record, 0, len(doc.Projects))
	var pruned []string
	for _, d := range doc.Projects {
		if strings.TrimSpace(d.ProjectPath) == "" || indexOfPath(records, d.ProjectPath) >= 0 {
			continue
		}
		rec, ok := r.build(d.ProjectPath, engines)
		if !ok {
			pruned = append(pruned, d.ProjectPath)
			continue
		}
		applyStored(&rec, d)
		records = append(records, rec)
	}

	r.mu.Lock()
	r.records = records
	r.closed = false
	if len(pruned) > 0 {
		if err := r.saveNoLock(); err != nil {
			r.log.WithField("path", r.file.Path()).Warnf("failed to persist pruned project list: %v", err)
		}
	}
	r.mu.Unlock()

	for _, p := range pruned {
		r.log.WithField("path", p).Info("dropping project whose file no longer exists")
		r.notify(Change{Kind: ChangePruned, Path: p})
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
	doc := document{
		Projects:  make([]dto, 0, len(r.records)),
		LastSaved: r.now(),
		Version:   storeVersion,
	}
	for _, rec := range r.records {
		doc.Projects = append(doc.Projects, toDTO(rec))
	}
	return r.file.WriteJSON(doc)
}

func (r *Registry) validEngines() []engine.Record {
	if r.engines == nil {
		return nil
	}
	return r.engines.GetValid()
}

func (r *Registry) notify(c Change) {
	if r.onChange != nil {
		r.onChange(c)
	}
}

// build reads the project file at path into a fresh record. It reports false
// only when the file does not exist; an unreadable descriptor yields a
// degraded record.
func (r *Registry) build(path string, engines []engine.Record) (Record, bool) {
	info, err := r.fs.Stat(path)
	if err != nil || info.IsDir() {
		return Record{}, false
	}

	md, err := uproject.Read(r.fs, path)
	if err != nil {
		r.log.WithField("path", path).Debugf("project descriptor unreadable: %v", err)
		md = uproject.Degraded()
	}

	rec := Record{
		ProjectFilePath:  path,
		FriendlyName:     md.FriendlyName,
		ProjectDirectory: filepath.Dir(path),
		Description:      md.Description,
		Category:         md.Category,
		Modules:          md.Modules,
		Plugins:          md.Plugins,
		TargetPlatforms:  md.TargetPlatforms,
		LastModified:     info.ModTime().UTC(),
		IsValid:          true,
	}
	if md.Degraded {
		rec.EngineAssociation = uproject.UnknownAssociation
	} else {
		res := resolve.Association(engines, md.EngineAssociation)
		rec.EngineAssociation = res.Association
		rec.AssociatedEngineID = res.EngineID
	}
	rec.DisplayName = defaultDisplayName(rec)
	return rec, true
}

// applyStored carries the user-owned fields of a persisted entry onto a
// freshly built record.
func applyStored(rec *Record, d dto) {
	if name := strings.TrimSpace(d.DisplayName); name != "" {
		rec.DisplayName = name
	}
	if dir := strings.TrimSpace(d.ProjectDirectory); dir != "" {
		rec.ProjectDirectory = dir
	}
	rec.LastUsed = d.LastUsed
	rec.IsFavorite = d.IsFavorite
	rec.ProjectSizeBytes = d.ProjectSize
}

// carry copies user-owned and enrichment fields from prev onto a rebuilt record
func carry(rec *Record, prev Record) {
	rec.DisplayName = prev.DisplayName
	rec.ProjectDirectory = prev.ProjectDirectory
	rec.LastUsed = prev.LastUsed
	rec.IsFavorite = prev.IsFavorite
	rec.ProjectSizeBytes = prev.ProjectSizeBytes
	rec.IsGitEnabled = prev.IsGitEnabled
	rec.GitBranch = prev.GitBranch
	rec.GitFolderSizeBytes = prev.GitFolderSizeBytes
}

func defaultDisplayName(rec Record) string {
	if name := strings.TrimSpace(rec.FriendlyName); name != "" {
		return name
	}
	return rec.Stem()
}

func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

func indexOfPath(records []Record, path string) int {
	for i := range records {
		if samePath(records[i].ProjectFilePath, path) {
			return i
		}
	}
	return -1
}

// normalize turns user input into an absolute project file path. A directory
// resolves to the first .uproject file inside it.
func (r *Registry) normalize(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty project path", errs.ErrNotFound)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(path), uproject.Ext) {
			return "", fmt.Errorf("%w: not a %s file: %s", errs.ErrNotFound, uproject.Ext, path)
		}
		return path, nil
	}

	entries, err := afero.ReadDir(r.fs, path)
	if err != nil {
		return "", fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), uproject.Ext) {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %s file in %s", errs.ErrNotFound, uproject.Ext, path)
}

// Add registers the project at path. A path already registered
// (case-insensitively) is rejected with errs.ErrDuplicateEntry.
func (r *Registry) Add(path, displayName string) (Record, error) {
	path, err := r.normalize(path)
	if err != nil {
		return Record{}, err
	}

	rec, ok := r.build(path, r.validEngines())
	if !ok {
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	if name := strings.TrimSpace(displayName); name != "" {
		rec.DisplayName = name
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Record{}, errs.ErrClosed
	}
	if indexOfPath(r.records, path) >= 0 {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrDuplicateEntry, path)
	}
	r.records = append(r.records, rec)
	if err := r.saveNoLock(); err != nil {
		// Rollback in-memory change
		r.records = r.records[:len(r.records)-1]
		r.mu.Unlock()
		return Record{}, err
	}
	r.mu.Unlock()

	r.log.WithField("path", path).Infof("added project %s", rec.DisplayName)
	r.notify(Change{Kind: ChangeAdded, Path: path})
	return rec, nil
}

// Remove forgets the project at path. The project files are left alone.
func (r *Registry) Remove(path string) (Record, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Record{}, errs.ErrClosed
	}
	i := indexOfPath(r.records, path)
	if i < 0 {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}

	prev := r.records
	removed := r.records[i]
	next := make([]Record, 0, len(r.records)-1)
	next = append(next, r.records[:i]...)
	next = append(next, r.records[i+1:]...)
	r.records = next
	if err := r.saveNoLock(); err != nil {
		r.records = prev
		r.mu.Unlock()
		return Record{}, err
	}
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeRemoved, Path: removed.ProjectFilePath})
	return removed, nil
}

// CleanupInvalid removes every project whose file no longer exists, persists
// the reduced list and returns how many were removed.
func (r *Registry) CleanupInvalid() (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, errs.ErrClosed
	}

	prev := r.records
	kept := make([]Record, 0, len(r.records))
	var removed []string
	for _, rec := range r.records {
		if ok, err := afero.Exists(r.fs, rec.ProjectFilePath); err == nil && ok {
			kept = append(kept, rec)
			continue
		}
		removed = append(removed, rec.ProjectFilePath)
	}
	if len(removed) == 0 {
		r.mu.Unlock()
		return 0, nil
	}

	r.records = kept
	if err := r.saveNoLock(); err != nil {
		r.records = prev
		r.mu.Unlock()
		return 0, err
	}
	r.mu.Unlock()

	for _, p := range removed {
		r.notify(Change{Kind: ChangePruned, Path: p})
	}
	r.log.Infof("removed %d missing project(s)", len(removed))
	return len(removed), nil
}

// Refresh rebuilds every record from its descriptor, dropping projects whose
// file is gone, and persists.
func (r *Registry) Refresh() error {
	engines := r.validEngines()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errs.ErrClosed
	}
	prev := r.records
	next := make([]Record, 0, len(r.records))
	var pruned []string
	for _, old := range r.records {
		rec, ok := r.build(old.ProjectFilePath, engines)
		if !ok {
			pruned = append(pruned, old.ProjectFilePath)
			continue
		}
		carry(&rec, old)
		next = append(next, rec)
	}
	r.records = next
	if err := r.saveNoLock(); err != nil {
		r.records = prev
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	for _, p := range pruned {
		r.notify(Change{Kind: ChangePruned, Path: p})
	}
	return nil
}

// RefreshPath rebuilds the single record at path. A project whose file is gone
// is removed.
func (r *Registry) RefreshPath(path string) (Record, error) {
	engines := r.validEngines()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Record{}, errs.ErrClosed
	}
	i := indexOfPath(r.records, path)
	if i < 0 {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	old := r.records[i]
	rec, ok := r.build(old.ProjectFilePath, engines)
	if !ok {
		r.mu.Unlock()
		if _, err := r.CleanupInvalid(); err != nil {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	carry(&rec, old)
	r.records[i] = rec
	if err := r.saveNoLock(); err != nil {
		r.records[i] = old
		r.mu.Unlock()
		return Record{}, err
	}
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeUpdated, Path: rec.ProjectFilePath})
	return rec, nil
}

// update applies fn to the record at path and persists, rolling back on failure
func (r *Registry) update(path string, fn func(*Record)) (Record, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Record{}, errs.ErrClosed
	}
	i := indexOfPath(r.records, path)
	if i < 0 {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%w: project path=%s", errs.ErrNotFound, path)
	}
	prev := r.records[i]
	updated := prev
	fn(&updated)
	r.records[i] = updated
	if err := r.saveNoLock(); err != nil {
		r.records[i] = prev
		r.mu.Unlock()
		return Record{}, err
	}
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeUpdated, Path: updated.ProjectFilePath})
	return updated, nil
}

// SetFavorite marks or unmarks the project at path as a favorite
func (r *Registry) SetFavorite(path string, favorite bool) (Record, error) {
	return r.update(path, func(rec *Record) { rec.IsFavorite = favorite })
}

// MarkUsed stamps LastUsed on the project at path
func (r *Registry) MarkUsed(path string) (Record, error) {
	now := r.now()
	return r.update(path, func(rec *Record) { rec.LastUsed = &now })
}

// Rename sets the display name. An empty name restores the default.
func (r *Registry) Rename(path, displayName string) (Record, error) {
	return r.update(path, func(rec *Record) {
		rec.DisplayName = strings.TrimSpace(displayName)
		if rec.DisplayName == "" {
			rec.DisplayName = defaultDisplayName(*rec)
		}
	})
}

// List returns every project in stored order
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}

// Get returns the project at path
func (r *Registry) Get(path string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOfPath(r.records, path); i >= 0 {
		return r.records[i], true
	}
	return Record{}, false
}

// Paths returns the project file paths sorted case-insensitively
func (r *Registry) Paths() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		paths = append(paths, rec.ProjectFilePath)
	}
	r.mu.RUnlock()
	sort.Slice(paths, func(i, j int) bool { return strings.ToLower(paths[i]) < strings.ToLower(paths[j]) })
	return paths
}
