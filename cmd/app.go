package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreamunreal/ueman/internal/engine"
	"github.com/dreamunreal/ueman/internal/enrich"
	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/launch"
	"github.com/dreamunreal/ueman/internal/paths"
	"github.com/dreamunreal/ueman/internal/project"
	"github.com/dreamunreal/ueman/internal/settings"
	"github.com/dreamunreal/ueman/internal/sizecache"
	"github.com/spf13/afero"
)

// app holds the services one command invocation works with
type app struct {
	fs       afero.Fs
	layout   paths.Layout
	engines  *engine.Registry
	projects *project.Registry
	settings *settings.Store
	cache    *sizecache.Cache
	launcher *launch.Launcher
}

type appOptions struct {
	// sizeCache opens sizecache.db and wires an enricher into the project registry
	sizeCache bool
	// skipDetect suppresses the first-run engine scan
	skipDetect bool
	// onChange receives project registry changes
	onChange func(project.Change)
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	layout := cfg.Layout()
	if err := os.MkdirAll(layout.Dir, 0o755); err != nil {
		return nil, errs.Persistence(layout.Dir, err)
	}

	a := &app{
		fs:       afero.NewOsFs(),
		layout:   layout,
		launcher: launch.New(log),
	}

	lock := func(path string) string {
		if cfg.LockStores {
			return layout.Lock(path)
		}
		return ""
	}

	var err error
	a.engines, err = engine.Open(ctx, layout.Engines(), engine.Options{
		Fs:                a.fs,
		Roots:             cfg.EngineRoots,
		LockPath:          lock(layout.Engines()),
		SkipInitialDetect: opts.skipDetect,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}

	var enricher *enrich.Enricher
	if opts.sizeCache {
		a.cache, err = sizecache.Open(layout.SizeCache(), cfg.SizeCacheTTL)
		if err != nil {
			log.Warnf("size cache unavailable, sizes will be recomputed: %v", err)
		}
		enricher = enrich.New(enrich.Options{Fs: a.fs, Cache: a.cache, Workers: cfg.Workers, Logger: log})
	}

	a.projects, err = project.Open(layout.Projects(), project.Options{
		Fs:         a.fs,
		Engines:    a.engines,
		BackupPath: layout.ProjectsBackup(),
		LegacyPath: layout.LegacyProjects(),
		LockPath:   lock(layout.Projects()),
		Enricher:   enricher,
		OnChange:   opts.onChange,
		Logger:     log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.settings, err = settings.Open(a.fs, layout.Settings(), log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.projects != nil {
		_ = a.projects.Close()
	}
	if a.engines != nil {
		_ = a.engines.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Debugf("closing size cache: %v", err)
		}
	}
}

// findEngine looks an engine up by id, display name or version
func (a *app) findEngine(ref string) (engine.Record, error) {
	ref = strings.TrimSpace(ref)
	if rec, ok := a.engines.Get(ref); ok {
		return rec, nil
	}
	if rec, ok := a.engines.GetByDisplayName(ref); ok {
		return rec, nil
	}
	if rec, ok := a.engines.GetByVersion(ref); ok {
		return rec, nil
	}
	for _, rec := range a.engines.List() {
		if strings.HasPrefix(rec.ID, ref) && len(ref) >= 8 {
			return rec, nil
		}
	}
	return engine.Record{}, fmt.Errorf("%w: engine %q", errs.ErrNotFound, ref)
}

// findProject looks a project up by its .uproject path or its directory
func (a *app) findProject(ref string) (project.Record, error) {
	ref = strings.TrimSpace(ref)
	if abs, err := filepath.Abs(ref); err == nil {
		ref = abs
	}
	if rec, ok := a.projects.Get(ref); ok {
		return rec, nil
	}
	for _, rec := range a.projects.List() {
		if strings.EqualFold(filepath.Clean(rec.ProjectDirectory), filepath.Clean(ref)) {
			return rec, nil
		}
	}
	return project.Record{}, fmt.Errorf("%w: project %q", errs.ErrNotFound, ref)
}

// engineFor returns the engine a project is associated with, or the one named by ref
func (a *app) engineFor(p project.Record, ref string) (engine.Record, error) {
	if ref != "" {
		return a.findEngine(ref)
	}
	if p.AssociatedEngineID != "" {
		if rec, ok := a.engines.Get(p.AssociatedEngineID); ok {
			return rec, nil
		}
	}
	return engine.Record{}, fmt.Errorf("%w: no installed engine matches association %q (use --engine)", errs.ErrNotFound, p.EngineAssociation)
}
