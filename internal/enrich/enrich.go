// Package enrich computes the slow, derived project fields (directory size,
// Git presence) off the caller's goroutine. Jobs return values; merging them
// into shared records is left to the owner of those records.
package enrich

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/dreamunreal/ueman/internal/sizecache"
	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// DefaultWorkers bounds concurrent directory walks
const DefaultWorkers = 4

// Target identifies one project to enrich
type Target struct {
	ProjectFilePath string
	Dir             string
}

// Result carries the computed fields for one Target
type Result struct {
	ProjectFilePath string
	SizeBytes       int64
	IsGitEnabled    bool
	GitBranch       string
	GitSizeBytes    int64
	FromCache       bool
}

// Options configures an Enricher
type Options struct {
	Fs      afero.Fs
	Cache   *sizecache.Cache
	Workers int
	Logger  *logrus.Logger
}

// Enricher runs enrichment jobs
type Enricher struct {
	fs      afero.Fs
	cache   *sizecache.Cache
	workers int
	log     *logrus.Logger
}

// New creates an Enricher
func New(opts Options) *Enricher {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Enricher{fs: fs, cache: opts.Cache, workers: workers, log: logging.OrDiscard(opts.Logger)}
}

// Run enriches every target concurrently and returns one Result per target,
// ordered by project file path. Cancellation aborts the whole batch with
// errs.ErrCancelled and no results.
func (e *Enricher) Run(ctx context.Context, targets []Target) ([]Result, error) {
	p := pool.NewWithResults[Result]().WithContext(ctx).WithMaxGoroutines(e.workers)
	for _, t := range targets {
		p.Go(func(ctx context.Context) (Result, error) {
			return e.Project(ctx, t)
		})
	}
	results, err := p.Wait()
	if cerr := errs.Cancelled(ctx); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProjectFilePath < results[j].ProjectFilePath
	})
	return results, nil
}

// Project computes the result for a single target. Only cancellation is
// reported as an error; unreadable directories yield zero values.
func (e *Enricher) Project(ctx context.Context, t Target) (Result, error) {
	if err := errs.Cancelled(ctx); err != nil {
		return Result{}, err
	}

	if e.cache != nil {
		entry, ok, err := e.cache.Get(ctx, t.Dir)
		if err != nil {
			e.log.WithField("path", t.Dir).Debugf("size cache lookup failed: %v", err)
		} else if ok {
			return Result{
				ProjectFilePath: t.ProjectFilePath,
				SizeBytes:       entry.SizeBytes,
				IsGitEnabled:    entry.IsGitEnabled,
				GitBranch:       entry.GitBranch,
				GitSizeBytes:    entry.GitSizeBytes,
				FromCache:       true,
			}, nil
		}
	}

	res := Result{ProjectFilePath: t.ProjectFilePath}

	size, err := DirSize(ctx, e.fs, t.Dir)
	if err != nil {
		if errs.IsCancelled(err) {
			return Result{}, err
		}
		e.log.WithField("path", t.Dir).Debugf("size walk failed: %v", err)
	}
	res.SizeBytes = size

	res.IsGitEnabled, res.GitBranch = e.gitStatus(t.Dir)
	if res.IsGitEnabled {
		gitSize, err := DirSize(ctx, e.fs, filepath.Join(t.Dir, ".git"))
		if err != nil && errs.IsCancelled(err) {
			return Result{}, err
		}
		res.GitSizeBytes = gitSize
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, sizecache.Entry{
			Path:         t.Dir,
			SizeBytes:    res.SizeBytes,
			IsGitEnabled: res.IsGitEnabled,
			GitSizeBytes: res.GitSizeBytes,
			GitBranch:    res.GitBranch,
		}); err != nil {
			e.log.WithField("path", t.Dir).Debugf("size cache store failed: %v", err)
		}
	}
	return res, nil
}

// gitStatus reports whether dir is a Git working tree and its current branch.
// The branch is best effort and empty for detached heads or unreadable repos.
func (e *Enricher) gitStatus(dir string) (bool, string) {
	if ok, err := afero.Exists(e.fs, filepath.Join(dir, ".git")); err != nil || !ok {
		return false, ""
	}
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return true, ""
	}
	head, err := repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return true, ""
	}
	return true, head.Name().Short()
}

// DirSize sums the sizes of all regular files under dir. The walk checks ctx
// on every entry. Unreadable subdirectories are skipped; a missing dir is an
// errs.ErrNotFound.
func DirSize(ctx context.Context, fs afero.Fs, dir string) (int64, error) {
	var total int64
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if cerr := errs.Cancelled(ctx); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, errors.Join(errs.ErrNotFound, err)
		}
		return total, err
	}
	return total, nil
}
