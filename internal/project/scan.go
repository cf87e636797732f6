package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/uproject"
	"github.com/spf13/afero"
)

// DefaultScanDepth bounds how far below the scan root project files are looked for
const DefaultScanDepth = 3

// skipDirs are build and cache folders that never hold a project descriptor
var skipDirs = map[string]bool{
	".git":             true,
	"binaries":         true,
	"deriveddatacache": true,
	"intermediate":     true,
	"saved":            true,
}

// Scan walks root up to depth directory levels, registers every .uproject file
// not already known and persists once. It returns the newly added records.
// A cancelled scan persists nothing.
func (r *Registry) Scan(ctx context.Context, root string, depth int) ([]Record, error) {
	if depth < 0 {
		depth = DefaultScanDepth
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	var found []string
	err := afero.Walk(r.fs, root, func(path string, info os.FileInfo, err error) error {
		if cerr := errs.Cancelled(ctx); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			if path != root && (skipDirs[strings.ToLower(info.Name())] || levels(root, path) > depth) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), uproject.Ext) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scan root=%s", errs.ErrNotFound, root)
		}
		return nil, err
	}

	engines := r.validEngines()
	var candidates []Record
	for _, path := range found {
		if rec, ok := r.build(path, engines); ok {
			candidates = append(candidates, rec)
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errs.ErrClosed
	}
	before := len(r.records)
	var added []Record
	for _, rec := range candidates {
		if indexOfPath(r.records, rec.ProjectFilePath) >= 0 {
			continue
		}
		r.records = append(r.records, rec)
		added = append(added, rec)
	}
	if len(added) == 0 {
		r.mu.Unlock()
		return nil, nil
	}
	if err := r.saveNoLock(); err != nil {
		r.records = r.records[:before]
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	for _, rec := range added {
		r.notify(Change{Kind: ChangeAdded, Path: rec.ProjectFilePath})
	}
	r.log.WithField("root", root).Infof("scan registered %d project(s)", len(added))
	return added, nil
}

// levels counts the directories between root and path
func levels(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
