package project

import (
	"context"

	"github.com/dreamunreal/ueman/internal/enrich"
	"github.com/dreamunreal/ueman/internal/errs"
)

// Enrich computes size and Git fields for every project concurrently and
// merges the results in a single pass under the registry lock, then persists.
// A cancelled run changes nothing.
func (r *Registry) Enrich(ctx context.Context) error {
	if r.enricher == nil {
		return nil
	}

	r.mu.RLock()
	targets := make([]enrich.Target, 0, len(r.records))
	for _, rec := range r.records {
		targets = append(targets, enrich.Target{ProjectFilePath: rec.ProjectFilePath, Dir: rec.ProjectDirectory})
	}
	r.mu.RUnlock()

	results, err := r.enricher.Run(ctx, targets)
	if err != nil {
		return err
	}
	return r.ApplyEnrichment(results)
}

// ApplyEnrichment merges computed results into the matching records. Results
// for projects removed in the meantime are dropped.
func (r *Registry) ApplyEnrichment(results []enrich.Result) error {
	if len(results) == 0 {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errs.ErrClosed
	}
	prev := append([]Record(nil), r.records...)
	var changed []string
	for _, res := range results {
		i := indexOfPath(r.records, res.ProjectFilePath)
		if i < 0 {
			continue
		}
		rec := &r.records[i]
		rec.ProjectSizeBytes = res.SizeBytes
		rec.IsGitEnabled = res.IsGitEnabled
		rec.GitBranch = res.GitBranch
		rec.GitFolderSizeBytes = res.GitSizeBytes
		changed = append(changed, rec.ProjectFilePath)
	}
	if len(changed) == 0 {
		r.mu.Unlock()
		return nil
	}
	if err := r.saveNoLock(); err != nil {
		r.records = prev
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	for _, p := range changed {
		r.notify(Change{Kind: ChangeEnriched, Path: p})
	}
	return nil
}
