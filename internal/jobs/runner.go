package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/zotseek/zotseek/internal/zotero"
)

const defaultSliceSize = 50

// Runner executes tag jobs against the library. Each Apply call processes
// one bounded slice of the job's pending keys and persists the checkpoint
// before returning, so callers can stop and resume at any slice boundary.
type Runner struct {
	store     *Store
	source    zotero.Source
	writer    zotero.Writer
	sliceSize int
}

// NewRunner creates a job runner. sliceSize bounds how many items one
// Apply call touches (0 uses the default).
func NewRunner(store *Store, source zotero.Source, writer zotero.Writer, sliceSize int) *Runner {
	if sliceSize <= 0 {
		sliceSize = defaultSliceSize
	}
	return &Runner{store: store, source: source, writer: writer, sliceSize: sliceSize}
}

// Plan creates a pending job over the given item keys. Nothing is written
// to the library until Apply runs.
func (r *Runner) Plan(ctx context.Context, spec TagSpec, itemKeys []string) (*Job, error) {
	if len(spec.AddTags) == 0 && len(spec.RemoveTags) == 0 {
		return nil, errors.New("jobs: empty tag spec")
	}
	if len(itemKeys) == 0 {
		return nil, errors.New("jobs: no items to process")
	}
	return r.store.Create(ctx, spec, itemKeys)
}

// Apply processes up to one slice of the job's pending keys. Per-item
// failures move the key to the failed set and continue; the checkpoint is
// saved before Apply returns, even when the context is cancelled mid-slice.
// The returned job reflects the new checkpoint. Completed jobs are a no-op.
func (r *Runner) Apply(ctx context.Context, jobID string) (*Job, error) {
	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusCompleted {
		return job, nil
	}

	n := r.sliceSize
	if n > len(job.PendingKeys) {
		n = len(job.PendingKeys)
	}
	slice := job.PendingKeys[:n]

	job.Status = StatusRunning
	done := 0
	for _, key := range slice {
		if ctx.Err() != nil {
			break
		}
		if err := r.applyOne(ctx, key, job.Spec); err != nil {
			job.FailedKeys = append(job.FailedKeys, key)
		} else {
			job.ProcessedKeys = append(job.ProcessedKeys, key)
		}
		done++
	}
	job.PendingKeys = job.PendingKeys[done:]

	if len(job.PendingKeys) == 0 {
		if len(job.ProcessedKeys) == 0 && len(job.FailedKeys) > 0 {
			job.Status = StatusFailed
		} else {
			job.Status = StatusCompleted
		}
	}

	// The save must not share the caller's cancellation: a cancelled ctx
	// would abort it and lose the slice's progress.
	if err := r.store.Save(context.WithoutCancel(ctx), job); err != nil {
		return nil, err
	}
	if ctx.Err() != nil && len(job.PendingKeys) > 0 {
		return job, ctx.Err()
	}
	return job, nil
}

// Run drives a job to a terminal state, one slice at a time.
func (r *Runner) Run(ctx context.Context, jobID string) (*Job, error) {
	for {
		job, err := r.Apply(ctx, jobID)
		if err != nil {
			return job, err
		}
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			return job, nil
		}
	}
}

// applyOne rewrites one item's tags. The item is re-fetched first so the
// write carries the current version and starts from the current tag list.
func (r *Runner) applyOne(ctx context.Context, key string, spec TagSpec) error {
	item, err := r.source.Item(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}

	tags := rewriteTags(item.Data.Tags, spec)
	if err := r.writer.UpdateItemTags(ctx, key, item.Version, tags); err != nil {
		return fmt.Errorf("update tags on %s: %w", key, err)
	}
	return nil
}

// rewriteTags applies removals then additions, preserving existing order
// and skipping duplicates.
func rewriteTags(current []zotero.Tag, spec TagSpec) []zotero.Tag {
	remove := make(map[string]bool, len(spec.RemoveTags))
	for _, t := range spec.RemoveTags {
		remove[t] = true
	}

	result := make([]zotero.Tag, 0, len(current)+len(spec.AddTags))
	present := make(map[string]bool)
	for _, t := range current {
		if remove[t.Tag] || present[t.Tag] {
			continue
		}
		present[t.Tag] = true
		result = append(result, t)
	}
	for _, t := range spec.AddTags {
		if present[t] {
			continue
		}
		present[t] = true
		result = append(result, zotero.Tag{Tag: t})
	}
	return result
}
