package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zotseek/zotseek/internal/config"
	"github.com/zotseek/zotseek/internal/extract"
	"github.com/zotseek/zotseek/internal/fingerprint"
	"github.com/zotseek/zotseek/internal/vectordb"
	"github.com/zotseek/zotseek/internal/zotero"
)

// ErrSyncBusy is returned when a sync pass is already in flight. Triggers
// arriving during a pass coalesce into this no-op rather than queueing.
var ErrSyncBusy = errors.New("indexer: sync already in progress")

// State names the stage a pass is in.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateDiffing     State = "diffing"
	StateEmbedding   State = "embedding"
	StateReconciling State = "reconciling"
	StateFailed      State = "failed"
)

// Params controls one sync pass.
type Params struct {
	// ForceFullRebuild clears the fingerprint store and vector index
	// before enumerating, forcing every item through the "new" path. The
	// escape hatch for index corruption or an embedding model change.
	ForceFullRebuild bool `json:"force_rebuild"`

	// Limit caps how many items are enumerated (0 = no cap).
	Limit int `json:"limit"`

	// ExtractFulltext downloads and extracts the best attachment of each
	// new or changed item.
	ExtractFulltext bool `json:"fulltext"`
}

// Stats is the result record of a pass.
type Stats struct {
	TotalItems     int           `json:"total_items"`
	ProcessedItems int           `json:"processed_items"`
	AddedItems     int           `json:"added_items"`
	UpdatedItems   int           `json:"updated_items"`
	SkippedItems   int           `json:"skipped_items"`
	Errors         int           `json:"errors"`
	Duration       time.Duration `json:"duration"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
}

// BatchEmbedder is the slice of the embedding gateway the engine needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProgressFunc is called as a pass advances. stage is the current State;
// done/total count items within that stage (total 0 when unknown).
type ProgressFunc func(stage State, done, total int)

// Engine orchestrates sync passes: enumerate, diff against fingerprints,
// embed changes in batches, upsert, and reconcile orphans. Exactly one
// pass runs at a time; the guard is owned here, not by callers.
type Engine struct {
	source       zotero.Source
	embedder     BatchEmbedder
	store        vectordb.VectorStore
	fingerprints *fingerprint.Store
	states       *StateStore
	extractors   *extract.Registry
	cfg          config.IndexConfig

	mu       sync.Mutex
	state    State
	running  bool
	progress ProgressFunc
	now      func() time.Time
}

// NewEngine creates a sync engine.
func NewEngine(
	source zotero.Source,
	embedder BatchEmbedder,
	store vectordb.VectorStore,
	fingerprints *fingerprint.Store,
	states *StateStore,
	extractors *extract.Registry,
	cfg config.IndexConfig,
) *Engine {
	return &Engine{
		source:       source,
		embedder:     embedder,
		store:        store,
		fingerprints: fingerprints,
		states:       states,
		extractors:   extractors,
		cfg:          cfg,
		state:        StateIdle,
		now:          time.Now,
	}
}

// SetProgress installs a progress callback. Must be called before Run.
func (e *Engine) SetProgress(fn ProgressFunc) { e.progress = fn }

// State returns the stage of the in-flight pass, or the terminal state of
// the last one.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Running reports whether a pass is in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// tryAcquire is the single atomic guard both the scheduler trigger and
// manual triggers go through.
func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) report(stage State, done, total int) {
	if e.progress != nil {
		e.progress(stage, done, total)
	}
}

// Run executes one sync pass. It returns ErrSyncBusy if a pass is already
// in flight. A structural failure (source unreachable, storage broken)
// aborts the pass and leaves the persisted sync state untouched; per-item
// failures are counted in the returned stats and do not abort.
func (e *Engine) Run(ctx context.Context, params Params) (*Stats, error) {
	if !e.tryAcquire() {
		return nil, ErrSyncBusy
	}
	defer e.release()

	stats := &Stats{StartTime: e.now().UTC()}

	fail := func(err error) (*Stats, error) {
		e.setState(StateFailed)
		stats.EndTime = e.now().UTC()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
		return stats, err
	}

	if params.ForceFullRebuild {
		if err := e.store.Clear(ctx); err != nil {
			return fail(fmt.Errorf("clear vector index: %w", err))
		}
		if err := e.fingerprints.Clear(ctx); err != nil {
			return fail(fmt.Errorf("clear fingerprints: %w", err))
		}
	}

	// ENUMERATING: page through the source until a short page.
	e.setState(StateEnumerating)
	items, err := e.enumerate(ctx, params.Limit)
	if err != nil {
		return fail(fmt.Errorf("enumerate library: %w", err))
	}
	stats.TotalItems = len(items)

	// DIFFING: normalize, hash, and classify against the fingerprints.
	e.setState(StateDiffing)
	known, err := e.fingerprints.All(ctx)
	if err != nil {
		return fail(fmt.Errorf("load fingerprints: %w", err))
	}

	type queued struct {
		item  *zotero.Item
		doc   Document
		hash  string
		isNew bool
	}
	var queue []queued
	seen := make(map[string]bool, len(items))

	for i := range items {
		item := &items[i]
		seen[item.Key] = true

		doc, ftErr := e.normalizeItem(ctx, item, params.ExtractFulltext)
		if ftErr != nil {
			// Fulltext is best-effort: count the failure, index the item
			// metadata-only.
			stats.Errors++
		}
		hash := ComputeHash(doc.Text)

		prior, exists := known[item.Key]
		switch {
		case !exists:
			queue = append(queue, queued{item: item, doc: doc, hash: hash, isNew: true})
		case prior.ContentHash != hash:
			queue = append(queue, queued{item: item, doc: doc, hash: hash})
		default:
			stats.SkippedItems++
		}
		e.report(StateDiffing, i+1, len(items))
	}

	// EMBEDDING: batch the queue through the gateway and upsert. The
	// fingerprint for an item is written only after its upsert succeeds,
	// so a crash can leave un-indexed items (re-detected as new next
	// pass) but never a fingerprint without an index entry.
	e.setState(StateEmbedding)
	batchSize := e.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 50
	}

	embedded := 0
	for start := 0; start < len(queue); start += batchSize {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}

		end := start + batchSize
		if end > len(queue) {
			end = len(queue)
		}
		batch := queue[start:end]

		texts := make([]string, len(batch))
		for i, q := range batch {
			texts[i] = q.doc.Text
		}

		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			// Retry budget exhausted: the failure covers every item in
			// the batch. Later batches still run.
			stats.Errors += len(batch)
			embedded += len(batch)
			e.report(StateEmbedding, embedded, len(queue))
			continue
		}

		for i, q := range batch {
			entry := vectordb.Entry{
				ID:        q.item.Key,
				Embedding: vectors[i],
				Document:  q.doc.Text,
				Metadata:  q.doc.Metadata,
			}
			if err := e.store.Upsert(ctx, entry); err != nil {
				stats.Errors++
				continue
			}
			if err := e.fingerprints.Put(ctx, fingerprint.Record{
				ItemKey:     q.item.Key,
				ContentHash: q.hash,
				VersionSeen: q.item.Version,
			}); err != nil {
				// The index entry exists but the fingerprint write
				// failed; the item is re-detected as changed next pass,
				// which is safe.
				stats.Errors++
				continue
			}
			if q.isNew {
				stats.AddedItems++
			} else {
				stats.UpdatedItems++
			}
			embedded++
			e.report(StateEmbedding, embedded, len(queue))
		}
	}
	stats.ProcessedItems = stats.AddedItems + stats.UpdatedItems

	// RECONCILING: fingerprinted items absent from the enumeration are
	// orphans; drop them from both stores. Skipped when the enumeration
	// was truncated by Limit, because absence proves nothing then.
	e.setState(StateReconciling)
	if params.Limit == 0 {
		var orphans []string
		for key := range known {
			if !seen[key] {
				orphans = append(orphans, key)
			}
		}
		if len(orphans) > 0 {
			if err := e.store.Delete(ctx, orphans...); err != nil {
				return fail(fmt.Errorf("delete orphans from index: %w", err))
			}
			if err := e.fingerprints.Delete(ctx, orphans...); err != nil {
				return fail(fmt.Errorf("delete orphan fingerprints: %w", err))
			}
		}
	}

	stats.EndTime = e.now().UTC()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := e.states.Set(ctx, stats.EndTime, *stats); err != nil {
		return fail(fmt.Errorf("save sync state: %w", err))
	}

	e.setState(StateIdle)
	return stats, nil
}

// enumerate pages through the source's top-level items.
func (e *Engine) enumerate(ctx context.Context, limit int) ([]zotero.Item, error) {
	const pageSize = 100

	var items []zotero.Item
	for offset := 0; ; offset += pageSize {
		size := pageSize
		if limit > 0 && limit-len(items) < size {
			size = limit - len(items)
		}
		if size == 0 {
			break
		}

		page, err := e.source.Items(ctx, offset, size)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		e.report(StateEnumerating, len(items), 0)

		if len(page) < size {
			break
		}
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

// normalizeItem builds the normalized document, optionally extracting the
// best attachment's text. A fulltext failure is returned alongside the
// metadata-only document; the caller counts it but still indexes the item.
func (e *Engine) normalizeItem(ctx context.Context, item *zotero.Item, extractFulltext bool) (Document, error) {
	var attachmentText string
	var ftErr error
	if extractFulltext && e.extractors != nil {
		attachmentText, ftErr = e.fetchFulltext(ctx, item)
	}
	return Normalize(item, attachmentText, e.cfg.MaxTextLength), ftErr
}

// fetchFulltext returns the extracted text of the item's best extractable
// attachment. Having no extractable attachment is not an error; a failed
// children fetch, download, or extraction is.
func (e *Engine) fetchFulltext(ctx context.Context, item *zotero.Item) (string, error) {
	att, err := zotero.BestAttachment(ctx, e.source, item, e.extractors.Supports)
	if err != nil {
		return "", fmt.Errorf("list attachments of %s: %w", item.Key, err)
	}
	if att == nil {
		return "", nil
	}
	if !extract.EligibleFilename(att.Filename, e.cfg.FulltextInclude, e.cfg.FulltextExclude) {
		return "", nil
	}
	data, err := e.source.File(ctx, att.Key)
	if err != nil {
		return "", fmt.Errorf("download attachment %s: %w", att.Key, err)
	}
	text, err := e.extractors.Extract(data, att.ContentType)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", att.Filename, err)
	}
	return text, nil
}
