package vectordb

import "context"

// VectorStore is the persisted vector index the sync engine writes and the
// query engine reads.
type VectorStore interface {
	// Upsert inserts or replaces entries by ID. Replacement is atomic per
	// entry: readers never observe a partially written entry.
	Upsert(ctx context.Context, entries ...Entry) error

	// Delete removes entries by ID. Deleting a nonexistent ID is a no-op.
	Delete(ctx context.Context, ids ...string) error

	// Query returns up to k nearest neighbours of the given embedding,
	// restricted to entries matching the filter.
	Query(ctx context.Context, embedding []float32, k int, filter *Filter) ([]SearchResult, error)

	// Clear removes every entry. Used by force-full-rebuild.
	Clear(ctx context.Context) error

	// Count returns the number of stored entries.
	Count() int

	// Stats describes the collection for status reporting.
	Stats() Stats
}
