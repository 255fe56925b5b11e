package vectordb

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/zotseek/zotseek/internal/embeddings"
)

const collectionName = "zotero_library"

// ChromemStore implements VectorStore using a persistent chromem-go
// database. Every write is flushed to the persist directory by chromem, so
// a crash never loses acknowledged upserts.
type ChromemStore struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	modelName  string
	dimensions int
	persistDir string
}

// NewChromemStore opens (or creates) the persistent store in dir. The
// embedder is recorded in the collection metadata and used as a fallback
// embedding function; sync precomputes vectors through the gateway.
func NewChromemStore(dir string, embedder embeddings.Embedder) (*ChromemStore, error) {
	cdb, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, fmt.Errorf("open vector store at %s: %w", dir, err)
	}

	ef := embeddings.ToChromemFunc(embedder)
	col, err := cdb.GetOrCreateCollection(collectionName, map[string]string{
		"embedding_model": embedder.Name(),
	}, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         cdb,
		collection: col,
		embedFunc:  ef,
		modelName:  embedder.Name(),
		dimensions: embedder.Dimensions(),
		persistDir: dir,
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Embedding: e.Embedding,
			Content:   e.Document,
			Metadata:  metadataToMap(e.Metadata),
		}
	}

	s.mu.Lock()
	col := s.collection
	s.mu.Unlock()

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("upsert %d entries: %w", len(entries), err)
	}
	return nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	col := s.collection
	s.mu.Unlock()

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete %d entries: %w", len(ids), err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, filter *Filter) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	s.mu.Lock()
	col := s.collection
	s.mu.Unlock()

	// chromem requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	// Tag membership cannot be expressed in the exact-match where clause,
	// so it is applied to the ranked results below. In that case the whole
	// collection is ranked first: cutting to k before the tag filter would
	// drop matching entries ranked below k by untagged neighbors.
	n := k
	if filter != nil && filter.Tag != "" {
		n = count
	}
	if n > count {
		n = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, whereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]SearchResult, 0, k)
	for _, r := range results {
		if len(out) == k {
			break
		}
		md := mapToMetadata(r.Metadata)
		if !matchesTag(filter, md) {
			continue
		}
		out = append(out, SearchResult{
			Entry: Entry{
				ID:        r.ID,
				Embedding: r.Embedding,
				Document:  r.Content,
				Metadata:  md,
			},
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(collectionName, map[string]string{
		"embedding_model": s.modelName,
	}, s.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	s.mu.Lock()
	col := s.collection
	s.mu.Unlock()
	return col.Count()
}

func (s *ChromemStore) Stats() Stats {
	return Stats{
		Name:           collectionName,
		Count:          s.Count(),
		Dimensions:     s.dimensions,
		EmbeddingModel: s.modelName,
		PersistDir:     s.persistDir,
	}
}
