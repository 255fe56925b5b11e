// Package search answers semantic queries against the vector index and
// enriches hits with live library data when the source is reachable.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zotseek/zotseek/internal/vectordb"
	"github.com/zotseek/zotseek/internal/zotero"
)

// QueryEmbedder is the slice of the embedding gateway the query path needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Request is one semantic search.
type Request struct {
	Query string
	Limit int
	// Filters uses the external filter keys (itemType, tag, creators,
	// date). Unknown keys are rejected, not ignored.
	Filters map[string]string
}

// Result is one hit, ordered by descending similarity.
type Result struct {
	ItemKey    string   `json:"item_key"`
	Similarity float32  `json:"similarity"`
	Title      string   `json:"title"`
	Creators   string   `json:"creators"`
	ItemType   string   `json:"item_type"`
	Date       string   `json:"date,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	// Abstract comes from the live item when available.
	Abstract string `json:"abstract,omitempty"`
	// Stale marks hits whose live re-fetch failed; the indexed fields may
	// lag the library.
	Stale bool `json:"stale,omitempty"`
}

// Response is the full answer to a Request.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	// SourceAvailable is false when the library could not be reached for
	// live enrichment and every hit came from the index alone.
	SourceAvailable bool `json:"source_available"`
}

const defaultLimit = 10

// filterKeys maps the external filter vocabulary to index predicates.
var filterKeys = map[string]func(*vectordb.Filter, string){
	"itemType": func(f *vectordb.Filter, v string) { f.ItemType = v },
	"tag":      func(f *vectordb.Filter, v string) { f.Tag = v },
	"creators": func(f *vectordb.Filter, v string) { f.Creators = v },
	"date":     func(f *vectordb.Filter, v string) { f.Date = v },
}

// TranslateFilters converts external filter keys to an index filter. An
// unknown key is an error so callers learn about typos instead of getting
// silently unfiltered results.
func TranslateFilters(filters map[string]string) (*vectordb.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	f := &vectordb.Filter{}
	for key, value := range filters {
		apply, ok := filterKeys[key]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q (valid: %s)", key, validFilterKeys())
		}
		if value != "" {
			apply(f, value)
		}
	}
	return f, nil
}

func validFilterKeys() string {
	keys := make([]string, 0, len(filterKeys))
	for k := range filterKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// Engine runs semantic searches. The source is optional; without one,
// results carry index data only.
type Engine struct {
	embedder QueryEmbedder
	store    vectordb.VectorStore
	source   zotero.Source
}

// NewEngine creates a query engine. source may be nil.
func NewEngine(embedder QueryEmbedder, store vectordb.VectorStore, source zotero.Source) *Engine {
	return &Engine{embedder: embedder, store: store, source: source}
}

// Search embeds the query, retrieves the nearest entries, and enriches
// each hit with a live item fetch. Live fetch failures degrade the hit to
// indexed data (marked Stale) rather than failing the search; an
// unreachable source never makes the whole search fail.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	filter, err := TranslateFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	embedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.store.Query(ctx, embedding, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	resp := &Response{Query: query, SourceAvailable: e.source != nil}
	for _, hit := range hits {
		resp.Results = append(resp.Results, e.enrich(ctx, hit, resp))
	}
	return resp, nil
}

// enrich builds a Result from an index hit, overlaying live library data
// when it can be fetched.
func (e *Engine) enrich(ctx context.Context, hit vectordb.SearchResult, resp *Response) Result {
	r := Result{
		ItemKey:    hit.Entry.ID,
		Similarity: hit.Similarity,
		Title:      titleFromDocument(hit.Entry.Document),
		Creators:   hit.Entry.Metadata.Creators,
		ItemType:   hit.Entry.Metadata.ItemType,
		Date:       hit.Entry.Metadata.Date,
		Tags:       hit.Entry.Metadata.Tags,
	}

	if e.source == nil {
		return r
	}

	item, err := e.source.Item(ctx, hit.Entry.ID)
	if err != nil {
		// A vanished item is normal between syncs; any other failure
		// means the source itself is flaky.
		if !errors.Is(err, zotero.ErrNotFound) {
			resp.SourceAvailable = false
		}
		r.Stale = true
		return r
	}

	if item.Data.Title != "" {
		r.Title = item.Data.Title
	}
	if creators := zotero.FormatCreators(item.Data.Creators); len(item.Data.Creators) > 0 {
		r.Creators = creators
	}
	if item.Data.ItemType != "" {
		r.ItemType = item.Data.ItemType
	}
	if item.Data.Date != "" {
		r.Date = item.Data.Date
	}
	if tags := item.Data.TagNames(); len(tags) > 0 {
		r.Tags = tags
	}
	r.Abstract = item.Data.AbstractNote
	return r
}

// titleFromDocument recovers the title line of a normalized document for
// hits that cannot be enriched live.
func titleFromDocument(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		if after, ok := strings.CutPrefix(line, "Title: "); ok {
			return after
		}
	}
	return ""
}
