package vectordb

import (
	"strconv"
	"strings"
)

// Entry is one indexed library item: the embedding, the normalized text it
// was computed from, and the filterable metadata. The entry ID is the
// Zotero item key.
type Entry struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  Metadata
}

// Metadata holds the filterable fields of an entry.
type Metadata struct {
	ItemType string
	Creators string // semicolon-joined display string
	Tags     []string
	Date     string
	// Fulltext records whether attachment text was included in the
	// document, as opposed to metadata-only indexing.
	Fulltext bool
}

// SearchResult pairs an entry with its similarity score. Scores are
// comparable only within one query call.
type SearchResult struct {
	Entry      Entry
	Similarity float32
}

// Filter restricts a query to entries whose metadata matches every
// predicate. Tag matches set membership; the other fields match exactly.
type Filter struct {
	ItemType string
	Creators string
	Date     string
	Tag      string
}

// Stats describes the persisted collection for status reporting.
type Stats struct {
	Name           string
	Count          int
	Dimensions     int
	EmbeddingModel string
	PersistDir     string
}

// tagSeparator joins tag lists into one metadata value. Zotero forbids
// newlines in tags, so this cannot collide.
const tagSeparator = "\n"

// metadataToMap converts Metadata to a flat map[string]string for chromem.
func metadataToMap(m Metadata) map[string]string {
	md := map[string]string{
		"item_type": m.ItemType,
		"fulltext":  strconv.FormatBool(m.Fulltext),
	}
	if m.Creators != "" {
		md["creators"] = m.Creators
	}
	if len(m.Tags) > 0 {
		md["tags"] = strings.Join(m.Tags, tagSeparator)
	}
	if m.Date != "" {
		md["date"] = m.Date
	}
	return md
}

// mapToMetadata converts a flat map[string]string back to Metadata.
func mapToMetadata(md map[string]string) Metadata {
	m := Metadata{
		ItemType: md["item_type"],
		Creators: md["creators"],
		Date:     md["date"],
	}
	m.Fulltext, _ = strconv.ParseBool(md["fulltext"])
	if tags := md["tags"]; tags != "" {
		m.Tags = strings.Split(tags, tagSeparator)
	}
	return m
}

// whereClause converts the exact-match predicates of a filter to a chromem
// where clause. The tag predicate is applied client-side afterwards.
func whereClause(f *Filter) map[string]string {
	if f == nil {
		return nil
	}
	where := make(map[string]string)
	if f.ItemType != "" {
		where["item_type"] = f.ItemType
	}
	if f.Creators != "" {
		where["creators"] = f.Creators
	}
	if f.Date != "" {
		where["date"] = f.Date
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// matchesTag reports whether the entry carries the filter's tag. An empty
// tag predicate matches everything.
func matchesTag(f *Filter, m Metadata) bool {
	if f == nil || f.Tag == "" {
		return true
	}
	for _, tag := range m.Tags {
		if tag == f.Tag {
			return true
		}
	}
	return false
}
