package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/zotseek/zotseek/internal/extract"
	"github.com/zotseek/zotseek/internal/vectordb"
	"github.com/zotseek/zotseek/internal/zotero"
)

// Document is the normalized, embeddable form of a library item. It is
// rebuilt on every sync pass and never persisted standalone; only its hash
// survives in the fingerprint store.
type Document struct {
	ItemKey  string
	Text     string
	Metadata vectordb.Metadata
}

var htmlStripper = &extract.HTMLExtractor{}

// Normalize converts an item (and optional extracted attachment text) into
// one canonical text blob plus filterable metadata. The field order is
// fixed so the content hash is reproducible across runs. Missing fields
// are omitted entirely. attachmentText is truncated to maxTextLength
// characters; truncation is deterministic so hashes stay stable for a
// given limit.
func Normalize(item *zotero.Item, attachmentText string, maxTextLength int) Document {
	data := item.Data
	var parts []string

	if data.Title != "" {
		parts = append(parts, "Title: "+data.Title)
	}
	if data.AbstractNote != "" {
		parts = append(parts, "Abstract: "+data.AbstractNote)
	}
	creators := ""
	if len(data.Creators) > 0 {
		creators = zotero.FormatCreators(data.Creators)
		parts = append(parts, "Creators: "+creators)
	}
	if tags := data.TagNames(); len(tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	if data.ItemType == "note" && data.Note != "" {
		// Note content is stored as HTML; index the readable text.
		if text, err := htmlStripper.Extract([]byte(data.Note)); err == nil && text != "" {
			parts = append(parts, "Note: "+text)
		}
	}

	fulltext := false
	if attachmentText != "" {
		fulltext = true
		parts = append(parts, "Fulltext: "+truncate(attachmentText, maxTextLength))
	}

	return Document{
		ItemKey: item.Key,
		Text:    strings.Join(parts, "\n\n"),
		Metadata: vectordb.Metadata{
			ItemType: data.ItemType,
			Creators: creators,
			Tags:     data.TagNames(),
			Date:     data.Date,
			Fulltext: fulltext,
		},
	}
}

// truncate cuts s to at most n characters (runes, so multi-byte text is
// never split mid-character).
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ComputeHash returns the stable content fingerprint of normalized text.
// The hash covers the text blob only: metadata changes that do not affect
// the text do not trigger re-embedding.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
