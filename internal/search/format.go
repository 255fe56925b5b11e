package search

import (
	"fmt"
	"strings"
)

// FormatMarkdown renders a response for MCP clients and the web UI. The
// layout mirrors Zotero's own citation-ish display: title first, then
// creators, then the bookkeeping line.
func FormatMarkdown(resp *Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Search results for: %s\n\n", resp.Query)

	if len(resp.Results) == 0 {
		b.WriteString("No matching items found.\n")
		return b.String()
	}

	if !resp.SourceAvailable {
		b.WriteString("> Library unreachable; showing indexed data, which may be out of date.\n\n")
	}

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "### %d. %s\n", i+1, title)

		if r.Creators != "" {
			fmt.Fprintf(&b, "**Authors:** %s\n", r.Creators)
		}

		var meta []string
		if r.ItemType != "" {
			meta = append(meta, "Type: "+r.ItemType)
		}
		if r.Date != "" {
			meta = append(meta, "Date: "+r.Date)
		}
		meta = append(meta, fmt.Sprintf("Relevance: %.3f", r.Similarity))
		meta = append(meta, "Key: "+r.ItemKey)
		fmt.Fprintf(&b, "%s\n", strings.Join(meta, " | "))

		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if r.Abstract != "" {
			fmt.Fprintf(&b, "\n%s\n", snippet(r.Abstract, 300))
		}
		if r.Stale {
			b.WriteString("_(indexed data; item could not be re-fetched)_\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// snippet truncates text to roughly n characters at a word boundary.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
