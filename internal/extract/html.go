package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	linesRe  = regexp.MustCompile(`\n{3,}`)
)

// HTMLExtractor strips markup from HTML snapshots. Zotero web snapshots
// are the common case; the goal is searchable text, not faithful layout.
type HTMLExtractor struct{}

func (e *HTMLExtractor) ContentTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (e *HTMLExtractor) Extract(data []byte) (string, error) {
	text := string(data)
	text = scriptRe.ReplaceAllString(text, " ")

	// Preserve block boundaries as newlines before removing tags.
	for _, tag := range []string{"</p>", "</div>", "</li>", "<br>", "<br/>", "<br />", "</h1>", "</h2>", "</h3>", "</tr>"} {
		text = strings.ReplaceAll(text, tag, tag+"\n")
	}

	text = tagRe.ReplaceAllString(text, " ")
	text = decodeEntities(text)
	text = spaceRe.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	text = strings.Join(lines, "\n")
	text = linesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

var entities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&apos;": "'",
	"&nbsp;": " ",
}

func decodeEntities(s string) string {
	for entity, repl := range entities {
		s = strings.ReplaceAll(s, entity, repl)
	}
	return s
}

// PlainTextExtractor passes through text files, rejecting binary data.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) ContentTypes() []string {
	return []string{"text/*", "application/json", "application/xml"}
}

func (e *PlainTextExtractor) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		// Salvage what is decodable rather than failing the item.
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}
