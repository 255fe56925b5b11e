package extract

import (
	"strings"
	"testing"
)

func TestRegistry_HTMLStripsMarkup(t *testing.T) {
	html := `<html><head><style>p{color:red}</style><script>var x=1;</script></head>
<body><h1>Heading</h1><p>First &amp; second.</p><p>Third.</p></body></html>`

	r := NewRegistry()
	text, err := r.Extract([]byte(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if strings.Contains(text, "<") || strings.Contains(text, "var x") || strings.Contains(text, "color:red") {
		t.Errorf("markup leaked into text: %q", text)
	}
	if !strings.Contains(text, "Heading") || !strings.Contains(text, "First & second.") {
		t.Errorf("content missing from text: %q", text)
	}
	// Block elements should keep paragraphs apart.
	if strings.Contains(text, "second.Third") {
		t.Errorf("paragraphs ran together: %q", text)
	}
}

func TestRegistry_PlainText(t *testing.T) {
	r := NewRegistry()
	text, err := r.Extract([]byte("hello world"), "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}
}

func TestRegistry_UnsupportedType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Extract([]byte{0x25, 0x50}, "application/octet-stream"); err == nil {
		t.Fatal("expected error for unsupported content type")
	}
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"text/plain", true},
		{"application/xhtml+xml", true},
		{"application/pdf", false},
		{"application/octet-stream", false},
	}
	for _, tt := range tests {
		if got := r.Supports(tt.contentType); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func TestEligibleFilename(t *testing.T) {
	include := []string{"*.pdf", "*.html"}
	exclude := []string{"*.zip", "draft-*"}

	tests := []struct {
		name string
		want bool
	}{
		{"paper.pdf", true},
		{"snapshot.html", true},
		{"archive.zip", false},
		{"draft-notes.pdf", false},
		{"image.png", false},
	}
	for _, tt := range tests {
		if got := EligibleFilename(tt.name, include, exclude); got != tt.want {
			t.Errorf("EligibleFilename(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	if !EligibleFilename("anything.xyz", nil, exclude) {
		t.Error("empty include should admit non-excluded names")
	}
}
