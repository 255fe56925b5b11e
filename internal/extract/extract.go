// Package extract turns attachment bytes into plain text for indexing.
// Extraction failures are per-attachment: the sync pass records them and
// moves on.
package extract

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Extractor converts raw attachment bytes of one content type into text.
type Extractor interface {
	// ContentTypes lists the MIME types this extractor handles. A trailing
	// "/*" matches a whole top-level type.
	ContentTypes() []string

	// Extract returns the plain text content of the file.
	Extract(data []byte) (string, error)
}

// Registry dispatches extraction by content type.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with the default extractors.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			&HTMLExtractor{},
			&PlainTextExtractor{},
		},
	}
}

// Register adds an extractor. Later registrations take precedence.
func (r *Registry) Register(e Extractor) {
	r.extractors = append([]Extractor{e}, r.extractors...)
}

// Extract finds an extractor for contentType and runs it. An unsupported
// content type is an error the caller treats as a per-item failure.
func (r *Registry) Extract(data []byte, contentType string) (string, error) {
	if e := r.find(contentType); e != nil {
		return e.Extract(data)
	}
	return "", fmt.Errorf("no extractor for content type %q", contentType)
}

// Supports reports whether some registered extractor handles contentType.
// Attachment selection uses this to skip files it could never extract.
func (r *Registry) Supports(contentType string) bool {
	return r.find(contentType) != nil
}

func (r *Registry) find(contentType string) Extractor {
	// Strip any charset parameter.
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	for _, e := range r.extractors {
		for _, ct := range e.ContentTypes() {
			if matchContentType(ct, contentType) {
				return e
			}
		}
	}
	return nil
}

func matchContentType(pattern, contentType string) bool {
	if pattern == contentType {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(contentType, prefix+"/")
	}
	return false
}

// EligibleFilename reports whether an attachment filename passes the
// configured include/exclude globs. Exclude wins over include; an empty
// include list admits everything not excluded.
func EligibleFilename(name string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
