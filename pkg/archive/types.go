package archive

import (
	"io"
	"strings"
)

// ContentKind classifies a scraped item. It decides both the URL fetched and
// the storage key written.
type ContentKind string

const (
	KindRawBookJSON       ContentKind = "raw-book-json"
	KindRawBookHTML       ContentKind = "raw-book-html"
	KindRawPageJSON       ContentKind = "raw-page-json"
	KindRawPageHTML       ContentKind = "raw-page-html"
	KindBakedBookJSON     ContentKind = "baked-book-json"
	KindBakedBookHTML     ContentKind = "baked-book-html"
	KindBakedPageJSON     ContentKind = "baked-page-json"
	KindBakedPageHTML     ContentKind = "baked-page-html"
	KindResource          ContentKind = "resource"
	KindResourceMediaType ContentKind = "resource-media-type"
)

// Kinds lists every known content kind.
var Kinds = []ContentKind{
	KindRawBookJSON,
	KindRawBookHTML,
	KindRawPageJSON,
	KindRawPageHTML,
	KindBakedBookJSON,
	KindBakedBookHTML,
	KindBakedPageJSON,
	KindBakedPageHTML,
	KindResource,
	KindResourceMediaType,
}

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsRaw reports whether k is an uncollated document kind.
func (k ContentKind) IsRaw() bool {
	return k.Valid() && strings.HasPrefix(string(k), "raw-")
}

// IsBaked reports whether k is a collated document kind.
func (k ContentKind) IsBaked() bool {
	return k.Valid() && strings.HasPrefix(string(k), "baked-")
}

// IsResource reports whether k is a resource or its media-type sidecar.
func (k ContentKind) IsResource() bool {
	return k == KindResource || k == KindResourceMediaType
}

// Format is the document representation requested from the content API.
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// MediaType returns the content type stored with documents of this format.
func (f Format) MediaType() string {
	if f == FormatHTML {
		return "text/html"
	}
	return "application/json"
}

// ScrapedItem is one fetched representation on its way to storage. Ownership
// of Payload passes to whoever consumes the item; that consumer must close it.
type ScrapedItem struct {
	Payload   io.ReadCloser
	MediaType string
	Kind      ContentKind
	// Idents has one entry for books and resources, two (book, page) for a
	// page inside a book.
	Idents []Identifier
}

// Close releases the payload.
func (s *ScrapedItem) Close() error {
	if s == nil || s.Payload == nil {
		return nil
	}
	return s.Payload.Close()
}

// Resource is an entry of a document's resource manifest.
type Resource struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"`
	Filename  string `json:"filename,omitempty"`
}
