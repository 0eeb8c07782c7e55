package objectkey

import (
	"fmt"

	"github.com/tendant/archive-dump/pkg/archive"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey maps a content kind and its identifier sequence to a key
	GenerateKey(kind archive.ContentKind, idents []archive.Identifier) (string, error)
}

// LayoutGenerator generates keys under the prefixes of a Layout
type LayoutGenerator struct {
	layout Layout
}

func NewLayoutGenerator(layout Layout) *LayoutGenerator {
	return &LayoutGenerator{layout: layout}
}

// Layout returns the layout the generator writes under.
func (g *LayoutGenerator) Layout() Layout {
	return g.layout
}

// GenerateKey is deterministic for a fixed layout. Raw keys use the last
// identifier so a page fetched standalone lands on the same key as inside a
// book walk. Baked page keys drop the page version; the book version pins it.
func (g *LayoutGenerator) GenerateKey(kind archive.ContentKind, idents []archive.Identifier) (string, error) {
	if len(idents) == 0 {
		return "", fmt.Errorf("no identifiers for %s", kind)
	}
	raw := g.layout.Prefix(ClassRaw)
	baked := g.layout.Prefix(ClassBaked)
	resources := g.layout.Prefix(ClassResource)
	last := idents[len(idents)-1]
	book := idents[0]

	switch kind {
	case archive.KindRawBookJSON, archive.KindRawPageJSON:
		return raw + last.String() + ".json", nil
	case archive.KindRawBookHTML, archive.KindRawPageHTML:
		return raw + last.String() + ".html", nil
	case archive.KindBakedBookJSON:
		return baked + book.String() + ".json", nil
	case archive.KindBakedBookHTML:
		return baked + book.String() + ".html", nil
	case archive.KindBakedPageJSON, archive.KindBakedPageHTML:
		if len(idents) < 2 {
			return "", fmt.Errorf("%s needs book and page identifiers, got %d", kind, len(idents))
		}
		composite := archive.CompositeHash{Book: book, Page: idents[1]}
		ext := ".json"
		if kind == archive.KindBakedPageHTML {
			ext = ".html"
		}
		return baked + composite.String() + ext, nil
	case archive.KindResource:
		return resources + book.ID, nil
	case archive.KindResourceMediaType:
		return resources + book.ID + "-media-type", nil
	}
	return "", &archive.UnknownContentKindError{Kind: kind}
}
