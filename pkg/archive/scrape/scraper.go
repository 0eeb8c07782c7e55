package scrape

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/fetch"
)

const (
	defaultResourceMediaType = "application/octet-stream"
	mediaTypeSidecarType     = "text/plain"
)

// Fetcher is the subset of the content API client the walk needs.
type Fetcher interface {
	Metadata(ctx context.Context, id string) (*fetch.Document, error)
	Entity(ctx context.Context, req fetch.EntityRequest) ([]byte, string, error)
	Resource(ctx context.Context, sha string) (io.ReadCloser, error)
}

// Scraper walks books and pages of the content API.
type Scraper struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// Option customizes the scraper.
type Option func(*Scraper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a scraper reading from fetcher.
func New(fetcher Fetcher, opts ...Option) *Scraper {
	s := &Scraper{fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book walks a book and all its pages. Items are produced one at a time as
// the consumer pulls them; the first error is yielded once and ends the
// sequence. Every item handed to the consumer belongs to it.
func (s *Scraper) Book(ctx context.Context, book archive.Identifier) iter.Seq2[*archive.ScrapedItem, error] {
	return func(yield func(*archive.ScrapedItem, error) bool) {
		w := &walk{Scraper: s, ctx: ctx, visited: NewVisited(), yield: yield}
		if err := w.book(book); err != nil {
			if !w.stopped {
				yield(nil, err)
			}
			return
		}
		s.logger.Info("book walk finished", "book", book.String(), "resources", w.visited.Len())
	}
}

// Page exports one page without book context: its raw representations and
// the resources they reference. Baked forms need a book and are skipped.
func (s *Scraper) Page(ctx context.Context, page archive.Identifier) iter.Seq2[*archive.ScrapedItem, error] {
	return func(yield func(*archive.ScrapedItem, error) bool) {
		w := &walk{Scraper: s, ctx: ctx, visited: NewVisited(), yield: yield}
		if err := w.standalonePage(page); err != nil && !w.stopped {
			yield(nil, err)
		}
	}
}

// walk is the state of one top-level export.
type walk struct {
	*Scraper
	ctx     context.Context
	visited *Visited
	yield   func(*archive.ScrapedItem, error) bool
	stopped bool
}

// errStopped unwinds the walk when the consumer stops pulling.
var errStopped = errors.New("consumer stopped")

func (w *walk) emit(item *archive.ScrapedItem) error {
	if w.stopped {
		item.Close()
		return errStopped
	}
	w.logger.Debug("scraped", "kind", item.Kind, "idents", identsString(item.Idents), "media_type", item.MediaType)
	if !w.yield(item, nil) {
		w.stopped = true
		return errStopped
	}
	return nil
}

func (w *walk) resolveVersion(ident archive.Identifier, what string) (archive.Identifier, error) {
	if ident.HasVersion() {
		return ident, nil
	}
	doc, err := w.fetcher.Metadata(w.ctx, ident.ID)
	if err != nil {
		return archive.Identifier{}, err
	}
	resolved := archive.Identifier{ID: ident.ID, Version: doc.Version}
	w.logger.Info("resolved latest version", "type", what, "ident", resolved.String())
	return resolved, nil
}

// fetchDocument fetches one document representation and emits it. The body
// is kept for the caller when it is JSON.
func (w *walk) fetchDocument(kind archive.ContentKind, ident string, format archive.Format, idents []archive.Identifier) ([]byte, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	body, mediaType, err := w.fetcher.Entity(w.ctx, fetch.EntityRequest{
		Ident:  ident,
		Format: format,
		Raw:    kind.IsRaw(),
	})
	if err != nil {
		return nil, err
	}
	item := &archive.ScrapedItem{
		Payload:   io.NopCloser(bytes.NewReader(body)),
		MediaType: mediaType,
		Kind:      kind,
		Idents:    idents,
	}
	if err := w.emit(item); err != nil {
		return nil, err
	}
	return body, nil
}

func (w *walk) book(ident archive.Identifier) error {
	book, err := w.resolveVersion(ident, "book")
	if err != nil {
		return err
	}
	idents := []archive.Identifier{book}
	w.logger.Info("exporting book", "ident", book.String())

	rawJSON, err := w.fetchDocument(archive.KindRawBookJSON, book.String(), archive.FormatJSON, idents)
	if err != nil {
		return err
	}
	rawDoc, err := fetch.ParseDocument(rawJSON)
	if err != nil {
		return err
	}
	if _, err := w.fetchDocument(archive.KindRawBookHTML, book.String(), archive.FormatHTML, idents); err != nil {
		return err
	}
	bakedJSON, err := w.fetchDocument(archive.KindBakedBookJSON, book.String(), archive.FormatJSON, idents)
	if err != nil {
		return err
	}
	bakedDoc, err := fetch.ParseDocument(bakedJSON)
	if err != nil {
		return err
	}
	if _, err := w.fetchDocument(archive.KindBakedBookHTML, book.String(), archive.FormatHTML, idents); err != nil {
		return err
	}

	if err := w.resources(manifest(bakedDoc, rawDoc)); err != nil {
		return err
	}

	rawPages := make(map[string]bool)
	for page := range archive.Flatten(rawDoc.Tree) {
		rawPages[page.ID] = true
	}
	tree := bakedDoc.Tree
	if tree == nil {
		tree = rawDoc.Tree
	}
	for page := range archive.Flatten(tree) {
		composite := !rawPages[page.ID]
		if err := w.page(book, page, composite); err != nil {
			return err
		}
	}
	return nil
}

// page emits a page inside a book. Composite pages exist only after
// collation and have no raw representation.
func (w *walk) page(book, page archive.Identifier, composite bool) error {
	idents := []archive.Identifier{book, page}
	w.logger.Debug("exporting page", "book", book.String(), "page", page.String(), "composite", composite)

	var rawDoc *fetch.Document
	if !composite {
		rawJSON, err := w.fetchDocument(archive.KindRawPageJSON, page.String(), archive.FormatJSON, idents)
		if err != nil {
			return err
		}
		if rawDoc, err = fetch.ParseDocument(rawJSON); err != nil {
			return err
		}
		if _, err := w.fetchDocument(archive.KindRawPageHTML, page.String(), archive.FormatHTML, idents); err != nil {
			return err
		}
	}

	composed := archive.CompositeHash{Book: book, Page: page}.String()
	bakedJSON, err := w.fetchDocument(archive.KindBakedPageJSON, composed, archive.FormatJSON, idents)
	if err != nil {
		return err
	}
	bakedDoc, err := fetch.ParseDocument(bakedJSON)
	if err != nil {
		return err
	}
	if _, err := w.fetchDocument(archive.KindBakedPageHTML, composed, archive.FormatHTML, idents); err != nil {
		return err
	}

	return w.resources(manifest(bakedDoc, rawDoc))
}

func (w *walk) standalonePage(ident archive.Identifier) error {
	page, err := w.resolveVersion(ident, "page")
	if err != nil {
		return err
	}
	idents := []archive.Identifier{page}

	rawJSON, err := w.fetchDocument(archive.KindRawPageJSON, page.String(), archive.FormatJSON, idents)
	if err != nil {
		return err
	}
	rawDoc, err := fetch.ParseDocument(rawJSON)
	if err != nil {
		return err
	}
	if _, err := w.fetchDocument(archive.KindRawPageHTML, page.String(), archive.FormatHTML, idents); err != nil {
		return err
	}
	return w.resources(rawDoc.Resources)
}

// resources emits each not-yet-visited resource followed by its media-type
// sidecar.
func (w *walk) resources(manifest []archive.Resource) error {
	for _, res := range manifest {
		if res.ID == "" || !w.visited.MarkIfNew(res.ID) {
			continue
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
		body, err := w.fetcher.Resource(w.ctx, res.ID)
		if err != nil {
			return err
		}
		mediaType := res.MediaType
		if mediaType == "" {
			mediaType = defaultResourceMediaType
		}
		idents := []archive.Identifier{{ID: res.ID}}
		if err := w.emit(&archive.ScrapedItem{
			Payload:   body,
			MediaType: mediaType,
			Kind:      archive.KindResource,
			Idents:    idents,
		}); err != nil {
			return err
		}
		if err := w.emit(&archive.ScrapedItem{
			Payload:   io.NopCloser(strings.NewReader(mediaType)),
			MediaType: mediaTypeSidecarType,
			Kind:      archive.KindResourceMediaType,
			Idents:    idents,
		}); err != nil {
			return err
		}
	}
	return nil
}

// manifest prefers the baked document's resources and falls back to the raw
// document when the baked one lists none.
func manifest(baked, raw *fetch.Document) []archive.Resource {
	if baked != nil && baked.Resources != nil {
		return baked.Resources
	}
	if raw != nil {
		return raw.Resources
	}
	return nil
}

func identsString(idents []archive.Identifier) string {
	parts := make([]string, len(idents))
	for i, ident := range idents {
		parts[i] = ident.String()
	}
	return strings.Join(parts, ",")
}
