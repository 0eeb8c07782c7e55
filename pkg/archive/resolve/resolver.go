// Package resolve maps version-less or partially qualified archive paths to
// the stored object holding the newest matching version.
//
// Paths have the shape /{class}/{ident}[:{page}].{ext} where class is raw,
// baked or resources. /contents/ paths are the legacy public form and are
// redirected to /raw/ or /baked/.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/objectkey"
)

const contentsPath = "/contents/"

// Path segments naming each storage class.
const (
	RawSegment      = "raw"
	BakedSegment    = "baked"
	ResourceSegment = "resources"
)

// Request is the part of an edge origin request the resolver reads.
type Request struct {
	URI         string `json:"uri"`
	Method      string `json:"method,omitempty"`
	QueryString string `json:"querystring,omitempty"`
}

// Outcome tells what the caller should do with a request.
type Outcome int

const (
	// Passthrough serves Response.Request as is
	Passthrough Outcome = iota
	// Redirect answers with Response.Status and Response.Location
	Redirect
	// NotFound answers with a 404 and no Location
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Passthrough:
		return "passthrough"
	case Redirect:
		return "redirect"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Response is the resolver's answer to one Request. A redirect found by
// listing also carries the class and storage key of the winner.
type Response struct {
	Outcome  Outcome
	Status   int
	Location string
	Request  Request

	Class objectkey.Class
	Key   string
}

func passthrough(req Request) Response {
	return Response{Outcome: Passthrough, Request: req}
}

func redirect(location string) Response {
	return Response{Outcome: Redirect, Status: http.StatusMovedPermanently, Location: location}
}

func notFound() Response {
	return Response{Outcome: NotFound, Status: http.StatusNotFound}
}

// Resolver answers requests by listing keys of the active layout. It keeps
// no state between requests.
type Resolver struct {
	layout  objectkey.Layout
	listers map[string]archive.Lister
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver. listers maps bucket names to their listing client
// and must cover every bucket of the layout.
func New(layout objectkey.Layout, listers map[string]archive.Lister, opts ...Option) (*Resolver, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	for _, bucket := range objectkey.Buckets(layout) {
		if listers[bucket] == nil {
			return nil, fmt.Errorf("no lister configured for bucket %q", bucket)
		}
	}
	r := &Resolver{
		layout:  layout,
		listers: listers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Layout returns the storage layout the resolver reads.
func (r *Resolver) Layout() objectkey.Layout {
	return r.layout
}

// TrimURI keeps the first two path segments, dropping trailing file names
// such as /resources/{sha}/{filename}.
func TrimURI(uri string) string {
	parts := strings.SplitN(uri, "/", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, "/")
}

// Segment returns the path segment naming class.
func Segment(class objectkey.Class) string {
	switch class {
	case objectkey.ClassRaw:
		return RawSegment
	case objectkey.ClassBaked:
		return BakedSegment
	case objectkey.ClassResource:
		return ResourceSegment
	}
	return ""
}

// SplitPath splits a trimmed URI into its storage class and the remainder.
func SplitPath(uri string) (objectkey.Class, string, bool) {
	segment, rest, ok := strings.Cut(strings.TrimPrefix(uri, "/"), "/")
	if !ok {
		return "", "", false
	}
	switch segment {
	case RawSegment:
		return objectkey.ClassRaw, rest, true
	case BakedSegment:
		return objectkey.ClassBaked, rest, true
	case ResourceSegment:
		return objectkey.ClassResource, rest, true
	}
	return "", "", false
}

// needsLookup reports whether uri lacks a version it requires: raw needs
// one, baked needs one per composite part.
func needsLookup(class objectkey.Class, uri string) bool {
	versions := strings.Count(uri, "@")
	switch class {
	case objectkey.ClassRaw:
		return versions < 1
	case objectkey.ClassBaked:
		if archive.IsComposite(uri) {
			return versions < 2
		}
		return versions < 1
	}
	return false
}

// Resolve answers one request.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	uri := req.URI
	trimmed := req
	trimmed.URI = TrimURI(uri)

	if rest, ok := strings.CutPrefix(uri, contentsPath); ok {
		segment := RawSegment
		if archive.IsComposite(uri) {
			segment = BakedSegment
		}
		return redirect("/" + segment + "/" + rest), nil
	}

	class, rest, ok := SplitPath(trimmed.URI)
	if !ok || !needsLookup(class, uri) {
		return passthrough(trimmed), nil
	}

	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		r.logger.DebugContext(ctx, "no extension in path", "uri", uri)
		return notFound(), nil
	}
	stem, ext := rest[:dot], rest[dot:]

	candidates, err := r.candidates(ctx, class, stem, ext)
	if err != nil {
		return Response{}, err
	}
	sorted := SortKeys(candidates)
	if len(sorted) == 0 {
		r.logger.DebugContext(ctx, "no candidates", "uri", uri)
		return notFound(), nil
	}

	winner := sorted[0]
	if winner == r.layout.Prefix(class)+rest {
		return passthrough(trimmed), nil
	}
	r.logger.DebugContext(ctx, "resolved", "uri", uri, "key", winner, "candidates", len(sorted))
	resp := redirect("/" + winner)
	resp.Class = class
	resp.Key = winner
	return resp, nil
}

// candidates lists the keys that could answer stem+ext. A baked composite
// path whose book has no version is listed under the book id and filtered
// by page.
func (r *Resolver) candidates(ctx context.Context, class objectkey.Class, stem, ext string) ([]string, error) {
	bucket := r.layout.Bucket(class)
	prefix := r.layout.Prefix(class)
	lister := r.listers[bucket]

	book, page, composite := strings.Cut(stem, ":")
	listPrefix := prefix + stem
	match := func(rest string) bool {
		if archive.IsComposite(rest) {
			return false
		}
		return rest == ext || strings.HasPrefix(rest, "@")
	}
	if class == objectkey.ClassBaked && composite && !strings.Contains(book, "@") {
		listPrefix = prefix + book
		match = func(rest string) bool {
			return strings.HasPrefix(rest, "@") && strings.HasSuffix(rest, ":"+page+ext)
		}
	}

	keys, err := lister.List(ctx, listPrefix)
	if err != nil {
		return nil, &archive.StorageError{Bucket: bucket, Key: listPrefix, Op: "list", Err: err}
	}

	var matched []string
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, listPrefix)
		if !ok || !strings.HasSuffix(rest, ext) {
			continue
		}
		if match(rest) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}
