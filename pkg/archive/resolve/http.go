package resolve

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/archive-dump/pkg/archive"
)

// HTTPHandler serves the resolver over plain HTTP. Redirects and 404s are
// answered as the edge handler would; a passthrough streams the object from
// its store.
type HTTPHandler struct {
	resolver *Resolver
	stores   map[string]archive.BlobStore
}

// NewHTTPHandler creates a handler reading objects from stores, keyed by
// bucket name.
func NewHTTPHandler(resolver *Resolver, stores map[string]archive.BlobStore) *HTTPHandler {
	return &HTTPHandler{resolver: resolver, stores: stores}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.resolver.Resolve(ctx, Request{
		URI:         r.URL.Path,
		Method:      r.Method,
		QueryString: r.URL.RawQuery,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve", "uri", r.URL.Path, "err", err)
		writeError(w, r, http.StatusBadGateway, "storage listing failed")
		return
	}

	switch resp.Outcome {
	case Redirect:
		http.Redirect(w, r, h.location(resp), resp.Status)
	case NotFound:
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		h.serveObject(w, r, resp.Request.URI)
	}
}

// location rewrites a resolved key into a path this handler serves. Keys
// of a three-bucket layout carry no class prefix, so the segment is put
// back in front of them.
func (h *HTTPHandler) location(resp Response) string {
	if resp.Key == "" {
		return resp.Location
	}
	rest := strings.TrimPrefix(resp.Key, h.resolver.Layout().Prefix(resp.Class))
	return "/" + Segment(resp.Class) + "/" + rest
}

func (h *HTTPHandler) serveObject(w http.ResponseWriter, r *http.Request, uri string) {
	ctx := r.Context()
	class, rest, ok := SplitPath(uri)
	if !ok || rest == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	layout := h.resolver.Layout()
	bucket := layout.Bucket(class)
	key := layout.Prefix(class) + rest

	store := h.stores[bucket]
	if store == nil {
		slog.ErrorContext(ctx, "No store for bucket", "bucket", bucket)
		writeError(w, r, http.StatusInternalServerError, "storage not configured")
		return
	}

	meta, err := store.GetObjectMeta(ctx, key)
	if errors.Is(err, archive.ErrObjectNotFound) {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	} else if err != nil {
		slog.ErrorContext(ctx, "Failed to read object metadata", "bucket", bucket, "key", key, "err", err)
		writeError(w, r, http.StatusBadGateway, "storage read failed")
		return
	}

	body, err := store.Download(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to download object", "bucket", bucket, "key", key, "err", err)
		writeError(w, r, http.StatusBadGateway, "storage read failed")
		return
	}
	defer body.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.WarnContext(ctx, "Failed to stream object", "key", key, "err", err)
	}
}
