// Package api exposes the health checks, the version resolver and the
// export ledger over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
	"github.com/tendant/archive-dump/pkg/archive/resolve"
)

// ReadyFunc reports whether the server can answer requests.
type ReadyFunc func(ctx context.Context) error

// Server wires the resolver and the ledger into one router.
type Server struct {
	resolver http.Handler
	ledger   ledger.Repository
	ready    ReadyFunc
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLedger serves export runs under /runs.
func WithLedger(repo ledger.Repository) Option {
	return func(s *Server) {
		s.ledger = repo
	}
}

// WithReadiness sets the check behind /healthz/ready.
func WithReadiness(ready ReadyFunc) Option {
	return func(s *Server) {
		s.ready = ready
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server answering archive paths with resolver.
func NewServer(resolver *resolve.HTTPHandler, opts ...Option) *Server {
	s := &Server{
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/ping", s.handlePing)
	r.Get("/ping/", s.handlePing)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	r.Get("/healthz/ready", s.handleReady)

	for _, segment := range []string{"contents", resolve.RawSegment, resolve.BakedSegment, resolve.ResourceSegment} {
		r.Method(http.MethodGet, "/"+segment+"/*", s.resolver)
		r.Method(http.MethodHead, "/"+segment+"/*", s.resolver)
	}

	if s.ledger != nil {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{run_id}", s.handleGetRun)
		})
	}

	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, messageResponse{Message: "pong"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "err", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, http.StatusText(http.StatusServiceUnavailable))
			return
		}
	}
	render.PlainText(w, r, http.StatusText(http.StatusOK))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	book := r.URL.Query().Get("book")
	if book == "" {
		writeError(w, r, http.StatusBadRequest, "book query parameter is required")
		return
	}
	runs, err := s.ledger.ListByBook(r.Context(), book)
	if err != nil {
		slog.Error("Failed to list runs", "book", book, "err", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*ledger.Run{}
	}
	render.JSON(w, r, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.ledger.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	} else if err != nil {
		slog.Error("Failed to get run", "run_id", id, "err", err)
		writeError(w, r, http.StatusInternalServerError, "failed to get run")
		return
	}
	render.JSON(w, r, run)
}
