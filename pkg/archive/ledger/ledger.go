// Package ledger records one entry per top-level export run.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("export run not found")

// Status of an export run
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Counts holds objects written per storage class.
type Counts struct {
	Raw      int `json:"raw"`
	Baked    int `json:"baked"`
	Resource int `json:"resource"`
}

// Run is one export of one book.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	BookID     string     `json:"book_id"`
	Version    string     `json:"version,omitempty"`
	Host       string     `json:"host"`
	Status     Status     `json:"status"`
	Counts     Counts     `json:"counts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRun starts a run for bookID against host.
func NewRun(bookID, version, host string) *Run {
	return &Run{
		ID:        uuid.New(),
		BookID:    bookID,
		Version:   version,
		Host:      host,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish closes the run. A non-nil err marks it failed.
func (r *Run) Finish(counts Counts, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Counts = counts
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSucceeded
	r.Error = ""
}

// Duration is the wall time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Repository stores export runs.
type Repository interface {
	// Record inserts the run or replaces the stored run with the same id
	Record(ctx context.Context, run *Run) error

	// Get returns the run with id or ErrRunNotFound
	Get(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListByBook returns the runs of a book, newest first
	ListByBook(ctx context.Context, bookID string) ([]*Run, error)
}
