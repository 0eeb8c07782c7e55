package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
)

// Repository implements ledger.Repository using in-memory storage
type Repository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]ledger.Run
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{runs: make(map[uuid.UUID]ledger.Run)}
}

func (r *Repository) Record(ctx context.Context, run *ledger.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	r.runs[run.ID] = copyRun(run)
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, ledger.ErrRunNotFound
	}
	c := copyRun(&run)
	return &c, nil
}

func (r *Repository) ListByBook(ctx context.Context, bookID string) ([]*ledger.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*ledger.Run
	for _, run := range r.runs {
		if run.BookID == bookID {
			c := copyRun(&run)
			runs = append(runs, &c)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

func copyRun(run *ledger.Run) ledger.Run {
	c := *run
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		c.FinishedAt = &finished
	}
	return c
}
