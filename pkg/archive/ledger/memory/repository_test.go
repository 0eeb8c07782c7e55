package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
	"github.com/tendant/archive-dump/pkg/archive/ledger/memory"
)

var _ ledger.Repository = (*memory.Repository)(nil)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	older := ledger.NewRun("book-a", "1", "archive.cnx.org")
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := ledger.NewRun("book-a", "2", "archive.cnx.org")
	other := ledger.NewRun("book-b", "1", "archive.cnx.org")
	for _, run := range []*ledger.Run{older, newer, other} {
		require.NoError(t, repo.Record(ctx, run))
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, "2", got.Version)

		_, err = repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrRunNotFound)
	})

	t.Run("ListByBook newest first", func(t *testing.T) {
		runs, err := repo.ListByBook(ctx, "book-a")
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, newer.ID, runs[0].ID)
		assert.Equal(t, older.ID, runs[1].ID)

		runs, err = repo.ListByBook(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("Record replaces", func(t *testing.T) {
		newer.Finish(ledger.Counts{Raw: 4}, nil)
		require.NoError(t, repo.Record(ctx, newer))

		got, err := repo.Get(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSucceeded, got.Status)
		assert.Equal(t, 4, got.Counts.Raw)
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		got, err := repo.Get(ctx, other.ID)
		require.NoError(t, err)
		got.BookID = "changed"

		again, err := repo.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "book-b", again.BookID)
	})
}
