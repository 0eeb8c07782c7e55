package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
)

// Schema creates the export_run table.
const Schema = `
	CREATE TABLE IF NOT EXISTS export_run (
		id UUID PRIMARY KEY,
		book_id VARCHAR(255) NOT NULL,
		version VARCHAR(64) NOT NULL DEFAULT '',
		host VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		raw_count INTEGER NOT NULL DEFAULT 0,
		baked_count INTEGER NOT NULL DEFAULT 0,
		resource_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS export_run_book_idx ON export_run (book_id, started_at DESC);`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements ledger.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the ledger table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("export run already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrRunNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const selectRun = `
	SELECT id, book_id, version, host, status,
	       raw_count, baked_count, resource_count, error, started_at, finished_at
	FROM export_run`

func (r *Repository) Record(ctx context.Context, run *ledger.Run) error {
	query := `
		INSERT INTO export_run (
			id, book_id, version, host, status,
			raw_count, baked_count, resource_count, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version, status = EXCLUDED.status,
			raw_count = EXCLUDED.raw_count, baked_count = EXCLUDED.baked_count,
			resource_count = EXCLUDED.resource_count, error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.BookID, run.Version, run.Host, string(run.Status),
		run.Counts.Raw, run.Counts.Baked, run.Counts.Resource,
		run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return r.handlePostgresError("record run", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, selectRun+` WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError("get run", err)
	}
	return run, nil
}

func (r *Repository) ListByBook(ctx context.Context, bookID string) ([]*ledger.Run, error) {
	rows, err := r.db.Query(ctx, selectRun+` WHERE book_id = $1 ORDER BY started_at DESC`, bookID)
	if err != nil {
		return nil, r.handlePostgresError("list runs", err)
	}
	defer rows.Close()

	var runs []*ledger.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, r.handlePostgresError("list runs", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list runs", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*ledger.Run, error) {
	var run ledger.Run
	var status string
	err := row.Scan(
		&run.ID, &run.BookID, &run.Version, &run.Host, &status,
		&run.Counts.Raw, &run.Counts.Baked, &run.Counts.Resource,
		&run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = ledger.Status(status)
	return &run, nil
}
