// Package postgres implements a Postgres repository using pgx v5. Rows are
// streamed into the target table with the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // fully qualified target table name, e.g., "public.brightest_stars"
	Columns []string // ordered columns for COPY
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// CopyFrom streams rows into the configured table using COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %s: %w", r.cfg.Table, describePgErr(err))
	}
	return n, nil
}

// Replace deletes the table rows and COPYs the batches produced by load
// inside one transaction.
func (r *Repository) Replace(ctx context.Context, load func(context.Context, storage.CopyFn) (int64, error)) (int64, error) {
	del, args, err := deleteAll(r.cfg.Table)
	if err != nil {
		return 0, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return 0, fmt.Errorf("postgres: reset %s: %w", r.cfg.Table, describePgErr(err))
	}
	table := splitFQN(r.cfg.Table)
	n, err := load(ctx, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(rows) == 0 {
			return 0, nil
		}
		n, err := tx.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, fmt.Errorf("postgres: copy into %s: %w", r.cfg.Table, describePgErr(err))
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", describePgErr(err))
	}
	return n, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", describePgErr(err))
	}
	return nil
}

// Reset deletes all rows from the configured table.
func (r *Repository) Reset(ctx context.Context) error {
	stmt, args, err := deleteAll(r.cfg.Table)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("postgres: reset %s: %w", r.cfg.Table, describePgErr(err))
	}
	return nil
}

func deleteAll(table string) (string, []any, error) {
	stmt, args, err := psql.Delete(pgFQN(table)).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("postgres: build delete: %w", err)
	}
	return stmt, args, nil
}

// describePgErr folds the server-side detail into the message when present.
func describePgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.brightest_stars"
// to "public"."brightest_stars". Empty segments are ignored.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, pgIdent(p))
	}
	return strings.Join(out, ".")
}
