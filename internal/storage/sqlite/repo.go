// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. It performs batched INSERTs
// inside a transaction; SQLite does not have a dedicated bulk-load API like
// Postgres COPY, but transactions keep performance acceptable for an extract
// of a few million rows.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// insertSQL builds INSERT INTO "table" ("c1", ...) VALUES (?, ...).
func insertSQL(table string, columns []string) (string, error) {
	placeholders := make([]any, len(columns))
	stmt, _, err := sq.Insert(quoteFQN(table)).
		Columns(mapIdent(columns)...).
		Values(placeholders...).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build insert: %w", err)
	}
	return stmt, nil
}

// CopyFrom inserts the given rows into the configured table using a single
// transaction and a prepared INSERT statement.
//
// It returns the number of rows successfully inserted or an error. len(row)
// must equal len(columns) for every row.
func (r *Repository) CopyFrom(
	ctx context.Context,
	columns []string,
	rows [][]any,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	n, err := copyRows(ctx, tx, r.cfg.Table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Replace empties the table and runs load in one transaction. Every batch
// load passes to its CopyFn is inserted within that transaction, so a failed
// load leaves the previous rows in place.
func (r *Repository) Replace(ctx context.Context, load func(context.Context, storage.CopyFn) (int64, error)) (int64, error) {
	del, args, err := sq.Delete(quoteFQN(r.cfg.Table)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: build delete: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: reset %s: %w", r.cfg.Table, err)
	}
	n, err := load(ctx, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		return copyRows(ctx, tx, r.cfg.Table, columns, rows)
	})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// copyRows inserts rows through a prepared statement on tx.
func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	stmtSQL, err := insertSQL(table, columns)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// Exec executes an arbitrary SQL statement (typically DDL) using the underlying
// database/sql connection.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Reset deletes all rows from the configured table.
func (r *Repository) Reset(ctx context.Context) error {
	stmt, args, err := sq.Delete(quoteFQN(r.cfg.Table)).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: reset %s: %w", r.cfg.Table, err)
	}
	return nil
}

// Count returns the number of rows in the configured table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	stmt, args, err := sq.Select("COUNT(*)").From(quoteFQN(r.cfg.Table)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: build count: %w", err)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", r.cfg.Table, err)
	}
	return n, nil
}
