// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom performs a bulk insert directly into the configured target table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	n, err := bulkCopy(ctx, tx, r.cfg.Table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Replace deletes the table rows and bulk-loads the batches produced by load
// in one transaction.
func (r *Repository) Replace(ctx context.Context, load func(context.Context, storage.CopyFn) (int64, error)) (int64, error) {
	del, args, err := deleteAll(r.cfg.Table)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mssql: reset %s: %w", r.cfg.Table, err)
	}
	n, err := load(ctx, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(rows) == 0 {
			return 0, nil
		}
		return bulkCopy(ctx, tx, r.cfg.Table, columns, rows)
	})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// bulkCopy sends rows through one CopyIn statement prepared on tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// Reset deletes all rows from the configured table.
func (r *Repository) Reset(ctx context.Context) error {
	stmt, args, err := deleteAll(r.cfg.Table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mssql: reset %s: %w", r.cfg.Table, err)
	}
	return nil
}

func deleteAll(table string) (string, []any, error) {
	stmt, args, err := sq.Delete(msFQN(table)).PlaceholderFormat(sq.AtP).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("mssql: build delete: %w", err)
	}
	return stmt, args, nil
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.brightest_stars" to
// "[dbo].[brightest_stars]". If no dot is present, returns a single quoted ident.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

// msLiteral quotes s as an N'...' string literal.
func msLiteral(s string) string { return `N'` + strings.ReplaceAll(s, `'`, `''`) + `'` }
