// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and go-sql-driver/mysql. Rows are written with multi-row
// INSERT statements inside one transaction per batch, or one transaction
// for a whole Replace.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// maxPlaceholders is the server limit on bind parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN     string // e.g. "user:pass@tcp(localhost:3306)/gaia"
	Table   string
	Columns []string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens and pings the database and returns a Close function
// for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
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

// insertStatements splits rows into multi-row INSERTs that stay under the
// placeholder limit.
func insertStatements(table string, columns []string, rows [][]any) ([]string, [][]any, error) {
	per := max(maxPlaceholders/len(columns), 1)

	var (
		stmts []string
		args  [][]any
	)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		b := sq.Insert(myFQN(table)).Columns(mapIdent(columns)...)
		for i, row := range rows[start:end] {
			if len(row) != len(columns) {
				return nil, nil, fmt.Errorf("mysql: row %d has %d values, want %d", start+i, len(row), len(columns))
			}
			b = b.Values(row...)
		}
		s, a, err := b.ToSql()
		if err != nil {
			return nil, nil, fmt.Errorf("mysql: build insert: %w", err)
		}
		stmts = append(stmts, s)
		args = append(args, a)
	}
	return stmts, args, nil
}

// CopyFrom inserts rows into the configured table in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	n, err := copyRows(ctx, tx, r.cfg.Table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Replace deletes the table rows and runs load in one transaction.
func (r *Repository) Replace(ctx context.Context, load func(context.Context, storage.CopyFn) (int64, error)) (int64, error) {
	del, args, err := sq.Delete(myFQN(r.cfg.Table)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("mysql: build delete: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mysql: reset %s: %w", r.cfg.Table, err)
	}
	n, err := load(ctx, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(columns) == 0 {
			return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
		}
		return copyRows(ctx, tx, r.cfg.Table, columns, rows)
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

func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmts, args, err := insertStatements(table, columns, rows)
	if err != nil {
		return 0, err
	}
	var n int64
	for i, s := range stmts {
		res, err := tx.ExecContext(ctx, s, args[i]...)
		if err != nil {
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		n += affected
	}
	return n, nil
}

// Exec executes a single statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// Reset deletes all rows from the configured table.
func (r *Repository) Reset(ctx context.Context) error {
	stmt, args, err := sq.Delete(myFQN(r.cfg.Table)).ToSql()
	if err != nil {
		return fmt.Errorf("mysql: build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mysql: reset %s: %w", r.cfg.Table, err)
	}
	return nil
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly schema-qualified name like "gaia.brightest_stars".
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
