package mysql

import (
	"context"
	"fmt"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Replacer   = (*wrappedRepo)(nil)
)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, def storage.TableDef) error {
		stmt, err := BuildCreateTableSQL(def)
		if err != nil {
			return fmt.Errorf("build table definition: %w", err)
		}
		return repo.Exec(ctx, stmt)
	})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
