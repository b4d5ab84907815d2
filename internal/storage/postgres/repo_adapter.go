package postgres

import (
	"context"
	"fmt"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Replacer   = (*wrappedRepo)(nil)
)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the storage factory together
// with its DDL bootstrapper, so callers stay backend-agnostic:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
//	defer repo.Close()
//	err = storage.EnsureTable(ctx, "postgres", repo, def)
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, def storage.TableDef) error {
		stmt, err := BuildCreateTableSQL(def)
		if err != nil {
			return fmt.Errorf("build table definition: %w", err)
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	})
}
