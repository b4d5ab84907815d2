// Package storage contains storage-agnostic contracts and utilities for
// loading the ranked extract into a database table.
//
// Backends register a Factory under their kind ("postgres", "sqlite",
// "mssql", "mysql") in init; importing internal/storage/all enables all of
// them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind    string
	DSN     string
	Table   string   // target table, optionally schema-qualified
	Columns []string // destination columns in row order
}

// Repository is the minimal contract a backend fulfils.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned with columns and returns the number
	// of rows inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Reset deletes every row of the configured table.
	Reset(ctx context.Context) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
