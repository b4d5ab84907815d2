package storage

import (
	"context"
	"fmt"
	"sync"
)

// ColumnDef describes one column of a table to create.
type ColumnDef struct {
	Name       string
	Type       string // logical type: "int" or "text"
	Nullable   bool
	PrimaryKey bool
}

// TableDef describes a table to create.
type TableDef struct {
	FQN     string // table name, optionally schema-qualified
	Columns []ColumnDef
}

// RankColumn is the leading integer column of the extract table; 1 is the
// brightest star.
const RankColumn = "rank"

// ExtractTable returns the definition of the extract table: a rank column
// followed by one text column per header name. Values are stored verbatim.
func ExtractTable(fqn string, header []string) TableDef {
	cols := make([]ColumnDef, 0, len(header)+1)
	cols = append(cols, ColumnDef{Name: RankColumn, Type: "int", PrimaryKey: true})
	for _, h := range header {
		cols = append(cols, ColumnDef{Name: h, Type: "text"})
	}
	return TableDef{FQN: fqn, Columns: cols}
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// DDLBootstrapper applies backend-specific DDL (typically CREATE TABLE IF
// NOT EXISTS) for def via repo.Exec.
type DDLBootstrapper func(ctx context.Context, repo Repository, def TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given storage
// kind. It is typically called from backend packages' init() functions.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the DDLBootstrapper for kind and invokes it.
func EnsureTable(ctx context.Context, kind string, repo Repository, def TableDef) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, def)
}
