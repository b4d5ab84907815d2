package storage

import (
	"context"
	"fmt"
)

// DefaultBatchSize is used when LoadExtract is given a non-positive size.
const DefaultBatchSize = 5000

// Replacer is implemented by backends that can empty the table and load the
// new rows in one transaction. load must send every batch through copyFn.
type Replacer interface {
	Replace(ctx context.Context, load func(ctx context.Context, copyFn CopyFn) (int64, error)) (int64, error)
}

// LoadExtract inserts ranked rows into repo. rows must be ordered brightest
// first; each is prefixed with its 1-based rank. Values are passed as
// strings so the catalogue text is stored verbatim.
func LoadExtract(ctx context.Context, repo Repository, def TableDef, rows [][]string, batchSize int) (int64, error) {
	if err := checkWidth(def, rows); err != nil {
		return 0, err
	}
	return loadRanked(ctx, def.Names(), rows, batchSize, repo.CopyFrom)
}

// ReplaceExtract replaces the table contents with rows. When repo is a
// Replacer the delete and the load share a transaction and a failed load
// keeps the previous extract; otherwise it resets and then loads.
func ReplaceExtract(ctx context.Context, repo Repository, def TableDef, rows [][]string, batchSize int) (int64, error) {
	if err := checkWidth(def, rows); err != nil {
		return 0, err
	}
	columns := def.Names()
	load := func(ctx context.Context, copyFn CopyFn) (int64, error) {
		return loadRanked(ctx, columns, rows, batchSize, copyFn)
	}
	if r, ok := repo.(Replacer); ok {
		return r.Replace(ctx, load)
	}
	if err := repo.Reset(ctx); err != nil {
		return 0, err
	}
	return load(ctx, repo.CopyFrom)
}

func checkWidth(def TableDef, rows [][]string) error {
	columns := len(def.Columns)
	for i, r := range rows {
		if len(r)+1 != columns {
			return fmt.Errorf("storage: row %d has %d values, table %s has %d data columns", i+1, len(r), def.FQN, columns-1)
		}
	}
	return nil
}

// loadRanked feeds rank-prefixed rows to LoadBatches.
func loadRanked(ctx context.Context, columns []string, rows [][]string, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, batchSize)
	go func() {
		defer close(in)
		for i, r := range rows {
			row := make([]any, 0, len(columns))
			row = append(row, int64(i+1))
			for _, v := range r {
				row = append(row, v)
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	return LoadBatches(ctx, columns, in, batchSize, copyFn)
}
