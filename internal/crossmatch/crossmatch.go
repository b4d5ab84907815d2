// Package crossmatch loads the Gaia → Hipparcos best-neighbour table used to
// attach a Hipparcos identifier to extracted stars.
//
// The table is small (about 100k rows) and is loaded once before streaming
// starts; after that the Index is read-only and safe for concurrent use.
package crossmatch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/cosmoscout/gaia-stars/internal/chunk"
	"github.com/cosmoscout/gaia-stars/internal/datasource/file"
)

// Index maps a Gaia source_id to a Hipparcos identifier. A nil *Index is a
// valid, empty index.
type Index struct {
	ids     map[string]string
	skipped int
}

// New builds an Index from an existing mapping. The map is copied.
func New(m map[string]string) *Index {
	ids := make(map[string]string, len(m))
	for k, v := range m {
		ids[k] = v
	}
	return &Index{ids: ids}
}

// Lookup returns the secondary id for primaryID.
func (x *Index) Lookup(primaryID string) (string, bool) {
	if x == nil {
		return "", false
	}
	id, ok := x.ids[primaryID]
	return id, ok
}

// Len returns the number of entries.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// Skipped returns how many data lines were ignored because they had fewer
// than two columns.
func (x *Index) Skipped() int {
	if x == nil {
		return 0
	}
	return x.skipped
}

// Load reads a cross-match CSV from path. Compressed files (.gz, .zst, .xz)
// are decoded transparently. When the file does not exist Load returns
// (nil, nil): running without a cross-match table is allowed.
func Load(ctx context.Context, path string) (*Index, error) {
	if path == "" {
		return nil, nil
	}
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	dec, err := chunk.Decode(path, rc)
	if err != nil {
		return nil, fmt.Errorf("crossmatch: %w", err)
	}
	defer dec.Close()

	x, err := Read(dec)
	if err != nil {
		return nil, fmt.Errorf("crossmatch %s: %w", path, err)
	}
	return x, nil
}

// Read parses a cross-match table: the first line is a header, column 0 is
// the primary id and column 1 the secondary id. Later duplicates win.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	x := &Index{ids: make(map[string]string)}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return x, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 {
			continue
		}
		if len(rec) < 2 {
			x.skipped++
			continue
		}
		x.ids[rec[0]] = rec[1]
	}
}
