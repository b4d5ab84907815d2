// Package checkpoint persists the progress of an extraction run so that it
// can resume after an interruption: the index of the next chunk, the run
// counters and the current reservoir contents.
//
// A checkpoint file is JSON compressed with LZ4 frames. It is written to a
// pending file next to the target, synced and renamed into place, so a crash
// while saving leaves the previous checkpoint intact.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/reservoir"
)

// Version is the current on-disk format version.
const Version = 1

var (
	// ErrNotFound is returned by Load when no checkpoint exists.
	ErrNotFound = errors.New("checkpoint: not found")
	// ErrMismatch is returned by Check when a checkpoint belongs to a
	// different location list or selection setting.
	ErrMismatch = errors.New("checkpoint: does not match this run")
)

// Counters mirrors the ingestion counters at the time of the checkpoint.
type Counters struct {
	Chunks      int64            `json:"chunks"`
	Rows        int64            `json:"rows"`
	Accepted    int64            `json:"accepted"`
	ParseErrors int64            `json:"parse_errors"`
	Retries     int64            `json:"retries"`
	Headerless  int64            `json:"headerless_chunks"`
	Rejected    map[string]int64 `json:"rejected,omitempty"`
}

// Record is the serialized form of a catalog.StarRecord.
type Record struct {
	Values    catalog.Values `json:"v"`
	Secondary string         `json:"s"`
}

// State is the content of a checkpoint file.
type State struct {
	Version       int             `json:"version"`
	Job           string          `json:"job"`
	CreatedAt     time.Time       `json:"created_at"`
	NextChunk     int             `json:"next_chunk"`
	LocationsHash string          `json:"locations_hash"`
	TargetCount   int             `json:"target_count"`
	CapacityRatio float64         `json:"capacity_ratio"`
	Counters      Counters        `json:"counters"`
	Reservoir     reservoir.Stats `json:"reservoir"`
	Records       []Record        `json:"records"`
}

// HashLocations fingerprints an ordered chunk location list. Any change in
// membership or order changes the hash.
func HashLocations(locs []string) string {
	h := xxh3.New()
	for _, l := range locs {
		_, _ = h.WriteString(l)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16) + "-" + strconv.Itoa(len(locs))
}

// FromRecords converts reservoir contents for persistence.
func FromRecords(recs []catalog.StarRecord) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{Values: r.Values(), Secondary: r.SecondaryID()}
	}
	return out
}

// StarRecords rebuilds the persisted records. A record that no longer
// validates means the file was edited or corrupted.
func (s *State) StarRecords() ([]catalog.StarRecord, error) {
	out := make([]catalog.StarRecord, 0, len(s.Records))
	for i, r := range s.Records {
		rec, err := catalog.NewStarRecord(r.Values, r.Secondary)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Check verifies that s was written by a run over the same locations with
// the same selection settings.
func (s *State) Check(locationsHash string, target int, ratio float64) error {
	switch {
	case s.Version != Version:
		return fmt.Errorf("%w: version %d, want %d", ErrMismatch, s.Version, Version)
	case s.LocationsHash != locationsHash:
		return fmt.Errorf("%w: chunk list changed (%s != %s)", ErrMismatch, s.LocationsHash, locationsHash)
	case s.TargetCount != target:
		return fmt.Errorf("%w: target_count %d, want %d", ErrMismatch, s.TargetCount, target)
	case s.CapacityRatio != ratio:
		return fmt.Errorf("%w: capacity_ratio %v, want %v", ErrMismatch, s.CapacityRatio, ratio)
	case s.NextChunk < 0:
		return fmt.Errorf("%w: negative next_chunk %d", ErrMismatch, s.NextChunk)
	}
	return nil
}

// Save writes s to path atomically.
func Save(path string, s *State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}
	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir))
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	defer pf.Cleanup()

	zw := lz4.NewWriter(pf)
	if err := json.NewEncoder(zw).Encode(s); err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("checkpoint: compress: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("checkpoint: replace %s: %w", path, err)
	}
	return nil
}

// Load reads the checkpoint at path. A missing file yields ErrNotFound.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	defer f.Close()

	var s State
	dec := json.NewDecoder(lz4.NewReader(f))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	// Trailing garbage after the JSON document means a damaged file.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("checkpoint: decode %s: trailing data", path)
	}
	return &s, nil
}

// Remove deletes the checkpoint at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Describe renders a one-line summary for logs.
func (s *State) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "next_chunk=%d records=%d rows=%d", s.NextChunk, len(s.Records), s.Counters.Rows)
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, " saved=%s", s.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}
