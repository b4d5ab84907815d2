// Package emit writes the ranked extract: a header line followed by the
// selected records, dimmest first and brightest last, one '|'-delimited,
// '\n'-terminated ASCII line per record.
package emit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/text/transform"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
)

const (
	// Delimiter separates the values of one line.
	Delimiter = "|"
	// DefaultSecondaryName is the header name of the cross-match column.
	DefaultSecondaryName = "hipparcos_id"
)

// ErrDelimiterInValue is returned when a value would break the line format.
var ErrDelimiterInValue = errors.New("emit: value contains a delimiter or line break")

// Header returns the seven output column names: the configured source names
// with the secondary identifier inserted second.
func Header(cols catalog.Columns, secondary string) []string {
	if secondary == "" {
		secondary = DefaultSecondaryName
	}
	return []string{
		cols[catalog.PrimaryID],
		secondary,
		cols[catalog.RA],
		cols[catalog.Dec],
		cols[catalog.Parallax],
		cols[catalog.Magnitude],
		cols[catalog.ColorIndex],
	}
}

// Write renders header and recs to w. recs must be ranked brightest first;
// they are written in reverse. It returns the number of records written.
func Write(w io.Writer, header []string, recs []catalog.StarRecord) (int64, error) {
	tw := transform.NewWriter(w, asciiOnly{})
	bw := bufio.NewWriterSize(tw, 1<<16)

	if err := writeLine(bw, header); err != nil {
		return 0, fmt.Errorf("emit: header: %w", err)
	}
	var n int64
	for i := len(recs) - 1; i >= 0; i-- {
		if err := writeLine(bw, recs[i].Columns()); err != nil {
			return n, fmt.Errorf("emit: record %d (source %s): %w", i+1, recs[i].SourceID(), err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("emit: %w", err)
	}
	if err := tw.Close(); err != nil {
		return n, fmt.Errorf("emit: %w", err)
	}
	return n, nil
}

func writeLine(bw *bufio.Writer, vals []string) error {
	for i, v := range vals {
		if strings.ContainsAny(v, Delimiter+"\r\n") {
			return fmt.Errorf("%w: %q", ErrDelimiterInValue, v)
		}
		if i > 0 {
			if _, err := bw.WriteString(Delimiter); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(v); err != nil {
			return err
		}
	}
	return bw.WriteByte('\n')
}

// WriteFile writes the extract to path atomically: the data goes to a
// pending file in the same directory which is synced and then renamed over
// path. On error path is left untouched.
func WriteFile(path string, header []string, recs []catalog.StarRecord) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("emit: create dir %s: %w", dir, err)
	}

	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(dir),
		renameio.WithStaticPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("emit: create temp file: %w", err)
	}
	defer pf.Cleanup()

	n, err := Write(pf, header, recs)
	if err != nil {
		return 0, err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("emit: replace %s: %w", path, err)
	}
	return n, nil
}
