// Package csv streams the rows of a catalogue chunk. Chunks are plain CSV
// preceded by a fixed block of metadata lines (the Gaia ECSV preamble) that
// is skipped before the header row.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultPreambleLines is the number of metadata lines at the top of every
// Gaia DR3 gaia_source CSV file.
const DefaultPreambleLines = 1000

// ErrNoHeader means the input ended before a header row was found.
var ErrNoHeader = errors.New("csv: no header row")

// Options tunes StreamRows. The zero value skips no preamble and uses ','.
type Options struct {
	// PreambleLines physical lines are discarded before the header row.
	PreambleLines int
	// Comma is the field delimiter; 0 means ','.
	Comma rune
	// LazyQuotes is passed to csv.Reader.
	LazyQuotes bool
	// HeartbeatEvery logs a debug line every N data rows; 0 disables.
	HeartbeatEvery int
	// Logger receives heartbeat lines; nil means slog.Default().
	Logger *slog.Logger
}

// Result counts what StreamRows saw.
type Result struct {
	Rows        int // data rows handed to onRow
	ParseErrors int // rows dropped by the CSV reader and reported to onErr
}

// StreamRows reads src, skipping the preamble, and reports the header row to
// onHeader and every data row to onRow. The slices passed to both callbacks
// are reused by the reader after the callback returns; their strings are not.
//
// A CSV syntax error on one row is soft: it is reported via onErr(line, err)
// and the stream continues. Read failures of the underlying file, errors
// returned by the callbacks and context cancellation stop the stream and are
// returned. Cancellation is checked between rows, so a row is either fully
// handled or not handled at all.
//
// src is always closed.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	opt Options,
	onHeader func(header []string) error,
	onRow func(line int, rec []string) error,
	onErr func(line int, err error),
) (Result, error) {
	defer src.Close()

	var res Result
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	br := bufio.NewReaderSize(src, 1<<20)
	skipped, err := skipLines(br, opt.PreambleLines)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, fmt.Errorf("%w: input ended after %d preamble lines", ErrNoHeader, skipped)
		}
		return res, fmt.Errorf("csv: skip preamble: %w", err)
	}

	cr := csv.NewReader(br)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1 // width is checked per field by the row parser
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, ErrNoHeader
		}
		return res, fmt.Errorf("csv: read header: %w", err)
	}
	if onHeader != nil {
		if err := onHeader(StripHeaderBOM(hdr)); err != nil {
			return res, err
		}
	}

	for {
		// cooperative cancel
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return res, fmt.Errorf("csv: read: %w", err)
			}
			res.ParseErrors++
			if onErr != nil {
				onErr(skipped+pe.StartLine, err)
			}
			continue
		}

		line, _ := cr.FieldPos(0)
		res.Rows++
		if err := onRow(skipped+line, rec); err != nil {
			return res, err
		}
		if opt.HeartbeatEvery > 0 && res.Rows%opt.HeartbeatEvery == 0 {
			logger.Debug("reader", "line", skipped+line, "rows", res.Rows)
		}
	}
}

// skipLines discards n lines from br and returns how many were discarded.
// Lines longer than the buffer are handled.
func skipLines(br *bufio.Reader, n int) (int, error) {
	for i := 0; i < n; i++ {
		for {
			_, err := br.ReadSlice('\n')
			if err == nil {
				break
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			return i, err
		}
	}
	return n, nil
}
