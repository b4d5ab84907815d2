// Batched loading of the ranked extract. LoadBatches drains rows from a
// channel and hands each full batch to a CopyFn: Postgres COPY, SQL Server
// bulk copy, a multi-row INSERT for MySQL or a prepared INSERT for SQLite.
// Each successful flush logs a debug line with running totals.

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations should
// insert the provided rows (aligned to 'columns' order) and return the number
// of rows reported as inserted. The function should be safe for repeated calls
// and cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains typed rows from 'in', groups them into batches of size
// 'batchSize', and calls 'copyFn' for each non-empty batch. It returns the total
// number of rows reported by copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Progress is logged on
// each successful flush.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("storage: copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]

		if err != nil {
			slog.Warn("extract: batch copy failed", "inserted", n, "total", total, "err", err)

			return err
		}

		// Progress log per successful batch.
		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		insertedSinceLast := total - lastTotal
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(insertedSinceLast) / sinceLast.Seconds()
		}
		slog.Debug("extract: batch flushed",
			"batch", batches,
			"rps", int64(rps),
			"inserted", n,
			"total_inserted", total,
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
			"since_last", sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total

		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				// Channel closed: flush remaining rows.
				if err := flush(); err != nil {
					return total, err
				}
				slog.Debug("extract: load complete", "total_inserted", total)

				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
