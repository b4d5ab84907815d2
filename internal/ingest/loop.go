// Package ingest drives the chunk-by-chunk extraction: each chunk is
// acquired (downloaded and decoded, retried until it succeeds), its header
// resolved, and every row parsed and offered to the bounded reservoir.
//
// Chunk lifecycle:
//
//	Acquiring+Decoding (one retried unit)
//	     → HeaderPending (schema resolved once per chunk)
//	     → StreamingRows (parse → reservoir)
//	     → Done (staged files removed, checkpoint saved)
//
// Chunks are consumed strictly in order. With prefetching, chunk N+1 is
// acquired in a second goroutine while chunk N streams; insertion stays
// serialized in the consuming goroutine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/checkpoint"
	"github.com/cosmoscout/gaia-stars/internal/chunk"
	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
	"github.com/cosmoscout/gaia-stars/internal/metrics"
	csvparser "github.com/cosmoscout/gaia-stars/internal/parser/csv"
	"github.com/cosmoscout/gaia-stars/internal/reservoir"
	"github.com/cosmoscout/gaia-stars/internal/retry"
)

// Acquirer stages a chunk location. *chunk.Stager implements it.
type Acquirer interface {
	Acquire(ctx context.Context, loc string) (*chunk.Staged, error)
}

var _ Acquirer = (*chunk.Stager)(nil)

// Options configures a Loop.
type Options struct {
	Job     string
	Columns catalog.Columns
	// CSV carries preamble length, delimiter and quoting; its Logger and
	// HeartbeatEvery are set by the loop, the latter from ProgressEvery.
	CSV   csvparser.Options
	Retry retry.Policy
	// Prefetch acquires the next chunk while the current one streams.
	Prefetch bool
	// MaxChunks, when > 0, limits the run to the first MaxChunks locations.
	MaxChunks int
	// ProgressEvery logs a progress line every N data rows; 0 disables.
	ProgressEvery int64
	// CheckpointPath, when set, receives a checkpoint after every chunk.
	CheckpointPath string
	Logger         *slog.Logger
}

// Loop owns the reservoir and the counters of one run.
type Loop struct {
	acq    Acquirer
	parser *catalog.Parser
	res    *reservoir.Reservoir
	stats  *Stats
	opt    Options
	log    *slog.Logger

	next    int    // index of the next chunk to process
	locHash string // fingerprint of the full location list

	// test seam
	streamRows func(
		ctx context.Context,
		src io.ReadCloser,
		opt csvparser.Options,
		onHeader func([]string) error,
		onRow func(int, []string) error,
		onErr func(int, error),
	) (csvparser.Result, error)
}

// New returns a Loop feeding res. xmatch may be nil.
func New(acq Acquirer, res *reservoir.Reservoir, xmatch catalog.Lookup, opt Options) *Loop {
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}
	l := &Loop{
		acq:        acq,
		parser:     catalog.NewParser(xmatch),
		res:        res,
		stats:      newStats(),
		opt:        opt,
		log:        log,
		streamRows: csvparser.StreamRows,
	}
	res.OnCompact(func(evicted int, d time.Duration) {
		metrics.RecordCompaction(opt.Job, d)
		log.Debug("reservoir compacted", "evicted", evicted, "took", d)
	})
	return l
}

// Stats exposes the run counters.
func (l *Loop) Stats() *Stats { return l.stats }

// Reservoir returns the reservoir the loop feeds.
func (l *Loop) Reservoir() *reservoir.Reservoir { return l.res }

// Resume restores counters, reservoir contents and the chunk position from a
// checkpoint taken over the same location list.
func (l *Loop) Resume(st *checkpoint.State, locs []string) error {
	if err := st.Check(checkpoint.HashLocations(locs), l.res.Target(), l.res.Ratio()); err != nil {
		return err
	}
	recs, err := st.StarRecords()
	if err != nil {
		return err
	}
	l.res.Restore(recs, st.Reservoir)
	l.stats.restore(st.Counters)
	l.next = st.NextChunk
	l.log.Info("resumed from checkpoint", "state", st.Describe())
	return nil
}

// Run processes locs in order, starting at the resume position. It returns
// nil once every chunk has been streamed. On error or cancellation the
// reservoir keeps the state reached so far.
func (l *Loop) Run(ctx context.Context, locs []string) error {
	l.locHash = checkpoint.HashLocations(locs)
	if l.opt.MaxChunks > 0 && l.opt.MaxChunks < len(locs) {
		locs = locs[:l.opt.MaxChunks]
	}
	if l.next >= len(locs) {
		l.log.Info("no chunks left to process", "chunks", len(locs), "next", l.next)
		return nil
	}

	l.log.Info("ingest started",
		"chunks", len(locs),
		"first", l.next,
		"target", l.res.Target(),
		"capacity", l.res.Capacity(),
		"prefetch", l.opt.Prefetch)

	start := time.Now()
	var err error
	if l.opt.Prefetch {
		err = l.runPrefetch(ctx, locs)
	} else {
		err = l.runSequential(ctx, locs)
	}
	metrics.RecordStep(l.opt.Job, "ingest", err, time.Since(start))
	return err
}

// Finalize compacts the reservoir one last time, logs the summary and
// returns the ranked records, brightest first.
func (l *Loop) Finalize() []catalog.StarRecord {
	recs := l.res.Finalize()
	logSummary(l.log, l.stats.Snapshot(), len(recs))
	return recs
}

func (l *Loop) runSequential(ctx context.Context, locs []string) error {
	for i := l.next; i < len(locs); i++ {
		st, err := l.acquire(ctx, i, locs[i])
		if err != nil {
			return err
		}
		if err := l.consume(ctx, i, len(locs), st); err != nil {
			return err
		}
	}
	return nil
}

// runPrefetch runs acquisition one chunk ahead of streaming. The channel is
// unbuffered, so at most one staged chunk waits while another streams. A
// chunk that is already streaming is finished even if acquisition of the
// next one fails, so its checkpoint is still written.
func (l *Loop) runPrefetch(ctx context.Context, locs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	ready := make(chan *chunk.Staged)

	g.Go(func() error {
		defer close(ready)
		for i := l.next; i < len(locs); i++ {
			st, err := l.acquire(gctx, i, locs[i])
			if err != nil {
				return err
			}
			select {
			case ready <- st:
			case <-gctx.Done():
				_ = st.Remove()
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		i := l.next
		for st := range ready {
			if err := l.consume(ctx, i, len(locs), st); err != nil {
				// Unblock the producer and drop whatever it staged.
				go func() {
					for st := range ready {
						_ = st.Remove()
					}
				}()
				return err
			}
			i++
		}
		return nil
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// acquire stages one chunk, retrying failures per the retry policy. Missing
// local files and 404/410 responses are not retried.
func (l *Loop) acquire(ctx context.Context, idx int, loc string) (*chunk.Staged, error) {
	p := l.opt.Retry
	userHook := p.OnRetry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		l.stats.retries.Add(1)
		metrics.RecordChunk(l.opt.Job, "retry")
		l.log.Warn("chunk acquisition failed; retrying",
			"chunk", idx, "location", loc, "attempt", attempt, "backoff", wait, "err", err)
		if userHook != nil {
			userHook(attempt, wait, err)
		}
	}

	var st *chunk.Staged
	err := p.Do(ctx, func(ctx context.Context) error {
		s, err := l.acq.Acquire(ctx, loc)
		if err != nil {
			if isPermanent(err) {
				return retry.Permanent(err)
			}
			return err
		}
		st = s
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			metrics.RecordChunk(l.opt.Job, "failed")
		}
		return nil, fmt.Errorf("ingest: acquire chunk %d (%s): %w", idx, loc, err)
	}
	return st, nil
}

func isPermanent(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var se *httpds.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
	}
	return false
}

// consume streams a staged chunk, removes it and checkpoints.
func (l *Loop) consume(ctx context.Context, idx, total int, st *chunk.Staged) error {
	defer func() {
		if err := st.Remove(); err != nil {
			l.log.Warn("could not remove staged chunk", "path", st.Path, "err", err)
		}
	}()

	start := time.Now()
	cs, err := l.streamChunk(ctx, st)
	if err != nil {
		if ctx.Err() != nil {
			l.log.Info("ingest canceled mid-chunk; reservoir keeps rows streamed so far",
				"chunk", idx, "location", st.Location)
			return ctx.Err()
		}
		metrics.RecordChunk(l.opt.Job, "failed")
		return fmt.Errorf("ingest: stream chunk %d (%s): %w", idx, st.Location, err)
	}

	l.stats.chunks.Add(1)
	l.next = idx + 1
	metrics.RecordChunk(l.opt.Job, "done")
	cs.record(l.opt.Job)

	l.log.Info("chunk done",
		"chunk", fmt.Sprintf("%d/%d", idx+1, total),
		"location", st.Location,
		"csv_size", humanize.Bytes(uint64(max(st.Size, 0))),
		"rows", humanize.Comma(cs.rows),
		"accepted", humanize.Comma(cs.accepted),
		"parse_errors", cs.parseErrors,
		"reservoir", l.res.Len(),
		"took", time.Since(start).Round(time.Millisecond))

	if l.opt.CheckpointPath != "" {
		if err := l.saveCheckpoint(); err != nil {
			return err
		}
	}
	return nil
}

// chunkStats counts one chunk for metrics and the done line.
type chunkStats struct {
	rows        int64
	accepted    int64
	parseErrors int64
	rejected    [catalog.RejectBadMagnitude + 1]int64
}

func (c *chunkStats) record(job string) {
	metrics.RecordRow(job, catalog.Accepted.String(), c.accepted)
	metrics.RecordRow(job, "parse_error", c.parseErrors)
	for _, r := range catalog.Reasons() {
		metrics.RecordRow(job, r.String(), c.rejected[r])
	}
}

func (l *Loop) streamChunk(ctx context.Context, st *chunk.Staged) (*chunkStats, error) {
	src, err := st.Open(ctx)
	if err != nil {
		return nil, err
	}

	cs := &chunkStats{}
	var schema catalog.Schema

	opt := l.opt.CSV
	opt.Logger = l.log.With("location", st.Location)
	opt.HeartbeatEvery = int(l.opt.ProgressEvery)

	onHeader := func(header []string) error {
		schema = catalog.Resolve(header, l.opt.Columns)
		if !schema.Resolved() {
			l.log.Warn("chunk header lacks required columns; all rows will be rejected",
				"location", st.Location, "missing", schema.Missing())
		}
		return nil
	}

	onRow := func(_ int, row []string) error {
		rec, reason := l.parser.Parse(schema, row)
		l.stats.count(reason)
		cs.rows++
		if reason == catalog.Accepted {
			cs.accepted++
			l.res.Insert(rec)
		} else {
			cs.rejected[reason]++
		}
		if every := l.opt.ProgressEvery; every > 0 {
			if total := l.stats.rows.Load(); total%every == 0 {
				l.log.Info("progress",
					"rows", humanize.Comma(total),
					"accepted", humanize.Comma(l.stats.accepted.Load()),
					"reservoir", l.res.Len())
			}
		}
		return nil
	}

	onErr := func(line int, err error) {
		l.stats.parseErrors.Add(1)
		l.stats.parseAgg.add(err.Error())
		cs.parseErrors++
		l.log.Debug("csv parse error", "location", st.Location, "line", line, "err", err)
	}

	if _, err := l.streamRows(ctx, src, opt, onHeader, onRow, onErr); err != nil {
		if !errors.Is(err, csvparser.ErrNoHeader) {
			return cs, err
		}
		// Treated like a header that resolves nothing: the chunk has no rows.
		l.stats.headerless.Add(1)
		l.log.Warn("chunk has no header row; skipping it",
			"location", st.Location, "err", err)
	}
	return cs, nil
}

func (l *Loop) saveCheckpoint() error {
	// Compacting first bounds the checkpoint to target records; the selected
	// set is unaffected because compaction only drops non-candidates.
	l.res.Compact()
	state := &checkpoint.State{
		Version:       checkpoint.Version,
		Job:           l.opt.Job,
		CreatedAt:     time.Now().UTC(),
		NextChunk:     l.next,
		LocationsHash: l.locHash,
		TargetCount:   l.res.Target(),
		CapacityRatio: l.res.Ratio(),
		Counters:      l.stats.counters(),
		Reservoir:     l.res.Stats(),
		Records:       checkpoint.FromRecords(l.res.Snapshot()),
	}
	if err := checkpoint.Save(l.opt.CheckpointPath, state); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	l.log.Debug("checkpoint saved", "path", l.opt.CheckpointPath, "state", state.Describe())
	return nil
}
