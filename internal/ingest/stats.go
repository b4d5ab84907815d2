package ingest

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/checkpoint"
)

// parseErrorSample is how many distinct CSV error messages are kept for the
// summary.
const parseErrorSample = 3

// Stats holds the run counters. All fields are updated atomically; the loop
// is the only writer but progress and summary readers may run concurrently.
type Stats struct {
	chunks      atomic.Int64 // chunks fully streamed
	rows        atomic.Int64 // data rows handed to the row parser
	parseErrors atomic.Int64 // lines the CSV reader could not parse
	accepted    atomic.Int64 // rows that became records
	retries     atomic.Int64 // failed acquisition attempts that were retried
	headerless  atomic.Int64 // chunks that ended before their header row
	rejected    [catalog.RejectBadMagnitude + 1]atomic.Int64

	parseAgg *errAgg
}

func newStats() *Stats {
	return &Stats{parseAgg: newErrAgg(parseErrorSample)}
}

// count records the outcome of one parsed row.
func (s *Stats) count(r catalog.Reason) {
	s.rows.Add(1)
	if r == catalog.Accepted {
		s.accepted.Add(1)
		return
	}
	s.rejected[r].Add(1)
}

// Summary is a point-in-time copy of Stats.
type Summary struct {
	Chunks      int64
	Rows        int64
	ParseErrors int64
	Accepted    int64
	Retries     int64
	Headerless  int64
	Rejected    map[string]int64 // by catalog.Reason name, zero counts omitted
	ParseSample []string         // first distinct CSV error messages
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Summary {
	sum := Summary{
		Chunks:      s.chunks.Load(),
		Rows:        s.rows.Load(),
		ParseErrors: s.parseErrors.Load(),
		Accepted:    s.accepted.Load(),
		Retries:     s.retries.Load(),
		Headerless:  s.headerless.Load(),
		Rejected:    map[string]int64{},
		ParseSample: s.parseAgg.sample(),
	}
	for _, r := range catalog.Reasons() {
		if n := s.rejected[r].Load(); n > 0 {
			sum.Rejected[r.String()] = n
		}
	}
	return sum
}

// RejectedTotal sums all rejection reasons.
func (s Summary) RejectedTotal() int64 {
	var n int64
	for _, v := range s.Rejected {
		n += v
	}
	return n
}

// Balanced reports whether every parsed row was either accepted or rejected.
func (s Summary) Balanced() bool {
	return s.Rows == s.Accepted+s.RejectedTotal()
}

func (s *Stats) counters() checkpoint.Counters {
	sum := s.Snapshot()
	return checkpoint.Counters{
		Chunks:      sum.Chunks,
		Rows:        sum.Rows,
		Accepted:    sum.Accepted,
		ParseErrors: sum.ParseErrors,
		Retries:     sum.Retries,
		Headerless:  sum.Headerless,
		Rejected:    sum.Rejected,
	}
}

func (s *Stats) restore(c checkpoint.Counters) {
	s.chunks.Store(c.Chunks)
	s.rows.Store(c.Rows)
	s.accepted.Store(c.Accepted)
	s.parseErrors.Store(c.ParseErrors)
	s.retries.Store(c.Retries)
	s.headerless.Store(c.Headerless)
	for _, r := range catalog.Reasons() {
		s.rejected[r].Store(c.Rejected[r.String()])
	}
}

// logSummary writes the end-of-run line and checks the row accounting.
func logSummary(log *slog.Logger, s Summary, kept int) {
	attrs := []any{
		"chunks", s.Chunks,
		"rows", humanize.Comma(s.Rows),
		"accepted", humanize.Comma(s.Accepted),
		"rejected", humanize.Comma(s.RejectedTotal()),
		"parse_errors", s.ParseErrors,
		"retries", s.Retries,
		"headerless_chunks", s.Headerless,
		"kept", kept,
	}
	reasons := make([]string, 0, len(s.Rejected))
	for k := range s.Rejected {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		attrs = append(attrs, "rejected_"+k, s.Rejected[k])
	}
	log.Info("ingest summary", attrs...)

	for _, msg := range s.ParseSample {
		log.Info("ingest parse error sample", "err", msg)
	}

	if !s.Balanced() {
		log.Warn("row accounting mismatch",
			"rows", s.Rows,
			"accounted", s.Accepted+s.RejectedTotal(),
			"delta", s.Rows-s.Accepted-s.RejectedTotal())
	}
}

// errAgg keeps a count per distinct message and the first limit distinct
// messages.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.buckets[msg] == 1 && len(a.first) < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) sample() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.first...)
}
