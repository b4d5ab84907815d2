package ingest

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/checkpoint"
)

func TestStats_CountAndSnapshot(t *testing.T) {
	t.Parallel()

	s := newStats()
	s.count(catalog.Accepted)
	s.count(catalog.Accepted)
	s.count(catalog.RejectNullField)
	s.count(catalog.RejectShortRow)
	s.count(catalog.RejectNullField)

	sum := s.Snapshot()
	assert.Equal(t, int64(5), sum.Rows)
	assert.Equal(t, int64(2), sum.Accepted)
	assert.Equal(t, map[string]int64{"null_field": 2, "short_row": 1}, sum.Rejected)
	assert.Equal(t, int64(3), sum.RejectedTotal())
	assert.True(t, sum.Balanced())

	sum.Rows++
	assert.False(t, sum.Balanced())
}

func TestStats_CheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	c := checkpoint.Counters{
		Chunks: 4, Rows: 9, Accepted: 5, ParseErrors: 2, Retries: 7, Headerless: 1,
		Rejected: map[string]int64{"unresolved": 3, "bad_magnitude": 1},
	}
	s := newStats()
	s.restore(c)
	assert.Equal(t, c, s.counters())
	assert.Equal(t, int64(7), s.Snapshot().Retries)
}

func TestErrAgg_KeepsFirstDistinct(t *testing.T) {
	t.Parallel()

	a := newErrAgg(2)
	for _, m := range []string{"a", "a", "b", "c", "b"} {
		a.add(m)
	}
	assert.Equal(t, []string{"a", "b"}, a.sample())
	assert.Equal(t, 5, a.count)
	assert.Equal(t, 2, a.buckets["b"])
}

func TestLogSummary_WarnsOnMismatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	logSummary(log, Summary{Rows: 10, Accepted: 7, Rejected: map[string]int64{"null_field": 3}}, 7)
	assert.Contains(t, buf.String(), "rejected_null_field=3")
	assert.NotContains(t, buf.String(), "mismatch")

	buf.Reset()
	logSummary(log, Summary{Rows: 10, Accepted: 7}, 7)
	assert.Contains(t, buf.String(), "row accounting mismatch")
	assert.Contains(t, buf.String(), "delta=3")
}
