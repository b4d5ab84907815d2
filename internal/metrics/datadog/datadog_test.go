package datadog

import (
	"reflect"
	"testing"

	"github.com/cosmoscout/gaia-stars/internal/metrics"
)

type countCall struct {
	name  string
	value int64
	tags  []string
}

type fakeClient struct {
	counts  []countCall
	hists   []float64
	flushed bool
	closed  bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.counts = append(f.counts, countCall{name, value, tags})
	return nil
}

func (f *fakeClient) Histogram(_ string, value float64, _ []string, _ float64) error {
	f.hists = append(f.hists, value)
	return nil
}

func (f *fakeClient) Flush() error { f.flushed = true; return nil }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("expected error for empty Addr")
	}
}

func TestBackend_ForwardsWithSortedTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 12, metrics.Labels{"kind": "accepted", "job": "gaia"})
	b.ObserveHistogram(metrics.CompactionDuration, 0.75, metrics.Labels{"job": "gaia"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	want := countCall{name: metrics.RowsTotal, value: 12, tags: []string{"job:gaia", "kind:accepted"}}
	if len(fc.counts) != 1 || !reflect.DeepEqual(fc.counts[0], want) {
		t.Fatalf("counts = %#v, want %#v", fc.counts, want)
	}
	if len(fc.hists) != 1 || fc.hists[0] != 0.75 {
		t.Fatalf("hists = %v", fc.hists)
	}
	if !fc.flushed || !fc.closed {
		t.Fatalf("expected Flush and Close, got flushed=%v closed=%v", fc.flushed, fc.closed)
	}
}

func TestBackend_NilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.ChunksTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if labelsToTags(nil) != nil {
		t.Fatalf("labelsToTags(nil) should be nil")
	}
}
