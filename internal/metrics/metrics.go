// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from an extraction run.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete systems (Prometheus Pushgateway, DogStatsD) live in
//     subpackages so the ingestion code depends only on this package.
//
// Metric names are exported constants so backends can route on them.
package metrics

import "time"

// Metric names.
const (
	StepTotal          = "gaia_step_total"
	StepDuration       = "gaia_step_duration_seconds"
	RowsTotal          = "gaia_rows_total"
	ChunksTotal        = "gaia_chunks_total"
	CompactionsTotal   = "gaia_compactions_total"
	CompactionDuration = "gaia_compaction_duration_seconds"
	SinkRowsTotal      = "gaia_sink_rows_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep measures latency and success/failure of one run phase
// ("crossmatch", "list", "ingest", "emit", "sink").
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the row counter for kind. Kinds are "rows",
// "accepted", "parse_error" and the rejection reasons of the row parser.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordChunk counts a chunk outcome: "done", "retry" or "failed".
func RecordChunk(job, outcome string) {
	backend.IncCounter(ChunksTotal, 1, Labels{
		"job":     job,
		"outcome": outcome,
	})
}

// RecordCompaction counts one reservoir compaction and its duration.
func RecordCompaction(job string, d time.Duration) {
	lbls := Labels{"job": job}
	backend.IncCounter(CompactionsTotal, 1, lbls)
	backend.ObserveHistogram(CompactionDuration, d.Seconds(), lbls)
}

// RecordSinkRows counts extract rows written to a sink ("file", "postgres", ...).
func RecordSinkRows(job, sink string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(SinkRowsTotal, float64(delta), Labels{
		"job":  job,
		"sink": sink,
	})
}
