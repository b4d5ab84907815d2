// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A run is a batch job with no long-lived HTTP server, so collected metrics
// are pushed to a Pushgateway on Flush instead of being scraped. All
// Prometheus-specific dependencies stay in this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/cosmoscout/gaia-stars/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // gaia_step_total{step,status}
	stepDuration *prometheus.SummaryVec // gaia_step_duration_seconds{step,status}

	rowCounter   *prometheus.CounterVec // gaia_rows_total{kind}
	chunkCounter *prometheus.CounterVec // gaia_chunks_total{outcome}
	sinkCounter  *prometheus.CounterVec // gaia_sink_rows_total{sink}

	compactions        prometheus.Counter   // gaia_compactions_total
	compactionDuration prometheus.Histogram // gaia_compaction_duration_seconds
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the configured job name).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "gaiastars"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Run phase executions, partitioned by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of run phases in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Catalogue rows per outcome (rows, accepted, parse_error, rejection reasons).",
		}, []string{"kind"}),
		chunkCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Chunk acquisition outcomes (done, retry, failed).",
		}, []string{"outcome"}),
		sinkCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.SinkRowsTotal,
			Help: "Extract rows written per sink.",
		}, []string{"sink"}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.CompactionsTotal,
			Help: "Reservoir compactions.",
		}),
		compactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.CompactionDuration,
			Help:    "Time spent sorting and truncating the reservoir.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":        b.stepCounter,
		"step summary":        b.stepDuration,
		"row counter":         b.rowCounter,
		"chunk counter":       b.chunkCounter,
		"sink counter":        b.sinkCounter,
		"compaction counter":  b.compactions,
		"compaction duration": b.compactionDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.ChunksTotal:
		if b.chunkCounter != nil {
			b.chunkCounter.WithLabelValues(labels["outcome"]).Add(delta)
		}
	case metrics.SinkRowsTotal:
		if b.sinkCounter != nil {
			b.sinkCounter.WithLabelValues(labels["sink"]).Add(delta)
		}
	case metrics.CompactionsTotal:
		if b.compactions != nil {
			b.compactions.Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
		}
	case metrics.CompactionDuration:
		if b.compactionDuration != nil {
			b.compactionDuration.Observe(value)
		}
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
