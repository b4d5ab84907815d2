package emit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/metrics"
	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// Sink receives the final ranked extract. recs are ranked brightest first.
type Sink interface {
	Name() string
	Emit(ctx context.Context, header []string, recs []catalog.StarRecord) (int64, error)
}

// FileSink writes the pipe-delimited extract file.
type FileSink struct {
	Path string
}

func (s *FileSink) Name() string { return "file" }

// Emit writes the file atomically; ctx is not consulted once writing starts.
func (s *FileSink) Emit(ctx context.Context, header []string, recs []catalog.StarRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return WriteFile(s.Path, header, recs)
}

// TableSink loads the extract into a database table through the storage
// factory. The previous rows are replaced so the table always holds one run's
// result; rank 1 is the brightest star. Backends that support it do the
// replacement in one transaction.
type TableSink struct {
	Kind       string
	DSN        string
	Table      string
	AutoCreate bool
	BatchSize  int
}

func (s *TableSink) Name() string { return s.Kind }

func (s *TableSink) Emit(ctx context.Context, header []string, recs []catalog.StarRecord) (int64, error) {
	def := storage.ExtractTable(s.Table, header)
	repo, err := storage.New(ctx, storage.Config{
		Kind:    s.Kind,
		DSN:     s.DSN,
		Table:   def.FQN,
		Columns: def.Names(),
	})
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", s.Kind, err)
	}
	defer repo.Close()

	if s.AutoCreate {
		if err := storage.EnsureTable(ctx, s.Kind, repo, def); err != nil {
			return 0, fmt.Errorf("ensure table %s: %w", def.FQN, err)
		}
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = r.Columns()
	}
	return storage.ReplaceExtract(ctx, repo, def, rows, s.BatchSize)
}

// Emit hands the extract to every sink in order and stops at the first
// failure.
func Emit(ctx context.Context, job string, sinks []Sink, header []string, recs []catalog.StarRecord, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	for _, s := range sinks {
		step := "sink"
		if _, ok := s.(*FileSink); ok {
			step = "emit"
		}

		start := time.Now()
		n, err := s.Emit(ctx, header, recs)
		metrics.RecordStep(job, step, err, time.Since(start))
		if err != nil {
			return fmt.Errorf("emit: %s sink: %w", s.Name(), err)
		}
		metrics.RecordSinkRows(job, s.Name(), n)

		attrs := []any{
			"sink", s.Name(),
			"records", humanize.Comma(n),
			"took", time.Since(start).Round(time.Millisecond),
		}
		if fs, ok := s.(*FileSink); ok {
			attrs = append(attrs, "path", fs.Path)
		}
		log.Info("extract written", attrs...)
	}
	return nil
}
