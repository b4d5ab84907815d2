package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/checkpoint"
	"github.com/cosmoscout/gaia-stars/internal/chunk"
	"github.com/cosmoscout/gaia-stars/internal/config"
	"github.com/cosmoscout/gaia-stars/internal/crossmatch"
	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
	"github.com/cosmoscout/gaia-stars/internal/emit"
	"github.com/cosmoscout/gaia-stars/internal/ingest"
	"github.com/cosmoscout/gaia-stars/internal/logging"
	"github.com/cosmoscout/gaia-stars/internal/metrics"
	"github.com/cosmoscout/gaia-stars/internal/reservoir"
)

type runFlags struct {
	resume    bool
	maxChunks int
	target    int
	output    string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream every chunk and emit the brightest stars",
		Long: `Stream every chunk and emit the brightest stars.

Examples:
  gaiastars run
  gaiastars run --config gaiastars.yaml --target 1000000
  gaiastars run --resume        # continue an interrupted checkpointed run
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := checkConfig(cfg, g.configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(cfg, logging.NewRunID(), cmd.ErrOrStderr())
			return runExtraction(ctx, cfg, log)
		},
	}

	cmd.Flags().BoolVar(&f.resume, "resume", false, "enable checkpoints and resume from an existing one")
	cmd.Flags().IntVar(&f.maxChunks, "max-chunks", 0, "process at most this many chunks (0 = all)")
	cmd.Flags().IntVar(&f.target, "target", 0, "number of stars to keep (overrides selection.target_count)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "extract file path (overrides output.path)")

	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("resume") && f.resume {
		cfg.Checkpoint.Enabled = true
		cfg.Checkpoint.Resume = true
	}
	if cmd.Flags().Changed("max-chunks") {
		cfg.Source.MaxChunks = f.maxChunks
	}
	if cmd.Flags().Changed("target") {
		cfg.Selection.TargetCount = f.target
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = f.output
	}
}

// runExtraction runs one extraction: cross-match, listing, ingest, emit.
// A canceled run emits nothing; with checkpoints enabled it can be resumed.
func runExtraction(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	start := time.Now()
	flush := setupMetrics(cfg, log)
	defer flush()

	log.Info("run started",
		"source", cfg.Source.Kind,
		"target", humanize.Comma(int64(cfg.Selection.TargetCount)),
		"capacity_ratio", cfg.Selection.CapacityRatio,
		"output", cfg.Output.Path,
		"storage", cfg.Storage.Kind)

	xmatch, err := loadCrossmatch(ctx, cfg, log)
	if err != nil {
		return err
	}

	client := newHTTPClient(cfg)
	locs, err := listChunks(ctx, cfg, client, log)
	if err != nil {
		return err
	}

	res, err := reservoir.New(cfg.Selection.TargetCount, cfg.Selection.CapacityRatio)
	if err != nil {
		return err
	}

	stager := chunk.NewStager(client, cfg.Staging.Dir, log)
	if err := stager.Prepare(); err != nil {
		return err
	}
	if !cfg.Staging.Keep {
		defer func() {
			if err := stager.Cleanup(); err != nil {
				log.Warn("could not remove staging directory", "dir", stager.Dir(), "err", err)
			}
		}()
	}

	opt := ingest.Options{
		Job:           cfg.Job,
		Columns:       cfg.Parser.Columns.Catalog(),
		CSV:           csvOptions(cfg),
		Retry:         retryPolicy(cfg),
		Prefetch:      cfg.Staging.Prefetch,
		MaxChunks:     cfg.Source.MaxChunks,
		ProgressEvery: int64(cfg.Log.ProgressEvery),
		Logger:        log,
	}
	if cfg.Checkpoint.Enabled {
		opt.CheckpointPath = cfg.Checkpoint.Path
	}

	var lookup catalog.Lookup
	if xmatch != nil {
		lookup = xmatch
	}
	loop := ingest.New(stager, res, lookup, opt)

	if cfg.Checkpoint.Enabled && cfg.Checkpoint.Resume {
		if err := resume(loop, cfg.Checkpoint.Path, locs, log); err != nil {
			return err
		}
	}

	if err := loop.Run(ctx, locs); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("run interrupted; no extract written",
				"checkpoint", cfg.Checkpoint.Enabled,
				"reservoir", res.Len())
		}
		return err
	}

	recs := loop.Finalize()
	header := emit.Header(cfg.Parser.Columns.Catalog(), cfg.Crossmatch.Column)
	if err := emit.Emit(ctx, cfg.Job, newSinks(cfg), header, recs, log); err != nil {
		return err
	}

	if cfg.Checkpoint.Enabled {
		if err := checkpoint.Remove(cfg.Checkpoint.Path); err != nil {
			log.Warn("could not remove checkpoint", "path", cfg.Checkpoint.Path, "err", err)
		}
	}

	metrics.RecordStep(cfg.Job, "run", nil, time.Since(start))
	log.Info("run finished",
		"stars", humanize.Comma(int64(len(recs))),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

func loadCrossmatch(ctx context.Context, cfg *config.Config, log *slog.Logger) (*crossmatch.Index, error) {
	start := time.Now()
	x, err := crossmatch.Load(ctx, cfg.Crossmatch.Path)
	metrics.RecordStep(cfg.Job, "crossmatch", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load cross-match table: %w", err)
	}
	if x == nil {
		log.Info("cross-match table not found; secondary ids default to "+catalog.NoMatch, "path", cfg.Crossmatch.Path)
		return nil, nil
	}
	log.Info("cross-match table loaded",
		"path", cfg.Crossmatch.Path,
		"entries", humanize.Comma(int64(x.Len())),
		"skipped", x.Skipped())
	return x, nil
}

// listChunks enumerates the chunk locations of the configured source.
func listChunks(ctx context.Context, cfg *config.Config, client *httpds.Client, log *slog.Logger) ([]string, error) {
	lister, err := newLister(cfg, client)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	locs, err := lister.List(ctx)
	metrics.RecordStep(cfg.Job, "list", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("list chunks: source %s yielded no locations", cfg.Source.Kind)
	}
	log.Info("chunks listed", "source", cfg.Source.Kind, "chunks", len(locs))
	return locs, nil
}

func resume(loop *ingest.Loop, path string, locs []string, log *slog.Logger) error {
	st, err := checkpoint.Load(path)
	if errors.Is(err, checkpoint.ErrNotFound) {
		log.Info("no checkpoint found; starting from the first chunk", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	return loop.Resume(st, locs)
}
