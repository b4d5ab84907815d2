package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cosmoscout/gaia-stars/internal/config"
	"github.com/cosmoscout/gaia-stars/internal/datasource"
	"github.com/cosmoscout/gaia-stars/internal/datasource/file"
	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
	"github.com/cosmoscout/gaia-stars/internal/datasource/listing"
	"github.com/cosmoscout/gaia-stars/internal/emit"
	"github.com/cosmoscout/gaia-stars/internal/logging"
	"github.com/cosmoscout/gaia-stars/internal/metrics"
	"github.com/cosmoscout/gaia-stars/internal/metrics/datadog"
	"github.com/cosmoscout/gaia-stars/internal/metrics/prompush"
	csvparser "github.com/cosmoscout/gaia-stars/internal/parser/csv"
	"github.com/cosmoscout/gaia-stars/internal/retry"
)

// exitCodeInvalidConfig is the exit code when validation reports errors.
const exitCodeInvalidConfig = 2

// validationError carries the issues that made a configuration unusable.
type validationError struct {
	path   string
	issues []config.Issue
}

func (e *validationError) Error() string {
	n := 0
	for _, iss := range e.issues {
		if iss.Severity == config.SeverityError {
			n++
		}
	}
	name := e.path
	if name == "" {
		name = "(defaults)"
	}
	return fmt.Sprintf("configuration %s is invalid: %d error(s)", name, n)
}

// loadConfig loads the dotenv file, then the configuration. -v forces debug
// logging.
func loadConfig(g *globalFlags) (*config.Config, error) {
	if g.envFile != "" {
		if err := config.LoadDotEnv(g.envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// checkConfig prints every issue to w and returns a *validationError when at
// least one has error severity.
func checkConfig(cfg *config.Config, path string, w io.Writer) error {
	issues := config.Validate(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return &validationError{path: path, issues: issues}
	}
	return nil
}

func newLogger(cfg *config.Config, runID string, out io.Writer) *slog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Job:    cfg.Job,
		RunID:  runID,
		Out:    out,
	})
}

func newHTTPClient(cfg *config.Config) *httpds.Client {
	hdr := http.Header{}
	if cfg.HTTP.UserAgent != "" {
		hdr.Set("User-Agent", cfg.HTTP.UserAgent)
	}
	return httpds.NewClient(httpds.Config{
		Timeout:            cfg.HTTP.Timeout,
		MaxRetries:         cfg.HTTP.MaxRetries,
		InitialBackoff:     cfg.HTTP.InitialBackoff,
		MaxBackoff:         cfg.HTTP.MaxBackoff,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		BaseHeaders:        hdr,
	})
}

// newLister picks the chunk enumeration strategy for source.kind.
func newLister(cfg *config.Config, client *httpds.Client) (datasource.Lister, error) {
	s := cfg.Source
	switch s.Kind {
	case "http":
		return listing.New(client, s.URL, s.Ext), nil
	case "list":
		return file.ListFile{Path: s.Path}, nil
	case "dir":
		return file.Dir{Path: s.Path, Suffix: s.Ext}, nil
	case "static":
		locs := slices.Clone(s.Locations)
		return datasource.ListerFunc(func(_ context.Context) ([]string, error) {
			return locs, nil
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind %q", s.Kind)
	}
}

func csvOptions(cfg *config.Config) csvparser.Options {
	opt := csvparser.Options{
		PreambleLines: cfg.Parser.PreambleLines,
		LazyQuotes:    cfg.Parser.LazyQuotes,
	}
	if c := strings.TrimSpace(cfg.Parser.Comma); c != "" {
		opt.Comma, _ = utf8.DecodeRuneInString(c)
	}
	return opt
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}
}

// setupMetrics installs the configured backend and returns the function
// that flushes it. A backend that cannot be created is logged and metrics
// stay disabled; the run itself does not depend on them.
func setupMetrics(cfg *config.Config, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return func() {}
	case "prompush":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  cfg.Metrics.Namespace,
			GlobalTags: cfg.Metrics.Tags,
		})
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Metrics.Backend)
	}
	if err != nil {
		log.Warn("metrics backend unavailable; metrics disabled", "backend", cfg.Metrics.Backend, "err", err)
		return func() {}
	}

	metrics.SetBackend(b)
	log.Info("metrics enabled", "backend", cfg.Metrics.Backend)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", "backend", cfg.Metrics.Backend, "err", err)
		}
	}
}

// newSinks returns the file sink and, when storage.kind is set, the table
// sink.
func newSinks(cfg *config.Config) []emit.Sink {
	sinks := []emit.Sink{&emit.FileSink{Path: cfg.Output.Path}}
	if cfg.Storage.Kind != "" {
		sinks = append(sinks, &emit.TableSink{
			Kind:       cfg.Storage.Kind,
			DSN:        cfg.Storage.DSN,
			Table:      cfg.Storage.Table,
			AutoCreate: cfg.Storage.AutoCreateTable,
			BatchSize:  cfg.Storage.BatchSize,
		})
	}
	return sinks
}
