package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "selection.target_count").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a Config. It does not mutate cfg
// and touches neither the network nor the file system.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateHTTP(cfg.HTTP)...)
	issues = append(issues, validateRetry(cfg.Retry)...)
	issues = append(issues, validateParser(cfg.Parser)...)
	issues = append(issues, validateSelection(cfg.Selection)...)
	issues = append(issues, validateOutput(cfg)...)
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateCheckpoint(cfg.Checkpoint)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateLog(cfg.Log)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "http":
		if s.URL == "" {
			issues = append(issues, Issue{SeverityError, "source.url", "source.url is required when kind=http"})
		} else if u, err := url.Parse(s.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "source.url", fmt.Sprintf("source.url %q must be an absolute http(s) URL", s.URL)})
		}
	case "list", "dir":
		if s.Path == "" {
			issues = append(issues, Issue{SeverityError, "source.path", fmt.Sprintf("source.path is required when kind=%s", s.Kind)})
		}
	case "static":
		if len(s.Locations) == 0 {
			issues = append(issues, Issue{SeverityError, "source.locations", "source.locations must not be empty when kind=static"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind is required (http, list, dir or static)"})
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unsupported source.kind %q (want http, list, dir or static)", s.Kind)})
	}

	if (s.Kind == "http" || s.Kind == "dir") && s.Ext == "" {
		issues = append(issues, Issue{SeverityWarning, "source.ext", "source.ext is empty; every listed entry will be treated as a chunk"})
	}
	if s.MaxChunks < 0 {
		issues = append(issues, Issue{SeverityError, "source.max_chunks", "source.max_chunks must be >= 0"})
	}
	return issues
}

func validateHTTP(h HTTP) []Issue {
	var issues []Issue
	if h.Timeout < 0 {
		issues = append(issues, Issue{SeverityError, "http.timeout", "http.timeout must be >= 0"})
	}
	if h.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "http.max_retries", "http.max_retries must be >= 0"})
	}
	if h.MaxBackoff > 0 && h.InitialBackoff > h.MaxBackoff {
		issues = append(issues, Issue{SeverityWarning, "http.initial_backoff", "http.initial_backoff exceeds http.max_backoff; every wait will be max_backoff"})
	}
	if h.InsecureSkipVerify {
		issues = append(issues, Issue{SeverityWarning, "http.insecure_skip_verify", "TLS certificate verification is disabled"})
	}
	return issues
}

func validateRetry(r Retry) []Issue {
	var issues []Issue
	if r.MaxAttempts < 0 {
		issues = append(issues, Issue{SeverityError, "retry.max_attempts", "retry.max_attempts must be >= 0 (0 retries until success)"})
	}
	if r.MaxBackoff > 0 && r.InitialBackoff > r.MaxBackoff {
		issues = append(issues, Issue{SeverityWarning, "retry.initial_backoff", "retry.initial_backoff exceeds retry.max_backoff; every wait will be max_backoff"})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.PreambleLines < 0 {
		issues = append(issues, Issue{SeverityError, "parser.preamble_lines", "parser.preamble_lines must be >= 0"})
	}
	if p.Comma != "" {
		r, size := utf8.DecodeRuneInString(p.Comma)
		switch {
		case size != len(p.Comma):
			issues = append(issues, Issue{SeverityError, "parser.comma", fmt.Sprintf("parser.comma %q must be a single character", p.Comma)})
		case r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError:
			issues = append(issues, Issue{SeverityError, "parser.comma", fmt.Sprintf("parser.comma %q is not a valid delimiter", p.Comma)})
		}
	}

	seen := map[string]string{}
	for _, c := range []struct{ path, name string }{
		{"parser.columns.source_id", p.Columns.SourceID},
		{"parser.columns.ra", p.Columns.RA},
		{"parser.columns.dec", p.Columns.Dec},
		{"parser.columns.parallax", p.Columns.Parallax},
		{"parser.columns.magnitude", p.Columns.Magnitude},
		{"parser.columns.color_index", p.Columns.ColorIndex},
	} {
		if strings.TrimSpace(c.name) == "" {
			issues = append(issues, Issue{SeverityError, c.path, "column name must not be empty"})
			continue
		}
		if prev, dup := seen[c.name]; dup {
			issues = append(issues, Issue{SeverityWarning, c.path, fmt.Sprintf("column %q is also used by %s", c.name, prev)})
			continue
		}
		seen[c.name] = c.path
	}
	return issues
}

func validateSelection(s Selection) []Issue {
	var issues []Issue
	if s.TargetCount <= 0 {
		issues = append(issues, Issue{SeverityError, "selection.target_count", "selection.target_count must be > 0"})
	}
	if s.CapacityRatio < 1 {
		issues = append(issues, Issue{SeverityError, "selection.capacity_ratio", "selection.capacity_ratio must be >= 1"})
	} else if s.CapacityRatio < 1.1 {
		issues = append(issues, Issue{SeverityWarning, "selection.capacity_ratio", "a capacity_ratio close to 1 compacts on nearly every insert"})
	}
	return issues
}

func validateOutput(cfg Config) []Issue {
	var issues []Issue
	if strings.TrimSpace(cfg.Output.Path) == "" {
		issues = append(issues, Issue{SeverityError, "output.path", "output.path must not be empty"})
	}
	if strings.TrimSpace(cfg.Crossmatch.Column) == "" {
		issues = append(issues, Issue{SeverityError, "crossmatch.column", "crossmatch.column must not be empty; it names the secondary id in the output header"})
	}
	if cfg.Crossmatch.Path == "" {
		issues = append(issues, Issue{SeverityWarning, "crossmatch.path", "no cross-match table; every secondary id will be -1"})
	}
	if strings.TrimSpace(cfg.Staging.Dir) == "" {
		issues = append(issues, Issue{SeverityError, "staging.dir", "staging.dir must not be empty"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "":
		return nil
	case "postgres", "sqlite", "mssql", "mysql":
	default:
		return append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unsupported storage.kind %q (want postgres, sqlite, mssql or mysql)", s.Kind)})
	}
	if s.DSN == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn is required when storage.kind is set"})
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.table", "storage.table must not be empty"})
	}
	if s.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "storage.batch_size", "storage.batch_size must be >= 0"})
	}
	return issues
}

func validateCheckpoint(c Checkpoint) []Issue {
	var issues []Issue
	if (c.Enabled || c.Resume) && strings.TrimSpace(c.Path) == "" {
		issues = append(issues, Issue{SeverityError, "checkpoint.path", "checkpoint.path is required when checkpointing is enabled"})
	}
	if c.Resume && !c.Enabled {
		issues = append(issues, Issue{SeverityWarning, "checkpoint.resume", "resume is set but checkpoint.enabled is false; progress after resuming will not be saved"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prompush":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "metrics.pushgateway_url is required for backend=prompush"})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "metrics.datadog_addr is required for backend=datadog"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unsupported metrics.backend %q (want prompush or datadog)", m.Backend)})
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, Issue{SeverityError, "log.level", fmt.Sprintf("unknown log.level %q", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{SeverityError, "log.format", fmt.Sprintf("unknown log.format %q (want text or json)", l.Format)})
	}
	if l.ProgressEvery < 0 {
		issues = append(issues, Issue{SeverityError, "log.progress_every", "log.progress_every must be >= 0"})
	}
	return issues
}
