// Package logging builds the slog.Logger used by the command and the
// ingestion loop.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text (default) or json
	Job    string
	RunID  string // generated when empty
	Out    io.Writer
}

// New creates a logger that tags every record with run_id and job.
func New(opt Options) *slog.Logger {
	out := opt.Out
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: LevelFromString(opt.Level)}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(opt.Format), "json") {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}

	runID := opt.RunID
	if runID == "" {
		runID = NewRunID()
	}
	attrs := []slog.Attr{slog.String("run_id", runID)}
	if opt.Job != "" {
		attrs = append(attrs, slog.String("job", opt.Job))
	}
	return slog.New(h.WithAttrs(attrs))
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// LevelFromString parses a level name. Unknown or empty names mean info.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Tests and library callers
// that pass a nil logger get this.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
