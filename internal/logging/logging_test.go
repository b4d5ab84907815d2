package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, LevelFromString(in), "level %q", in)
	}
}

func TestNew_TextCarriesRunAndJob(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Level: "info", Job: "dr3", RunID: "run-1", Out: &buf})
	log.Debug("hidden")
	log.Info("chunk done", "rows", 10)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "job=dr3")
	assert.Contains(t, out, "rows=10")
}

func TestNew_JSONGeneratesRunID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(Options{Format: "JSON", Out: &buf}).Warn("retrying")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "WARN", rec["level"])
	id, _ := rec["run_id"].(string)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "run_id %q", id)
	_, hasJob := rec["job"]
	assert.False(t, hasJob)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	assert.NotEqual(t, NewRunID(), NewRunID())
}
