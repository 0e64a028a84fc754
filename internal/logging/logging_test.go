package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, levelFromString(in), in)
	}
}

func TestNewWriterJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "info", "json")
	log.Debug("hidden")
	log.Info("tick_published", slog.String("op", "cycle.Tick"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "tick_published", rec["msg"])
	require.Equal(t, "cycle.Tick", rec["op"])
}

func TestNewWriterText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWriter(&buf, "debug", "text").Debug("refill_done")
	require.Contains(t, buf.String(), "msg=refill_done")
}
