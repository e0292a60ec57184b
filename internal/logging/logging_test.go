package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(slog.LevelInfo, "json", &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("position updated", "lat", 34.5)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "position updated", rec["msg"])
	assert.Equal(t, 34.5, rec["lat"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(slog.LevelDebug, "text", &buf)
	require.NoError(t, err)

	log.Debug("skipping", "id", "abc")
	assert.Contains(t, buf.String(), "id=abc")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(slog.LevelInfo, "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
