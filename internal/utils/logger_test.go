package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError+2, ParseLevel("error+2"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", true)
	logger.Info("dropped")
	logger.Warn("kept", slog.String("device_id", "dev-1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "mirador-care", entry["service"])
	assert.Equal(t, "dev-1", entry["device_id"])
}

func TestAppErrorHelpers(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError("analyze", "fetch vitals", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "analyze: fetch vitals: connection refused", err.Error())
	assert.Equal(t, "fetch vitals", MessageOf(err))
	assert.Equal(t, "analyze", OpOf(err))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Empty(t, OpOf(cause))
}
