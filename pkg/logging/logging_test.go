package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestOTelHandlerForwardsToWrappedHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	// The global provider is a no-op until telemetry is initialized.
	logger := slog.New(NewOTelHandler(inner, "test")).With("module", "diplomacy")
	logger.InfoContext(context.Background(), "Treaty accepted", "treaty_id", "t-1", "terms", 2)
	logger.Debug("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Treaty accepted", entry["msg"])
	assert.Equal(t, "diplomacy", entry["module"])
	assert.Equal(t, "t-1", entry["treaty_id"])
	assert.EqualValues(t, 2, entry["terms"])
}
