package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerEmitsServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "scoring-test", Output: &buf})

	ctx := logg.WithField(context.Background(), "user_id", "u-1")
	ctx = logg.WithFields(ctx, map[string]any{"event": "record"})
	logg.Info(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scoring-test", entry["service"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "record", entry["event"])
	assert.Equal(t, "hello", entry["message"])
}

func TestLoggerContextIsolation(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "scoring-test", Output: &buf})

	scoped := logg.WithField(context.Background(), "scoped", true)
	_ = scoped

	logg.Info(context.Background(), "plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["scoped"]
	assert.False(t, ok, "fields attached to one context must not leak to another")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
