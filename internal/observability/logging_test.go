package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValuesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	InitLogger("production", "debug", &buf)
	t.Cleanup(func() { InitLogger("test", "info", &bytes.Buffer{}) })

	ctx := WithCommunity(context.Background(), "conspiracies")
	ctx, runID := WithRunID(ctx)
	ctx = WithRequestID(ctx, "req-1")

	Logger.InfoContext(ctx, "ingested", slog.Int("posts", 3))

	out := buf.String()
	assert.Contains(t, out, `"community":"conspiracies"`)
	assert.Contains(t, out, `"run_id":"`+runID+`"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"posts":3`)
	assert.Equal(t, "req-1", ExtractRequestID(ctx))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
