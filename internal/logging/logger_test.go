package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInfoAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(false, &buf)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	Info(ctx).Str("article_id", "a1").Msg("article created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "article created", entry["message"])
	assert.Equal(t, "a1", entry["article_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["traceId"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["spanId"])
}

func TestProductionLoggerDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(false, &buf)

	Debug(context.Background()).Msg("noise")
	assert.Zero(t, buf.Len())

	cacheLog := Component("cache")
	cacheLog.Info().Msg("ready")
	assert.Contains(t, buf.String(), `"component":"cache"`)
}
