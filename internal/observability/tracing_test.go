package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/d20sheet/internal/config"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(context.Background(), config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)
	_, isSDK := tp.(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.TracingConfig{Enabled: true, ServiceName: "d20sheet-test", SampleRatio: 1}
	tp, shutdown, err := NewTracerProvider(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	_, isSDK := tp.(*sdktrace.TracerProvider)
	require.True(t, isSDK)

	_, span := tp.Tracer("test").Start(context.Background(), "recompute")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	entries := logs.FilterMessage("recompute").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "trace", entries[0].LoggerName)
}

func TestLogExporter_WritesAttributes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(zap.New(core))))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "engine.Recompute")
	span.SetAttributes(attribute.String("character.id", "lidda"), attribute.Int("warnings", 2))
	span.End()

	entries := logs.FilterMessage("engine.Recompute").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "lidda", fields["character.id"])
	assert.Equal(t, "2", fields["warnings"])
	assert.NotEmpty(t, fields["trace_id"])
}

func TestLogExporter_ShutdownIsClean(t *testing.T) {
	assert.NoError(t, NewLogExporter(zap.NewNop()).Shutdown(context.Background()))
}
