// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bpa-library/library/internal/config"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestStartAndEndSpan(t *testing.T) {
	sr := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "playback.record", AttrBookID.Int64(9))
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	EndSpan(span, nil)

	_, span = StartSpan(context.Background(), "gateway.insert", AttrDBSystem.String("mysql"))
	EndSpan(span, errors.New("insert: data unavailable"))

	ended := sr.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "playback.record", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), AttrBookID.Int64(9))

	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "insert: data unavailable", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestDisabledTelemetry(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OtelConfig{Enabled: false}, config.AppConfig{})
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 0.25, sampleRatio(0.25))
	assert.Equal(t, 1.0, sampleRatio(1))
	assert.Equal(t, defaultSampleRatio, sampleRatio(0))
	assert.Equal(t, defaultSampleRatio, sampleRatio(3))
}
