package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestTracerRecordsComponentSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := newTracerProvider(TracingOptions{ServiceName: "trustsafety", Environment: "test", SampleRate: 1},
		sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Tracer("moderation").Start(context.Background(), "moderation.ban")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "moderation.ban", spans[0].Name())
	assert.Equal(t, tracerPrefix+"moderation", spans[0].InstrumentationScope().Name)
}

func TestSampledParentKeepsChildAtZeroRate(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := newTracerProvider(TracingOptions{ServiceName: "trustsafety", SampleRate: 0},
		sdktrace.WithSpanProcessor(rec))

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)
	_, span := tp.Tracer("t").Start(ctx, "screening.Screen")
	span.End()
	_, orphan := tp.Tracer("t").Start(context.Background(), "screening.Screen")
	orphan.End()

	assert.Len(t, rec.Ended(), 1)
}
