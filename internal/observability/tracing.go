package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerPrefix = "github.com/patrickwarner/trustsafety/"

// TracingOptions configures span export.
type TracingOptions struct {
	ServiceName string
	Environment string
	// Endpoint is the OTLP/gRPC collector address, e.g. tempo:4317.
	Endpoint   string
	SampleRate float64
}

// InitTracing exports spans to the OTLP collector and installs the provider
// and W3C propagators globally. The returned func flushes pending spans.
func InitTracing(ctx context.Context, logger *zap.Logger, opts TracingOptions) (func(), error) {
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := newTracerProvider(opts, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		zap.String("endpoint", opts.Endpoint),
		zap.String("environment", opts.Environment),
		zap.Float64("sample_rate", opts.SampleRate))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("tracer provider shutdown", zap.Error(err))
		}
	}, nil
}

func newTracerProvider(opts TracingOptions, export sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes("",
		semconv.ServiceName(opts.ServiceName),
		attribute.String("deployment.environment", opts.Environment),
	)
	return sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(opts.SampleRate)),
	)
}

// samplerFor keeps the caller's decision when a request arrives with a
// sampled parent, so a screening call stays in the same trace as the post
// that triggered it.
func samplerFor(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns the named component's tracer from the global provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(tracerPrefix + component)
}
