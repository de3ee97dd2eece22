// Package tracing builds the gateway's OpenTelemetry TracerProvider (A6).
// Grounded on the teacher's internal/tracing/tracing.go: same OTLP-gRPC
// exporter setup and enabled/disabled toggle, with the HTTP middleware
// dropped (the gateway has no inbound HTTP surface). New registers the
// provider globally; internal/router obtains its tracer from that global
// provider via otel.Tracer to start spans around forwarded calls.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config controls whether and how spans are exported.
type Config struct {
	Enabled    bool
	ServiceName string
	Endpoint   string
	Insecure   bool
	SampleRate float64
}

// Tracer owns the process-wide TracerProvider lifecycle.
type Tracer struct {
	enabled  bool
	provider *sdktrace.TracerProvider
}

// New builds a Tracer from cfg. When cfg.Enabled is false, New returns a
// disabled Tracer immediately: otel.Tracer(name) still works but the
// globally-registered no-op provider produces spans that record nothing.
func New(cfg Config) (*Tracer, error) {
	t := &Tracer{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return t, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "grpc-opizontas"
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	ctx := context.Background()

	opts := []otlptracegrpc.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return nil, err
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
	)

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// IsEnabled reports whether spans are actually exported.
func (t *Tracer) IsEnabled() bool { return t.enabled }

// Tracer returns a named tracer off the configured provider (or the
// globally registered no-op one when tracing is disabled).
func (t *Tracer) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Close flushes and shuts down the exporter, if tracing was enabled.
func (t *Tracer) Close() error {
	if t.provider != nil {
		return t.provider.Shutdown(context.Background())
	}
	return nil
}
