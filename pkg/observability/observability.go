// Package observability provides the OpenTelemetry provider for shield:
// OTLP trace and metric export plus the compile-path instruments (rate,
// errors, duration, degradation and quota-rejection counters). Disabled by
// default; a disabled provider is a safe no-op.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // host:port for gRPC, e.g. "localhost:4317"
	SampleRate     float64       // 0.0 to 1.0
	BatchTimeout   time.Duration // span batch flush interval
	Enabled        bool
	Insecure       bool // plaintext connection, dev only
}

// DefaultConfig returns development defaults with export disabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "shield",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
	}
}

// Provider manages the trace and metric providers and the compile-path
// instruments. All record methods are nil-safe when disabled.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	compileCounter  metric.Int64Counter
	failureCounter  metric.Int64Counter
	compileDuration metric.Float64Histogram
	degradedCounter metric.Int64Counter
	droppedCounter  metric.Int64Counter
	quotaCounter    metric.Int64Counter
}

// New creates an observability provider. When disabled it returns a
// provider whose record methods are no-ops.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.DebugContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("shield",
		trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter("shield",
		metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.compileCounter, err = p.meter.Int64Counter("shield.compilations.total",
		metric.WithDescription("Total compilation passes"),
		metric.WithUnit("{compilation}"),
	)
	if err != nil {
		return err
	}
	p.failureCounter, err = p.meter.Int64Counter("shield.compilations.failed",
		metric.WithDescription("Compilation passes rejected by the compilation service"),
		metric.WithUnit("{compilation}"),
	)
	if err != nil {
		return err
	}
	p.compileDuration, err = p.meter.Float64Histogram("shield.compilation.duration",
		metric.WithDescription("Compilation pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return err
	}
	p.degradedCounter, err = p.meter.Int64Counter("shield.rules.degraded",
		metric.WithDescription("Rules compiled with weakened semantics"),
		metric.WithUnit("{rule}"),
	)
	if err != nil {
		return err
	}
	p.droppedCounter, err = p.meter.Int64Counter("shield.rules.dropped",
		metric.WithDescription("Rules with no target-dialect representation"),
		metric.WithUnit("{rule}"),
	)
	if err != nil {
		return err
	}
	p.quotaCounter, err = p.meter.Int64Counter("shield.quota.rejections",
		metric.WithDescription("Tier updates rejected by quota"),
		metric.WithUnit("{update}"),
	)
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "trace provider shutdown failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "metric provider shutdown failed", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("shield")
	}
	return p.tracer
}

// RecordDegradations feeds the degraded/dropped counters from a pass.
func (p *Provider) RecordDegradations(ctx context.Context, client string, degraded, dropped int) {
	attrs := metric.WithAttributes(attribute.String("client", client))
	if p.degradedCounter != nil && degraded > 0 {
		p.degradedCounter.Add(ctx, int64(degraded), attrs)
	}
	if p.droppedCounter != nil && dropped > 0 {
		p.droppedCounter.Add(ctx, int64(dropped), attrs)
	}
}

// RecordQuotaRejection counts a tier update rejected by quota.
func (p *Provider) RecordQuotaRejection(ctx context.Context, client, tier string) {
	if p.quotaCounter != nil {
		p.quotaCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("client", client),
			attribute.String("tier", tier),
		))
	}
}

// TrackCompilation opens a span and the compile counters for one pass.
// The returned func records duration and failure when called with the pass
// outcome.
func (p *Provider) TrackCompilation(ctx context.Context, client string) (context.Context, func(error)) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("client", client))

	ctx, span := p.Tracer().Start(ctx, "shield.compile",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("client", client)),
	)
	if p.compileCounter != nil {
		p.compileCounter.Add(ctx, 1, attrs)
	}

	return ctx, func(err error) {
		if p.compileDuration != nil {
			p.compileDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil {
			span.RecordError(err)
			if p.failureCounter != nil {
				p.failureCounter.Add(ctx, 1, attrs)
			}
		}
		span.End()
	}
}
