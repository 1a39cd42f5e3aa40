package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the otel meter and tracer used by the pipeline.
// The zero value is usable and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	answerCounter  otelmetric.Int64Counter
	answerDuration otelmetric.Float64Histogram
}

// Option customizes New.
type Option func(*options)

type options struct {
	sampleRatio float64
	spanProc    sdktrace.SpanProcessor
}

// WithSampleRatio sets the trace sampling ratio.
func WithSampleRatio(r float64) Option {
	return func(o *options) { o.sampleRatio = r }
}

// WithSpanProcessor registers an extra span processor, e.g. a tracetest.SpanRecorder.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProc = p }
}

func New(serviceName string, opts ...Option) *Observability {
	o := options{sampleRatio: 1.0}
	for _, opt := range opts {
		opt(&o)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.sampleRatio))),
	}
	if o.spanProc != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(o.spanProc))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	obs := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	answerCounter, _ := meter.Int64Counter(
		"insights.answers",
		otelmetric.WithDescription("Number of questions answered"),
	)
	answerDuration, _ := meter.Float64Histogram(
		"insights.answer.duration",
		otelmetric.WithDescription("End to end answer duration"),
		otelmetric.WithUnit("ms"),
	)

	obs.meterProvider = provider
	obs.meter = meter
	obs.answerCounter = answerCounter
	obs.answerDuration = answerDuration
	return obs
}

// StartSpan opens a span named after a pipeline stage.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	// The caller's span is not ours to end, so hand back a no-op span.
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordAnswer(ctx context.Context, outcome, source string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	)
	if o.answerCounter != nil {
		o.answerCounter.Add(ctx, 1, attrs)
	}
	if o.answerDuration != nil {
		o.answerDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
