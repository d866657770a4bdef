package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ddeok-labs/search-backend"

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	StageResults         metric.Int64Counter
	StageFailures        metric.Int64Counter
	FallbackCount        metric.Int64Counter
	AutocompleteDuration metric.Float64Histogram
	EventsDropped        metric.Int64Counter
	AggregationRuns      metric.Int64Counter
}

// metricInterval is how often metrics are pushed to the collector
const metricInterval = 15 * time.Second

// Setup initializes OpenTelemetry tracing and metrics. Call it before
// InitMetrics so instruments bind to the exporting provider.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	// Go runtime metrics (GC, goroutines, memory)
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}
	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	stageResults, err := meter.Int64Counter(
		"autocomplete.stage.results",
		metric.WithDescription("Ids contributed by each autocomplete stage"),
	)
	if err != nil {
		return nil, err
	}

	stageFailures, err := meter.Int64Counter(
		"autocomplete.stage.failures",
		metric.WithDescription("Autocomplete stages that failed or timed out"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"autocomplete.fallback.count",
		metric.WithDescription("Queries answered by the persistent-only retry"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"autocomplete.duration",
		metric.WithDescription("Autocomplete latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"search_events.dropped",
		metric.WithDescription("Search events dropped by the background logger"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"keyword_aggregation.runs",
		metric.WithDescription("Keyword aggregation runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		StageResults:         stageResults,
		StageFailures:        stageFailures,
		FallbackCount:        fallbackCount,
		AutocompleteDuration: duration,
		EventsDropped:        dropped,
		AggregationRuns:      runs,
	}, nil
}

// RecordStage records the outcome of one autocomplete stage
func (m *Metrics) RecordStage(ctx context.Context, domain, stage string, results int, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("stage", stage),
	)
	m.StageResults.Add(ctx, int64(results), attrs)
	if failed {
		m.StageFailures.Add(ctx, 1, attrs)
	}
}

// RecordFallback counts a persistent-only retry
func (m *Metrics) RecordFallback(ctx context.Context, domain string) {
	if m == nil {
		return
	}
	m.FallbackCount.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
}

// RecordAutocomplete records autocomplete latency
func (m *Metrics) RecordAutocomplete(ctx context.Context, domain string, d time.Duration) {
	if m == nil {
		return
	}
	m.AutocompleteDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("domain", domain)))
}

// RecordDroppedEvent counts a dropped search event
func (m *Metrics) RecordDroppedEvent(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAggregationRun counts an aggregation run by outcome
func (m *Metrics) RecordAggregationRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.AggregationRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}
