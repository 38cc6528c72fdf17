package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/OrlandoBitencourt/pennant"

// Metric names.
const (
	MetricEvaluations        = "pennant.evaluations"
	MetricEvaluationErrors   = "pennant.evaluation.errors"
	MetricEvaluationDuration = "pennant.evaluation.duration"
	MetricPollIterations     = "pennant.poll.iterations"
	MetricPollDuration       = "pennant.poll.duration"
	MetricCircuitState       = "pennant.circuit.state"
)

// OTelOption overrides the global OpenTelemetry providers.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) { c.tracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) { c.meterProvider = mp }
}

// OTelProvider implements Provider using OpenTelemetry.
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	evaluations      metric.Int64Counter
	evaluationErrors metric.Int64Counter
	evalDuration     metric.Float64Histogram
	iterations       metric.Int64Counter
	iterDuration     metric.Float64Histogram
	circuitState     metric.Int64ObservableGauge
	registration     metric.Registration

	mu            sync.RWMutex
	circuitStates map[string]string
}

// NewOTel creates the instruments. Without options it uses the global
// providers.
func NewOTel(opts ...OTelOption) (*OTelProvider, error) {
	cfg := otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	o := &OTelProvider{
		tracer:        cfg.tracerProvider.Tracer(instrumentationName),
		meter:         cfg.meterProvider.Meter(instrumentationName),
		circuitStates: make(map[string]string),
	}
	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.evaluations, err = o.meter.Int64Counter(
		MetricEvaluations,
		metric.WithDescription("Number of provider evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return err
	}

	o.evaluationErrors, err = o.meter.Int64Counter(
		MetricEvaluationErrors,
		metric.WithDescription("Number of failed provider evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return err
	}

	o.evalDuration, err = o.meter.Float64Histogram(
		MetricEvaluationDuration,
		metric.WithDescription("Wall-clock duration of one provider evaluation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.iterations, err = o.meter.Int64Counter(
		MetricPollIterations,
		metric.WithDescription("Number of completed polling iterations"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return err
	}

	o.iterDuration, err = o.meter.Float64Histogram(
		MetricPollDuration,
		metric.WithDescription("Wall-clock duration of one polling iteration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.circuitState, err = o.meter.Int64ObservableGauge(
		MetricCircuitState,
		metric.WithDescription("Circuit breaker state per provider (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	o.registration, err = o.meter.RegisterCallback(o.observeCircuitStates, o.circuitState)
	return err
}

func (o *OTelProvider) observeCircuitStates(ctx context.Context, observer metric.Observer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for provider, state := range o.circuitStates {
		observer.ObserveInt64(o.circuitState, circuitStateValue(state),
			metric.WithAttributes(attribute.String("provider", provider)))
	}
	return nil
}

func circuitStateValue(state string) int64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(convertAttributes(config.Attributes)...))
	return ctx, &OTelSpan{span: span}
}

func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

func convertAttributes(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		out[i] = convertAttribute(attr)
	}
	return out
}

func (o *OTelProvider) RecordEvaluation(ctx context.Context, provider, flagKey string, ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "error"
	}

	base := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("flag.key", flagKey),
	}
	o.evaluations.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("result", result))...))
	o.evalDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(base...))
	if !ok {
		o.evaluationErrors.Add(ctx, 1, metric.WithAttributes(base...))
	}
}

func (o *OTelProvider) RecordIteration(ctx context.Context, providers int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Int("providers", providers))
	o.iterations.Add(ctx, 1, attrs)
	o.iterDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (o *OTelProvider) RecordCircuitState(ctx context.Context, provider, state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.circuitStates[provider] = state
}

// Shutdown unregisters the gauge callback. The SDK providers are owned by
// the caller.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	if o.registration == nil {
		return nil
	}
	return o.registration.Unregister()
}

// OTelSpan wraps an OpenTelemetry span.
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() {
	s.span.End()
}

func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convertAttributes(attrs)...)
}

// RecordError records err and marks the span failed.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convertAttributes(attrs)...))
}
