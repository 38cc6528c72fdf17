// Package telemetry records evaluation metrics and traces. OTelProvider
// reports through OpenTelemetry; NoOpProvider discards everything.
package telemetry

import (
	"context"
	"time"
)

// Provider is what the poller reports to.
type Provider interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// RecordEvaluation counts one adapter call and its latency.
	RecordEvaluation(ctx context.Context, provider, flagKey string, ok bool, duration time.Duration)

	// RecordIteration counts one completed polling iteration.
	RecordIteration(ctx context.Context, providers int, duration time.Duration)

	// RecordCircuitState remembers the breaker state of a provider for the gauge.
	RecordCircuitState(ctx context.Context, provider, state string)

	Shutdown(ctx context.Context) error
}

// Span is a single traced operation.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// SpanOption configures span creation.
type SpanOption func(*SpanConfig)

type SpanConfig struct {
	Attributes []Attribute
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value interface{}
}

func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records d in milliseconds.
func Duration(key string, d time.Duration) Attribute {
	return Attribute{Key: key, Value: d.Milliseconds()}
}
