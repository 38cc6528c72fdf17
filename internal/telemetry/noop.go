package telemetry

import (
	"context"
	"time"
)

// NoOpProvider discards all telemetry.
type NoOpProvider struct{}

func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpProvider) RecordEvaluation(ctx context.Context, provider, flagKey string, ok bool, duration time.Duration) {
}

func (n *NoOpProvider) RecordIteration(ctx context.Context, providers int, duration time.Duration) {}

func (n *NoOpProvider) RecordCircuitState(ctx context.Context, provider, state string) {}

func (n *NoOpProvider) Shutdown(ctx context.Context) error { return nil }

// NoOpSpan does nothing.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                     {}
func (n *NoOpSpan) SetAttributes(attrs ...Attribute)         {}
func (n *NoOpSpan) RecordError(err error)                    {}
func (n *NoOpSpan) AddEvent(name string, attrs ...Attribute) {}
