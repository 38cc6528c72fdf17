// Package poller evaluates one flag against every provider adapter, over and
// over, until its context is cancelled.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
	"github.com/OrlandoBitencourt/pennant/internal/report"
	"github.com/OrlandoBitencourt/pennant/internal/storage"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("poller already running")

// Poller runs the evaluation loop. Adapter calls are strictly sequential:
// one iteration at a time, one adapter at a time, in registration order.
type Poller struct {
	providers []provider.FlagProvider
	flagKey   string
	user      domain.UserContext
	config    Config

	reporter  report.Reporter
	store     storage.ResultStore
	telemetry telemetry.Provider
	logger    *slog.Logger
	breakers  map[string]*circuit.Breaker

	trigger chan struct{}
	iterMu  sync.Mutex
	running atomic.Bool

	statsMu       sync.RWMutex
	iterations    int64
	lastIteration time.Time
	lastDuration  time.Duration
}

// New builds a poller over already initialized adapters.
func New(providers []provider.FlagProvider, flagKey string, user domain.UserContext, opts ...Option) (*Poller, error) {
	p := &Poller{
		providers: append([]provider.FlagProvider(nil), providers...),
		flagKey:   flagKey,
		user:      user,
		config:    DefaultConfig(),
		reporter:  report.ReporterFunc(func(context.Context, []domain.EvaluationResult) error { return nil }),
		telemetry: telemetry.NewNoOp(),
		logger:    logger.Discard(),
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(p.providers) == 0 {
		return nil, domain.NewConfigurationError("poller", "at least one provider is required")
	}
	if flagKey == "" {
		return nil, domain.NewConfigurationError("poller", "flag key cannot be empty")
	}
	if err := p.config.Validate(); err != nil {
		return nil, domain.NewConfigurationErrorWithCause("poller", "invalid config", err)
	}

	if p.config.CircuitBreaker != nil {
		p.breakers = make(map[string]*circuit.Breaker, len(p.providers))
		for _, fp := range p.providers {
			cfg := *p.config.CircuitBreaker
			cfg.OnStateChange = p.onBreakerStateChange
			p.breakers[fp.Name()] = circuit.New(fp.Name(), cfg)
		}
	}

	return p, nil
}

func (p *Poller) onBreakerStateChange(name string, from, to circuit.State) {
	p.logger.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
	p.telemetry.RecordCircuitState(context.Background(), name, to.String())
}

// Run polls until ctx is cancelled and then returns nil. Evaluation and
// reporting failures are logged and never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.logger.Info("polling started",
		"flag", p.flagKey,
		"providers", len(p.providers),
		"interval", p.config.Interval,
	)

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("reporting iteration failed", "error", err)
		}

		timer := time.NewTimer(p.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("polling stopped", "iterations", p.Iterations())
			return nil
		case <-p.trigger:
			timer.Stop()
			p.logger.Debug("poll triggered early")
		case <-timer.C:
		}
	}
}

// Trigger asks a running loop to start its next iteration now. It never
// blocks; a trigger already pending absorbs this one.
func (p *Poller) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce evaluates every adapter once, stores and reports the results. If
// ctx ends mid-iteration the remaining adapters are skipped, nothing is
// reported and ctx.Err() is returned.
func (p *Poller) RunOnce(ctx context.Context) ([]domain.EvaluationResult, error) {
	p.iterMu.Lock()
	defer p.iterMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := p.telemetry.StartSpan(ctx, "poller.iteration", telemetry.WithAttributes(
		telemetry.String("flag.key", p.flagKey),
		telemetry.Int("providers", len(p.providers)),
	))
	defer span.End()

	results := make([]domain.EvaluationResult, 0, len(p.providers))
	for _, fp := range p.providers {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return results, err
		}
		results = append(results, p.evaluate(ctx, fp))
	}

	duration := time.Since(start)
	p.statsMu.Lock()
	p.iterations++
	p.lastIteration = start
	p.lastDuration = duration
	p.statsMu.Unlock()
	p.telemetry.RecordIteration(ctx, len(p.providers), duration)

	if err := p.reporter.Report(ctx, results); err != nil {
		span.RecordError(err)
		return results, fmt.Errorf("report results: %w", err)
	}
	return results, nil
}

func (p *Poller) evaluate(ctx context.Context, fp provider.FlagProvider) domain.EvaluationResult {
	name := fp.Name()
	ctx, span := p.telemetry.StartSpan(ctx, "provider.evaluate", telemetry.WithAttributes(
		telemetry.String("provider", name),
		telemetry.String("flag.key", p.flagKey),
	))
	defer span.End()

	evalCtx := ctx
	if p.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, p.config.EvaluationTimeout)
		defer cancel()
	}

	var value bool
	call := func(ctx context.Context) error {
		v, err := fp.Evaluate(ctx, p.flagKey, p.user, p.config.DefaultValue)
		value = v
		return err
	}

	start := time.Now()
	var err error
	if b := p.breakers[name]; b != nil {
		err = b.Call(evalCtx, call)
	} else {
		err = call(evalCtx)
	}
	latency := time.Since(start)

	result := domain.EvaluationResult{
		Provider:  name,
		FlagKey:   p.flagKey,
		Value:     value,
		Latency:   latency,
		Timestamp: start,
		Err:       err,
	}

	switch {
	case circuit.IsCircuitOpen(err):
		result.Value = p.config.DefaultValue
		span.AddEvent("circuit open")
		p.logger.Debug("provider skipped", "provider", name, "error", err)
	case err != nil:
		result.Value = p.config.DefaultValue
		span.RecordError(err)
		p.telemetry.RecordEvaluation(ctx, name, p.flagKey, false, latency)
		p.logger.Warn("flag evaluation failed", "provider", name, "flag", p.flagKey, "error", err)
	default:
		span.SetAttributes(telemetry.Bool("value", value), telemetry.Duration("latency_ms", latency))
		p.telemetry.RecordEvaluation(ctx, name, p.flagKey, true, latency)
	}

	if p.store != nil {
		if err := p.store.Put(ctx, result); err != nil {
			p.logger.Warn("storing result failed", "provider", name, "error", err)
		}
	}

	return result
}

// Iterations returns the number of completed iterations.
func (p *Poller) Iterations() int64 {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.iterations
}

// Running reports whether Run is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

func (p *Poller) FlagKey() string { return p.flagKey }

// Healthy is false while any provider's breaker is open.
func (p *Poller) Healthy() bool {
	for _, b := range p.breakers {
		if b.State() == circuit.StateOpen {
			return false
		}
	}
	return true
}

// Stats is a snapshot for the admin API.
type Stats struct {
	FlagKey        string          `json:"flag_key"`
	Providers      []string        `json:"providers"`
	Interval       string          `json:"interval"`
	Running        bool            `json:"running"`
	Iterations     int64           `json:"iterations"`
	LastIteration  time.Time       `json:"last_iteration,omitzero"`
	LastDurationMs int64           `json:"last_duration_ms"`
	Breakers       []circuit.Stats `json:"circuit_breakers,omitempty"`
}

func (p *Poller) Stats() Stats {
	names := make([]string, len(p.providers))
	var breakers []circuit.Stats
	for i, fp := range p.providers {
		names[i] = fp.Name()
		if b := p.breakers[fp.Name()]; b != nil {
			breakers = append(breakers, b.Stats())
		}
	}

	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	return Stats{
		FlagKey:        p.flagKey,
		Providers:      names,
		Interval:       p.config.Interval.String(),
		Running:        p.running.Load(),
		Iterations:     p.iterations,
		LastIteration:  p.lastIteration,
		LastDurationMs: p.lastDuration.Milliseconds(),
		Breakers:       breakers,
	}
}
