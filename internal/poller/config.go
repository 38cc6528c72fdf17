package poller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/report"
	"github.com/OrlandoBitencourt/pennant/internal/storage"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// DefaultInterval is the pause between two iterations.
const DefaultInterval = 500 * time.Millisecond

// Config holds the polling behavior.
type Config struct {
	Interval time.Duration

	// EvaluationTimeout bounds the context of each adapter call. Zero means
	// no bound, so an unresponsive vendor holds up the iteration.
	EvaluationTimeout time.Duration

	// DefaultValue is handed to every adapter and reported on failure.
	DefaultValue bool

	// CircuitBreaker enables one breaker per provider when set.
	CircuitBreaker *circuit.Config
}

func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.EvaluationTimeout < 0 {
		return fmt.Errorf("evaluation timeout cannot be negative")
	}
	if c.CircuitBreaker != nil && c.CircuitBreaker.MaxFailures < 1 {
		return fmt.Errorf("circuit breaker threshold must be at least 1")
	}
	return nil
}

// Option configures a Poller.
type Option func(*Poller)

func WithConfig(cfg Config) Option {
	return func(p *Poller) { p.config = cfg }
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.config.Interval = d }
}

func WithEvaluationTimeout(d time.Duration) Option {
	return func(p *Poller) { p.config.EvaluationTimeout = d }
}

func WithDefaultValue(v bool) Option {
	return func(p *Poller) { p.config.DefaultValue = v }
}

func WithCircuitBreaker(cfg circuit.Config) Option {
	return func(p *Poller) { p.config.CircuitBreaker = &cfg }
}

func WithReporter(r report.Reporter) Option {
	return func(p *Poller) {
		if r != nil {
			p.reporter = r
		}
	}
}

func WithStore(s storage.ResultStore) Option {
	return func(p *Poller) {
		if s != nil {
			p.store = s
		}
	}
}

func WithTelemetry(t telemetry.Provider) Option {
	return func(p *Poller) {
		if t != nil {
			p.telemetry = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}
