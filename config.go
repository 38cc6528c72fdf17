package pennant

import (
	"fmt"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/keystore"
	"github.com/OrlandoBitencourt/pennant/internal/poller"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
)

// DefaultFlagKey is the flag polled when none is configured.
const DefaultFlagKey = "isMyFirstFeatureEnabled"

// Config holds all configuration for a Pennant client.
type Config struct {
	// SecretsFile is the NAME=value credential file.
	SecretsFile string

	// FlagKey is the boolean flag evaluated on every iteration.
	FlagKey string

	// DefaultValue is passed to every provider and reported on failure.
	DefaultValue bool

	Polling PollingConfig

	// InitTimeout bounds each provider's one-time initialization.
	InitTimeout time.Duration

	CircuitBreaker CircuitBreakerConfig
}

// PollingConfig configures the evaluation loop.
type PollingConfig struct {
	// Interval is the pause between iterations.
	Interval time.Duration

	// EvaluationTimeout bounds each provider call. Zero disables it.
	EvaluationTimeout time.Duration
}

// CircuitBreakerConfig configures the per-provider breakers. A zero
// Threshold disables them.
type CircuitBreakerConfig struct {
	Threshold int
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SecretsFile: keystore.DefaultPath,
		FlagKey:     DefaultFlagKey,
		Polling: PollingConfig{
			Interval: poller.DefaultInterval,
		},
		InitTimeout: registry.DefaultInitTimeout,
		CircuitBreaker: CircuitBreakerConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks the configuration before any provider is touched.
func (c Config) Validate() error {
	if c.FlagKey == "" {
		return NewConfigurationError("flag_key", "cannot be empty")
	}
	if c.Polling.Interval <= 0 {
		return NewConfigurationError("poll_interval", "must be positive")
	}
	if c.Polling.EvaluationTimeout < 0 {
		return NewConfigurationError("evaluation_timeout", "cannot be negative")
	}
	if c.InitTimeout < 0 {
		return NewConfigurationError("init_timeout", "cannot be negative")
	}
	if c.CircuitBreaker.Threshold < 0 {
		return NewConfigurationError("circuit_threshold", "cannot be negative")
	}
	if c.CircuitBreaker.Threshold > 0 && c.CircuitBreaker.Timeout <= 0 {
		return NewConfigurationError("circuit_timeout", fmt.Sprintf("must be positive when threshold is %d", c.CircuitBreaker.Threshold))
	}
	return nil
}
