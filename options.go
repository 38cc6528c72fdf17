package pennant

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/registry"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Option configures a Pennant client.
type Option func(*clientConfig) error

type clientConfig struct {
	config Config
	user   User

	registrations []Registration
	credentials   registry.CredentialSource
	reporters     []Reporter
	logger        *slog.Logger
	telemetry     telemetry.Provider

	adminEnabled   bool
	adminPort      int
	webhookEnabled bool
	webhookPort    int
	webhookSecret  string
}

// AdminConfig enables the admin HTTP server.
type AdminConfig struct {
	Port int
}

// WebhookConfig enables the webhook HTTP server.
type WebhookConfig struct {
	Port int

	// Secret is the HMAC-SHA256 key for X-Webhook-Signature. Empty disables
	// signature checks.
	Secret string
}

// WithConfig replaces the whole Config.
func WithConfig(cfg Config) Option {
	return func(c *clientConfig) error {
		c.config = cfg
		return nil
	}
}

// WithSecretsFile sets the credential file path.
// Default: secrets.env
func WithSecretsFile(path string) Option {
	return func(c *clientConfig) error {
		if path == "" {
			return fmt.Errorf("secrets file cannot be empty")
		}
		c.config.SecretsFile = path
		return nil
	}
}

// WithCredentials resolves credentials from src instead of the secrets file.
func WithCredentials(src registry.CredentialSource) Option {
	return func(c *clientConfig) error {
		if src == nil {
			return fmt.Errorf("credential source cannot be nil")
		}
		c.credentials = src
		return nil
	}
}

// WithFlagKey sets the flag evaluated on every iteration.
// Default: isMyFirstFeatureEnabled
func WithFlagKey(key string) Option {
	return func(c *clientConfig) error {
		if key == "" {
			return fmt.Errorf("flag key cannot be empty")
		}
		c.config.FlagKey = key
		return nil
	}
}

func WithDefaultValue(v bool) Option {
	return func(c *clientConfig) error {
		c.config.DefaultValue = v
		return nil
	}
}

// WithUser sets the user every provider evaluates against.
func WithUser(user User) Option {
	return func(c *clientConfig) error {
		c.user = user
		return nil
	}
}

// WithProvider registers a provider. Providers are initialized and
// evaluated in the order they are added.
//
// Example:
//
//	pennant.WithProvider(configcat.Registration(configcat.DefaultConfig()))
func WithProvider(reg Registration) Option {
	return func(c *clientConfig) error {
		if err := reg.Validate(); err != nil {
			return err
		}
		c.registrations = append(c.registrations, reg)
		return nil
	}
}

// WithPollInterval sets the pause between iterations.
// Default: 500ms
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		c.config.Polling.Interval = d
		return nil
	}
}

// WithEvaluationTimeout bounds each provider call. Zero disables it.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(c *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("evaluation timeout cannot be negative")
		}
		c.config.Polling.EvaluationTimeout = d
		return nil
	}
}

// WithInitTimeout bounds each provider's initialization.
// Default: 10 seconds
func WithInitTimeout(d time.Duration) Option {
	return func(c *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("init timeout cannot be negative")
		}
		c.config.InitTimeout = d
		return nil
	}
}

// WithCircuitBreaker skips a provider for timeout after threshold
// consecutive failures.
//
// Example: pennant.WithCircuitBreaker(3, 30*time.Second)
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if threshold < 1 {
			return fmt.Errorf("circuit breaker threshold must be at least 1")
		}
		c.config.CircuitBreaker = CircuitBreakerConfig{Threshold: threshold, Timeout: timeout}
		return nil
	}
}

// WithReporter adds a reporter. Several reporters all receive every
// iteration.
func WithReporter(r Reporter) Option {
	return func(c *clientConfig) error {
		if r == nil {
			return fmt.Errorf("reporter cannot be nil")
		}
		c.reporters = append(c.reporters, r)
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) error {
		if l == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// WithTelemetry sets the metrics and tracing provider.
// Default: no-op
func WithTelemetry(t telemetry.Provider) Option {
	return func(c *clientConfig) error {
		if t == nil {
			return fmt.Errorf("telemetry provider cannot be nil")
		}
		c.telemetry = t
		return nil
	}
}

// WithAdminServer enables the admin HTTP server.
//
// Endpoints:
//   - GET /health
//   - GET /admin/stats
//   - GET /admin/results
//   - POST /admin/poll
func WithAdminServer(config AdminConfig) Option {
	return func(c *clientConfig) error {
		if err := validatePort("admin", config.Port); err != nil {
			return err
		}
		c.adminEnabled = true
		c.adminPort = config.Port
		return nil
	}
}

// WithWebhook enables the webhook HTTP server. A POST /webhook with
//
//	{"event": "flag.updated", "flag_keys": ["isMyFirstFeatureEnabled"]}
//
// naming the polled flag starts the next iteration immediately.
func WithWebhook(config WebhookConfig) Option {
	return func(c *clientConfig) error {
		if err := validatePort("webhook", config.Port); err != nil {
			return err
		}
		c.webhookEnabled = true
		c.webhookPort = config.Port
		c.webhookSecret = config.Secret
		return nil
	}
}

func validatePort(name string, port int) error {
	if port <= 0 {
		return fmt.Errorf("%s port must be positive", name)
	}
	if port > 65535 {
		return fmt.Errorf("%s port must be <= 65535", name)
	}
	return nil
}
