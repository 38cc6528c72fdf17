package pennant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
	"github.com/OrlandoBitencourt/pennant/internal/report"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

func apply(t *testing.T, opts ...Option) clientConfig {
	t.Helper()
	cfg := clientConfig{config: DefaultConfig()}
	for _, opt := range opts {
		require.NoError(t, opt(&cfg))
	}
	return cfg
}

func TestOptions_Apply(t *testing.T) {
	_, reg := fakeRegistration("ConfigCat", "CONFIG_CAT_KEY", true)

	cfg := apply(t,
		WithSecretsFile("other.env"),
		WithFlagKey("beta"),
		WithDefaultValue(true),
		WithUser(demoUser()),
		WithProvider(reg),
		WithPollInterval(time.Second),
		WithEvaluationTimeout(2*time.Second),
		WithInitTimeout(3*time.Second),
		WithCircuitBreaker(5, time.Minute),
		WithReporter(report.NewConsole(nil)),
		WithLogger(logger.Discard()),
		WithTelemetry(telemetry.NewNoOp()),
		WithAdminServer(AdminConfig{Port: 19000}),
		WithWebhook(WebhookConfig{Port: 18001, Secret: "s"}),
	)

	assert.Equal(t, "other.env", cfg.config.SecretsFile)
	assert.Equal(t, "beta", cfg.config.FlagKey)
	assert.True(t, cfg.config.DefaultValue)
	assert.Equal(t, "jane@example.com", cfg.user.Email())
	assert.Len(t, cfg.registrations, 1)
	assert.Equal(t, time.Second, cfg.config.Polling.Interval)
	assert.Equal(t, 2*time.Second, cfg.config.Polling.EvaluationTimeout)
	assert.Equal(t, 3*time.Second, cfg.config.InitTimeout)
	assert.Equal(t, CircuitBreakerConfig{Threshold: 5, Timeout: time.Minute}, cfg.config.CircuitBreaker)
	assert.Len(t, cfg.reporters, 1)
	assert.NotNil(t, cfg.logger)
	assert.NotNil(t, cfg.telemetry)
	assert.True(t, cfg.adminEnabled)
	assert.Equal(t, 19000, cfg.adminPort)
	assert.True(t, cfg.webhookEnabled)
	assert.Equal(t, 18001, cfg.webhookPort)
	assert.Equal(t, "s", cfg.webhookSecret)
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty secrets file", WithSecretsFile("")},
		{"nil credentials", WithCredentials(nil)},
		{"empty flag key", WithFlagKey("")},
		{"invalid registration", WithProvider(provider.Registration{Name: "X"})},
		{"zero interval", WithPollInterval(0)},
		{"negative eval timeout", WithEvaluationTimeout(-time.Second)},
		{"negative init timeout", WithInitTimeout(-time.Second)},
		{"zero threshold", WithCircuitBreaker(0, time.Second)},
		{"nil reporter", WithReporter(nil)},
		{"nil logger", WithLogger(nil)},
		{"nil telemetry", WithTelemetry(nil)},
		{"admin port zero", WithAdminServer(AdminConfig{Port: 0})},
		{"admin port too high", WithAdminServer(AdminConfig{Port: 70000})},
		{"webhook port negative", WithWebhook(WebhookConfig{Port: -1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := clientConfig{config: DefaultConfig()}
			assert.Error(t, tt.opt(&cfg))
		})
	}
}

func TestWithConfig(t *testing.T) {
	custom := DefaultConfig()
	custom.FlagKey = "beta"
	custom.Polling.Interval = time.Minute

	cfg := apply(t, WithConfig(custom))

	assert.Equal(t, custom, cfg.config)
}
