package pennant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "secrets.env", cfg.SecretsFile)
	assert.Equal(t, "isMyFirstFeatureEnabled", cfg.FlagKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.Interval)
	assert.Zero(t, cfg.Polling.EvaluationTimeout)
	assert.Equal(t, 10*time.Second, cfg.InitTimeout)
	assert.Zero(t, cfg.CircuitBreaker.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty flag key", func(c *Config) { c.FlagKey = "" }},
		{"zero interval", func(c *Config) { c.Polling.Interval = 0 }},
		{"negative eval timeout", func(c *Config) { c.Polling.EvaluationTimeout = -1 }},
		{"negative init timeout", func(c *Config) { c.InitTimeout = -1 }},
		{"negative threshold", func(c *Config) { c.CircuitBreaker.Threshold = -1 }},
		{"threshold without timeout", func(c *Config) {
			c.CircuitBreaker.Threshold = 3
			c.CircuitBreaker.Timeout = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			assert.True(t, IsConfigurationError(err), "got %v", err)
		})
	}
}
