package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/OrlandoBitencourt/pennant/internal/logger"
)

const envPrefix = "PENNANT_"

// config is read from PENNANT_* environment variables.
type config struct {
	SecretsFile       string        `env:"SECRETS_FILE" envDefault:"secrets.env"`
	FlagKey           string        `env:"FLAG_KEY" envDefault:"isMyFirstFeatureEnabled"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	EvaluationTimeout time.Duration `env:"EVAL_TIMEOUT" envDefault:"0s"`
	InitTimeout       time.Duration `env:"INIT_TIMEOUT" envDefault:"10s"`
	Providers         []string      `env:"PROVIDERS" envSeparator:"," envDefault:"configcat,launchdarkly,flagsmith,devcycle,featbit,openfeature"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	AdminPort     int    `env:"ADMIN_PORT"`
	WebhookPort   int    `env:"WEBHOOK_PORT"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	CircuitThreshold int           `env:"CIRCUIT_THRESHOLD"`
	CircuitTimeout   time.Duration `env:"CIRCUIT_TIMEOUT" envDefault:"30s"`

	User userConfig

	FeatBitStreamingURL   string        `env:"FEATBIT_STREAMING_URL" envDefault:"ws://localhost:5100"`
	FeatBitEventURL       string        `env:"FEATBIT_EVENT_URL" envDefault:"http://localhost:5100"`
	ConfigCatPollInterval time.Duration `env:"CONFIGCAT_POLL_INTERVAL" envDefault:"10s"`
}

type userConfig struct {
	ID      string `env:"USER_ID" envDefault:"##SOME-USER-IDENTIFIER##"`
	Email   string `env:"USER_EMAIL" envDefault:"jane@example.com"`
	Country string `env:"USER_COUNTRY" envDefault:"Finland"`
	Tenant  int    `env:"USER_TENANT" envDefault:"50001"`
	Role    string `env:"USER_ROLE" envDefault:"PolicyAdmin"`
}

// loadConfig parses environ, or the process environment when environ is nil.
func loadConfig(environ map[string]string) (config, error) {
	var cfg config
	opts := env.Options{Prefix: envPrefix, Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}

	for i, name := range cfg.Providers {
		cfg.Providers[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return config{}, err
	}
	if _, err := logger.ParseFormat(cfg.LogFormat); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) loggerOptions() []logger.Option {
	level, _ := logger.ParseLevel(c.LogLevel)
	format, _ := logger.ParseFormat(c.LogFormat)
	return []logger.Option{
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithAttr(slog.String("app", "pennant")),
	}
}
