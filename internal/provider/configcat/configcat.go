// Package configcat adapts the ConfigCat Go SDK to provider.FlagProvider.
package configcat

import (
	"context"
	"io"
	"time"

	configcat "github.com/configcat/go-sdk/v9"
	"github.com/sirupsen/logrus"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Custom attribute names the ConfigCat targeting rules use.
const (
	attrInstance = "Instance"
	attrRole     = "Role"
)

// Config configures the ConfigCat client.
type Config struct {
	// PollInterval is the auto-poll refresh period.
	PollInterval time.Duration

	// Logger receives SDK log output. Nil discards it.
	Logger *logrus.Logger

	// LogLevel is the SDK's own level filter.
	LogLevel configcat.LogLevel
}

// DefaultConfig returns the demo settings: auto-poll
// every ten seconds with info-level SDK logging.
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Second,
		LogLevel:     configcat.LogLevelInfo,
	}
}

// client is the subset of *configcat.Client the adapter needs.
type client interface {
	Refresh(ctx context.Context) error
	GetBoolValueDetails(key string, defaultValue bool, user configcat.User) configcat.BoolEvaluationDetails
	Close()
}

// Provider evaluates flags through ConfigCat.
type Provider struct {
	client client
}

// New creates an auto-polling ConfigCat client and waits for its first
// config fetch.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	c := configcat.NewCustomClient(configcat.Config{
		SDKKey:       cred.Secret,
		PollingMode:  configcat.AutoPoll,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		LogLevel:     cfg.LogLevel,
	})

	return newWithClient(ctx, c)
}

func newWithClient(ctx context.Context, c client) (*Provider, error) {
	if err := c.Refresh(ctx); err != nil {
		c.Close()
		return nil, domain.NewProviderInitError(provider.ConfigCat, err)
	}
	return &Provider{client: c}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg Config) provider.Factory {
	return func(ctx context.Context, cred domain.ProviderCredential) (provider.FlagProvider, error) {
		return New(ctx, cred, cfg)
	}
}

// Registration registers ConfigCat under its default credential name.
func Registration(cfg Config) provider.Registration {
	return provider.Registration{
		Name:       provider.ConfigCat,
		Credential: provider.ConfigCatCredential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.ConfigCat }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return defaultValue, domain.NewEvaluationError(provider.ConfigCat, flagKey, "context done", err)
	}

	details := p.client.GetBoolValueDetails(flagKey, defaultValue, toUserData(user))
	if details.Data.Error != nil {
		return defaultValue, domain.NewEvaluationError(provider.ConfigCat, flagKey, "sdk evaluation failed", details.Data.Error)
	}
	return details.Value, nil
}

func (p *Provider) Close() error {
	p.client.Close()
	return nil
}

// toUserData maps the tenant to ConfigCat's "Instance" attribute and the
// role to "Role"; free-form attributes follow and may override them.
func toUserData(user domain.UserContext) *configcat.UserData {
	custom := map[string]interface{}{
		attrInstance: user.TenantIDString(),
		attrRole:     user.Role(),
	}
	for k, v := range user.Custom() {
		custom[k] = v
	}

	return &configcat.UserData{
		Identifier: user.Identifier(),
		Email:      user.Email(),
		Country:    user.Country(),
		Custom:     custom,
	}
}
