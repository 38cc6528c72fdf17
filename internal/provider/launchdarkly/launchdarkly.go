// Package launchdarkly adapts the LaunchDarkly server-side SDK to
// provider.FlagProvider.
package launchdarkly

import (
	"context"
	"errors"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/launchdarkly/go-server-sdk/v7/ldcomponents"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Context attribute names sent to LaunchDarkly.
const (
	attrEmail    = "email"
	attrCountry  = "country"
	attrTenantID = "tenantId"
	attrRole     = "role"
)

// Attribute names the context builder treats specially.
var reservedAttributes = map[string]bool{
	"key":       true,
	"kind":      true,
	"anonymous": true,
	"_meta":     true,
}

var errNotInitialized = errors.New("client did not finish initializing")

// Config configures the LaunchDarkly client.
type Config struct {
	// StartWait bounds how long New blocks for the streaming connection.
	// A deadline on the context passed to New takes precedence when sooner.
	StartWait time.Duration

	// LogLevel is the SDK's minimum log level.
	LogLevel ldlog.LogLevel
}

func DefaultConfig() Config {
	return Config{
		StartWait: 5 * time.Second,
		LogLevel:  ldlog.Warn,
	}
}

type client interface {
	BoolVariation(key string, context ldcontext.Context, defaultVal bool) (bool, error)
	Initialized() bool
	Close() error
}

// Provider evaluates flags through LaunchDarkly.
type Provider struct {
	client client
}

// New connects to LaunchDarkly and blocks until the client is initialized
// or the start wait elapses.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	wait := cfg.StartWait
	if wait <= 0 {
		wait = DefaultConfig().StartWait
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}

	var config ld.Config
	config.Logging = ldcomponents.Logging().MinLevel(cfg.LogLevel)

	c, err := ld.MakeCustomClient(cred.Secret, config, wait)
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, domain.NewProviderInitError(provider.LaunchDarkly, err)
	}

	return newWithClient(c)
}

func newWithClient(c client) (*Provider, error) {
	if !c.Initialized() {
		_ = c.Close()
		return nil, domain.NewProviderInitError(provider.LaunchDarkly, errNotInitialized)
	}
	return &Provider{client: c}, nil
}

func Factory(cfg Config) provider.Factory {
	return func(ctx context.Context, cred domain.ProviderCredential) (provider.FlagProvider, error) {
		return New(ctx, cred, cfg)
	}
}

func Registration(cfg Config) provider.Registration {
	return provider.Registration{
		Name:       provider.LaunchDarkly,
		Credential: provider.LaunchDarklyCredential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.LaunchDarkly }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return defaultValue, domain.NewEvaluationError(provider.LaunchDarkly, flagKey, "context done", err)
	}

	value, err := p.client.BoolVariation(flagKey, toContext(user), defaultValue)
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.LaunchDarkly, flagKey, "variation failed", err)
	}
	return value, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// toContext keys the context by email, which this project treats as the
// unique user identifier in LaunchDarkly. Users without an email fall back
// to their identifier.
func toContext(user domain.UserContext) ldcontext.Context {
	key := user.Email()
	if key == "" {
		key = user.Identifier()
	}

	b := ldcontext.NewBuilder(key).
		SetString(attrEmail, user.Email()).
		SetString(attrCountry, user.Country()).
		SetInt(attrTenantID, user.TenantID()).
		SetString(attrRole, user.Role())

	for k, v := range user.Custom() {
		if reservedAttributes[k] {
			continue
		}
		b.SetString(k, v)
	}

	return b.Build()
}
