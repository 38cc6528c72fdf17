// Package featbit adapts the FeatBit Go SDK to provider.FlagProvider.
package featbit

import (
	"context"
	"errors"
	"time"

	featbit "github.com/featbit/featbit-go-sdk"
	"github.com/featbit/featbit-go-sdk/interfaces"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Custom attribute names sent with the user.
const (
	attrCountry  = "country"
	attrTenantID = "tenantId"
	attrRole     = "role"
)

var errNotInitialized = errors.New("client did not finish initializing")

// Config points the SDK at a FeatBit evaluation server.
type Config struct {
	// StreamingURL is the websocket endpoint, e.g. ws://localhost:5100.
	StreamingURL string

	// EventURL receives insight events, e.g. http://localhost:5100.
	EventURL string

	// StartWait bounds how long New blocks for the initial data sync.
	// A deadline on the context passed to New takes precedence when sooner.
	StartWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		StreamingURL: "ws://localhost:5100",
		EventURL:     "http://localhost:5100",
		StartWait:    15 * time.Second,
	}
}

type client interface {
	IsInitialized() bool
	BoolVariation(flagKey string, user interfaces.FBUser, defaultValue bool) (bool, error)
	Close() error
}

type sdkClient struct {
	c *featbit.FBClient
}

func (s sdkClient) IsInitialized() bool {
	return s.c.IsInitialized()
}

func (s sdkClient) BoolVariation(flagKey string, user interfaces.FBUser, defaultValue bool) (bool, error) {
	value, _, err := s.c.BoolVariation(flagKey, user, defaultValue)
	return value, err
}

func (s sdkClient) Close() error {
	return s.c.Close()
}

// Provider evaluates flags through FeatBit.
type Provider struct {
	client client
}

// dialer creates a connected client. The SDK may return a live client
// together with a start-wait error.
type dialer func(secret string, cfg Config, wait time.Duration) (client, error)

func dialSDK(secret string, cfg Config, wait time.Duration) (client, error) {
	c, err := featbit.MakeCustomFBClient(secret, cfg.StreamingURL, cfg.EventURL, featbit.FBConfig{StartWait: wait})
	if c == nil {
		return nil, err
	}
	return sdkClient{c: c}, err
}

// New connects to the FeatBit streaming endpoint and waits for the initial
// data sync, at most until the context deadline.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	return newWithDialer(ctx, cred, cfg, dialSDK)
}

func newWithDialer(ctx context.Context, cred domain.ProviderCredential, cfg Config, dial dialer) (*Provider, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return nil, domain.NewProviderInitError(provider.FeatBit, err)
	}
	if cfg.StreamingURL == "" || cfg.EventURL == "" {
		return nil, domain.NewProviderInitError(provider.FeatBit, errors.New("streaming and event URLs are required"))
	}

	c, err := dial(cred.Secret, cfg, startWait(ctx, cfg.StartWait))
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, domain.NewProviderInitError(provider.FeatBit, err)
	}
	return newWithClient(c)
}

// startWait is the configured wait, cut short by the context deadline.
func startWait(ctx context.Context, configured time.Duration) time.Duration {
	wait := configured
	if wait <= 0 {
		wait = DefaultConfig().StartWait
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	return wait
}

func newWithClient(c client) (*Provider, error) {
	if !c.IsInitialized() {
		_ = c.Close()
		return nil, domain.NewProviderInitError(provider.FeatBit, errNotInitialized)
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
		Name:       provider.FeatBit,
		Credential: provider.FeatBitCredential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.FeatBit }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return defaultValue, domain.NewEvaluationError(provider.FeatBit, flagKey, "context done", err)
	}

	fbUser, err := toUser(user)
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.FeatBit, flagKey, "invalid user", err)
	}

	value, err := p.client.BoolVariation(flagKey, fbUser, defaultValue)
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.FeatBit, flagKey, "variation failed", err)
	}
	return value, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// toUser keys the FeatBit user by identifier and names it by email. FeatBit
// custom attributes are strings only, so the tenant is sent as text.
func toUser(user domain.UserContext) (interfaces.FBUser, error) {
	name := user.Email()
	if name == "" {
		name = user.Identifier()
	}

	b := interfaces.NewUserBuilder(user.Identifier()).
		UserName(name).
		Custom(attrCountry, user.Country()).
		Custom(attrTenantID, user.TenantIDString()).
		Custom(attrRole, user.Role())

	for k, v := range user.Custom() {
		b = b.Custom(k, v)
	}

	return b.Build()
}
