// Package flagsmith adapts the Flagsmith Go client to provider.FlagProvider.
package flagsmith

import (
	"context"
	"time"

	flagsmith "github.com/Flagsmith/flagsmith-go-client/v4"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Trait keys sent with identity requests.
const (
	traitCountry  = "country"
	traitTenantID = "tenantId"
	traitRole     = "role"
)

// Config configures the Flagsmith client.
type Config struct {
	// BaseURL overrides the Flagsmith edge API. Empty uses the SDK default.
	BaseURL string

	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
	}
}

// client hides flagsmith.Flags, which tests cannot construct.
type client interface {
	Ping(ctx context.Context) error
	IsFeatureEnabled(ctx context.Context, identifier string, traits []*flagsmith.Trait, feature string) (bool, error)
}

type sdkClient struct {
	c *flagsmith.Client
}

func (s sdkClient) Ping(ctx context.Context) error {
	_, err := s.c.GetEnvironmentFlags(ctx)
	return err
}

func (s sdkClient) IsFeatureEnabled(ctx context.Context, identifier string, traits []*flagsmith.Trait, feature string) (bool, error) {
	flags, err := s.c.GetIdentityFlags(ctx, identifier, traits)
	if err != nil {
		return false, err
	}
	return flags.IsFeatureEnabled(feature)
}

// Provider evaluates flags through Flagsmith's remote identity API.
type Provider struct {
	client client
}

// New creates a Flagsmith client and verifies the environment key with one
// environment-flags request.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	opts := []flagsmith.Option{}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, flagsmith.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, flagsmith.WithBaseURL(cfg.BaseURL))
	}

	c := flagsmith.NewClient(cred.Secret, opts...)
	return newWithClient(ctx, sdkClient{c: c})
}

func newWithClient(ctx context.Context, c client) (*Provider, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, domain.NewProviderInitError(provider.Flagsmith, err)
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
		Name:       provider.Flagsmith,
		Credential: provider.FlagsmithCredential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.Flagsmith }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	enabled, err := p.client.IsFeatureEnabled(ctx, identity(user), toTraits(user), flagKey)
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.Flagsmith, flagKey, "identity flags request failed", err)
	}
	return enabled, nil
}

// Close is a no-op: remote evaluation holds no background resources.
func (p *Provider) Close() error { return nil }

// identity uses the email as the Flagsmith identity, falling back to the
// identifier.
func identity(user domain.UserContext) string {
	if user.Email() != "" {
		return user.Email()
	}
	return user.Identifier()
}

// toTraits sends one trait per key. A custom attribute replaces the
// built-in trait of the same name.
func toTraits(user domain.UserContext) []*flagsmith.Trait {
	traits := []*flagsmith.Trait{
		{TraitKey: traitCountry, TraitValue: user.Country()},
		{TraitKey: traitTenantID, TraitValue: user.TenantID()},
		{TraitKey: traitRole, TraitValue: user.Role()},
	}
	byKey := make(map[string]*flagsmith.Trait, len(traits))
	for _, t := range traits {
		byKey[t.TraitKey] = t
	}

	for k, v := range user.Custom() {
		if t, ok := byKey[k]; ok {
			t.TraitValue = v
			continue
		}
		traits = append(traits, &flagsmith.Trait{TraitKey: k, TraitValue: v})
	}
	return traits
}
