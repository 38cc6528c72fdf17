// Package devcycle adapts the DevCycle Go server SDK, in cloud bucketing
// mode, to provider.FlagProvider.
package devcycle

import (
	"context"
	"fmt"
	"io"

	devcycle "github.com/devcyclehq/go-server-sdk/v2"
	"github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Custom data keys sent with the user.
const (
	dataTenantID = "tenantId"
	dataRole     = "role"
)

// Config configures the DevCycle client.
type Config struct {
	// CloudBucketing evaluates through the DevCycle bucketing API instead
	// of the local WASM engine.
	CloudBucketing bool
}

func DefaultConfig() Config {
	return Config{CloudBucketing: true}
}

type client interface {
	VariableValue(user devcycle.User, key string, defaultValue interface{}) (interface{}, error)
	OpenFeatureProvider() openfeature.FeatureProvider
	Close() error
}

type sdkClient struct {
	c *devcycle.Client
}

func (s sdkClient) VariableValue(user devcycle.User, key string, defaultValue interface{}) (interface{}, error) {
	return s.c.VariableValue(user, key, defaultValue)
}

func (s sdkClient) OpenFeatureProvider() openfeature.FeatureProvider {
	return s.c.OpenFeatureProvider()
}

func (s sdkClient) Close() error {
	return s.c.Close()
}

// Provider evaluates flags through DevCycle.
type Provider struct {
	client client
}

// New creates a DevCycle client.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return nil, domain.NewProviderInitError(provider.DevCycle, err)
	}

	c, err := devcycle.NewClient(cred.Secret, &devcycle.Options{
		EnableCloudBucketing: cfg.CloudBucketing,
	})
	if err != nil {
		return nil, domain.NewProviderInitError(provider.DevCycle, err)
	}
	return &Provider{client: sdkClient{c: c}}, nil
}

func Factory(cfg Config) provider.Factory {
	return func(ctx context.Context, cred domain.ProviderCredential) (provider.FlagProvider, error) {
		return New(ctx, cred, cfg)
	}
}

func Registration(cfg Config) provider.Registration {
	return provider.Registration{
		Name:       provider.DevCycle,
		Credential: provider.DevCycleCredential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.DevCycle }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	if err := provider.CheckContext(ctx); err != nil {
		return defaultValue, domain.NewEvaluationError(provider.DevCycle, flagKey, "context done", err)
	}

	raw, err := p.client.VariableValue(toUser(user), flagKey, defaultValue)
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.DevCycle, flagKey, "variable request failed", err)
	}

	value, ok := raw.(bool)
	if !ok {
		return defaultValue, domain.NewEvaluationError(provider.DevCycle, flagKey, fmt.Sprintf("variable is %T, not bool", raw), nil)
	}
	return value, nil
}

// OpenFeatureProvider exposes the same client through DevCycle's
// OpenFeature provider.
func (p *Provider) OpenFeatureProvider() openfeature.FeatureProvider {
	return p.client.OpenFeatureProvider()
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// FeatureProviderSource creates a dedicated DevCycle client and hands out
// its OpenFeature provider. The returned closer owns that client. The
// signature matches openfeature.Source in the sibling adapter package.
func FeatureProviderSource(cfg Config) func(ctx context.Context, cred domain.ProviderCredential) (openfeature.FeatureProvider, io.Closer, error) {
	return func(ctx context.Context, cred domain.ProviderCredential) (openfeature.FeatureProvider, io.Closer, error) {
		p, err := New(ctx, cred, cfg)
		if err != nil {
			return nil, nil, err
		}
		return p.OpenFeatureProvider(), p, nil
	}
}

func toUser(user domain.UserContext) devcycle.User {
	data := map[string]interface{}{
		dataTenantID: user.TenantID(),
		dataRole:     user.Role(),
	}
	for k, v := range user.Custom() {
		data[k] = v
	}

	return devcycle.User{
		UserId:     user.Identifier(),
		Email:      user.Email(),
		Country:    user.Country(),
		CustomData: data,
	}
}
