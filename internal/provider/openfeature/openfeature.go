// Package openfeature evaluates flags through the OpenFeature API, backed by
// whichever FeatureProvider the caller supplies.
//
// The FeatureProvider is bound to a named domain of the process-wide
// OpenFeature API. Close rebinds that domain to a no-op provider, so two
// adapters must not share a domain.
package openfeature

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// DefaultDomain is the OpenFeature domain the adapter binds its provider to.
const DefaultDomain = "pennant"

// Evaluation context attribute names.
const (
	attrEmail    = "email"
	attrCountry  = "country"
	attrTenantID = "tenantId"
	attrRole     = "role"
)

// Source builds the FeatureProvider backing the adapter. The returned closer
// releases whatever vendor client sits behind it and may be nil.
type Source func(ctx context.Context, cred domain.ProviderCredential) (openfeature.FeatureProvider, io.Closer, error)

type Config struct {
	// Domain scopes the provider binding in the global OpenFeature API.
	Domain string

	// Credential names the key-store entry passed to Source.
	Credential string

	Source Source
}

type booleanClient interface {
	BooleanValue(ctx context.Context, flag string, defaultValue bool, evalCtx openfeature.EvaluationContext, options ...openfeature.Option) (bool, error)
}

// Provider evaluates flags through an OpenFeature client.
type Provider struct {
	client booleanClient
	closer io.Closer

	// domain is empty when nothing was bound globally.
	domain string
}

// New binds the FeatureProvider produced by cfg.Source to cfg.Domain and
// waits until it reports ready or ctx is done.
func New(ctx context.Context, cred domain.ProviderCredential, cfg Config) (*Provider, error) {
	if cfg.Source == nil {
		return nil, domain.NewProviderInitError(provider.OpenFeature, errors.New("feature provider source is required"))
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}

	fp, closer, err := cfg.Source(ctx, cred)
	if err != nil {
		return nil, domain.NewProviderInitError(provider.OpenFeature, err)
	}

	if err := bindAndWait(ctx, cfg.Domain, fp, closer); err != nil {
		return nil, domain.NewProviderInitError(provider.OpenFeature, err)
	}

	p := newWithClient(openfeature.NewClient(cfg.Domain), closer)
	p.domain = cfg.Domain
	return p, nil
}

// bindAndWait binds fp to the domain and waits for its initialization. The
// SDK wait takes no context, so when ctx ends first the binding is released
// once the abandoned initialization returns.
func bindAndWait(ctx context.Context, clientDomain string, fp openfeature.FeatureProvider, closer io.Closer) error {
	done := make(chan error, 1)
	go func() {
		done <- openfeature.SetNamedProviderAndWait(clientDomain, fp)
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = release(clientDomain, closer)
		}
		return err
	case <-ctx.Done():
		go func() {
			<-done
			_ = release(clientDomain, closer)
		}()
		return ctx.Err()
	}
}

// release rebinds the domain to a no-op provider and closes the vendor client.
func release(clientDomain string, closer io.Closer) error {
	var errs []error
	if err := openfeature.SetNamedProvider(clientDomain, openfeature.NoopProvider{}); err != nil {
		errs = append(errs, fmt.Errorf("unbind domain %s: %w", clientDomain, err))
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newWithClient(c booleanClient, closer io.Closer) *Provider {
	return &Provider{client: c, closer: closer}
}

func Factory(cfg Config) provider.Factory {
	return func(ctx context.Context, cred domain.ProviderCredential) (provider.FlagProvider, error) {
		return New(ctx, cred, cfg)
	}
}

func Registration(cfg Config) provider.Registration {
	return provider.Registration{
		Name:       provider.OpenFeature,
		Credential: cfg.Credential,
		Factory:    Factory(cfg),
	}
}

func (p *Provider) Name() string { return provider.OpenFeature }

func (p *Provider) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	value, err := p.client.BooleanValue(ctx, flagKey, defaultValue, toEvaluationContext(user))
	if err != nil {
		return defaultValue, domain.NewEvaluationError(provider.OpenFeature, flagKey, "boolean evaluation failed", err)
	}
	return value, nil
}

// Close unbinds the domain and closes the vendor client.
func (p *Provider) Close() error {
	if p.domain != "" {
		return release(p.domain, p.closer)
	}
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func toEvaluationContext(user domain.UserContext) openfeature.EvaluationContext {
	attrs := map[string]any{
		attrEmail:    user.Email(),
		attrCountry:  user.Country(),
		attrTenantID: user.TenantID(),
		attrRole:     user.Role(),
	}
	for k, v := range user.Custom() {
		attrs[k] = v
	}
	return openfeature.NewEvaluationContext(user.Identifier(), attrs)
}
