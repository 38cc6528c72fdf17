// Package registry owns the ordered set of provider adapters and their
// one-time initialization.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// DefaultInitTimeout bounds each adapter factory call.
const DefaultInitTimeout = 10 * time.Second

// ErrNotStarted is returned by Providers before Start has succeeded.
var ErrNotStarted = errors.New("registry not started")

// CredentialSource resolves a named credential. keystore.KeyStore
// implements it.
type CredentialSource interface {
	Credential(name string) (domain.ProviderCredential, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithInitTimeout bounds each factory call. Zero disables the bound.
func WithInitTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.initTimeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry initializes adapters in registration order and hands them out
// only after all of them are ready.
type Registry struct {
	initTimeout time.Duration
	logger      *slog.Logger

	mu            sync.Mutex
	registrations []provider.Registration
	names         map[string]struct{}
	providers     []provider.FlagProvider
	started       bool
	closed        bool
}

func New(opts ...Option) *Registry {
	r := &Registry{
		initTimeout: DefaultInitTimeout,
		logger:      logger.Discard(),
		names:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends reg. Names must be unique and registration is closed once
// Start has been called.
func (r *Registry) Register(reg provider.Registration) error {
	if err := reg.Validate(); err != nil {
		return domain.NewConfigurationErrorWithCause("registry", "invalid registration", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return domain.NewConfigurationError("registry", fmt.Sprintf("cannot register %s after start", reg.Name))
	}
	if _, dup := r.names[reg.Name]; dup {
		return domain.NewConfigurationError("registry", fmt.Sprintf("provider %s already registered", reg.Name))
	}

	r.names[reg.Name] = struct{}{}
	r.registrations = append(r.registrations, reg)
	return nil
}

// Names returns the registered provider names in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.registrations))
	for i, reg := range r.registrations {
		names[i] = reg.Name
	}
	return names
}

// Start resolves every credential and runs every factory, in order. If any
// step fails the adapters created so far are closed and nothing is kept.
func (r *Registry) Start(ctx context.Context, creds CredentialSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.NewConfigurationError("registry", "registry is closed")
	}
	if r.started {
		return nil
	}
	if len(r.registrations) == 0 {
		return domain.NewConfigurationError("registry", "no providers registered")
	}

	created := make([]provider.FlagProvider, 0, len(r.registrations))
	for _, reg := range r.registrations {
		p, err := r.initOne(ctx, reg, creds)
		if err != nil {
			if closeErr := closeAll(created); closeErr != nil {
				r.logger.Warn("closing providers after failed start", "error", closeErr)
			}
			return err
		}
		created = append(created, p)
		r.logger.Info("provider initialized", "provider", reg.Name)
	}

	r.providers = created
	r.started = true
	return nil
}

func (r *Registry) initOne(ctx context.Context, reg provider.Registration, creds CredentialSource) (provider.FlagProvider, error) {
	cred, err := creds.Credential(reg.Credential)
	if err != nil {
		return nil, err
	}

	initCtx := ctx
	if r.initTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, r.initTimeout)
		defer cancel()
	}

	start := time.Now()
	p, err := reg.Factory(initCtx, cred)
	if err != nil {
		if domain.IsProviderInitError(err) {
			return nil, err
		}
		return nil, domain.NewProviderInitError(reg.Name, err)
	}
	if p == nil {
		return nil, domain.NewProviderInitError(reg.Name, errors.New("factory returned no provider"))
	}

	r.logger.Debug("provider factory finished", "provider", reg.Name, "duration", time.Since(start))
	return p, nil
}

// Providers returns the initialized adapters in registration order.
func (r *Registry) Providers() ([]provider.FlagProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.closed {
		return nil, ErrNotStarted
	}
	out := make([]provider.FlagProvider, len(r.providers))
	copy(out, r.providers)
	return out, nil
}

// Close closes every adapter. Later calls are no-ops.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := closeAll(r.providers)
	r.providers = nil
	return err
}

func closeAll(providers []provider.FlagProvider) error {
	var errs []error
	for _, p := range providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
