// Package providertest provides a scriptable FlagProvider for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

// Fake is a FlagProvider whose behavior is set per test.
type Fake struct {
	mu sync.Mutex

	name  string
	value bool

	// Mock behaviors
	EvaluateFunc func(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error)
	CloseFunc    func() error

	// Call tracking
	EvaluateCalls int
	CloseCalls    int
	LastFlagKey   string
	LastUser      domain.UserContext
}

// New creates a fake that answers value for every flag.
func New(name string, value bool) *Fake {
	return &Fake{name: name, value: value}
}

// SetValue changes the answer, simulating a vendor-side flag change.
func (f *Fake) SetValue(value bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error) {
	f.mu.Lock()
	f.EvaluateCalls++
	f.LastFlagKey = flagKey
	f.LastUser = user
	value := f.value
	fn := f.EvaluateFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, flagKey, user, defaultValue)
	}
	return value, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.CloseCalls++
	fn := f.CloseFunc
	f.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Calls returns the number of Evaluate calls so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.EvaluateCalls
}

// Closed reports whether Close was called at least once.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CloseCalls > 0
}

// Registration wraps the fake so a registry can initialize it.
func (f *Fake) Registration(credential string) provider.Registration {
	return provider.Registration{
		Name:       f.name,
		Credential: credential,
		Factory: func(ctx context.Context, cred domain.ProviderCredential) (provider.FlagProvider, error) {
			return f, nil
		},
	}
}
