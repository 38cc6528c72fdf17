// Package provider defines the capability every vendor adapter implements.
// Adapters live in sub-packages, one per vendor SDK.
package provider

import (
	"context"
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// FlagProvider evaluates boolean flags through one vendor SDK. It owns
// exactly one vendor client; Close releases it.
type FlagProvider interface {
	// Name identifies the vendor in output and metrics.
	Name() string

	// Evaluate returns the flag value for user. On failure it returns
	// defaultValue together with an error.
	Evaluate(ctx context.Context, flagKey string, user domain.UserContext, defaultValue bool) (bool, error)

	// Close releases the vendor client.
	Close() error
}

// Factory performs the one-time, vendor-specific initialization of an
// adapter. It returns a *domain.ProviderInitError on failure.
type Factory func(ctx context.Context, cred domain.ProviderCredential) (FlagProvider, error)

// Registration ties an adapter factory to the credential it needs.
type Registration struct {
	// Name must be unique within a registry.
	Name string

	// Credential is the key-store entry handed to Factory.
	Credential string

	Factory Factory
}

// Validate checks that the registration can be used.
func (r Registration) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if r.Credential == "" {
		return fmt.Errorf("provider %s: credential name cannot be empty", r.Name)
	}
	if r.Factory == nil {
		return fmt.Errorf("provider %s: factory is required", r.Name)
	}
	return nil
}

// Vendor names as printed on the console.
const (
	ConfigCat    = "ConfigCat"
	LaunchDarkly = "LaunchDarkly"
	Flagsmith    = "Flagsmith"
	DevCycle     = "DevCycle"
	FeatBit      = "FeatBit"
	OpenFeature  = "OpenFeature"
)

// Default credential names in the key store.
const (
	ConfigCatCredential    = "CONFIG_CAT_KEY"
	LaunchDarklyCredential = "LAUNCH_DARKLY_KEY"
	FlagsmithCredential    = "FLAGSMITH_KEY"
	DevCycleCredential     = "DEVCYCLE_KEY"
	FeatBitCredential      = "FEATBIT_KEY"
)

// CheckContext returns ctx.Err() if ctx is already done. Adapters whose
// vendor call takes no context use it before calling out.
func CheckContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
