package pennant

import (
	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Error types that may be returned by Pennant operations.
type (
	// ConfigurationError covers the credential file, missing credentials
	// and invalid settings.
	ConfigurationError = domain.ConfigurationError

	// ProviderInitError means a vendor client could not be created.
	ProviderInitError = domain.ProviderInitError

	// EvaluationError is carried on a result; it never stops polling.
	EvaluationError = domain.EvaluationError

	// CircuitOpenError is carried on a result whose provider was skipped.
	CircuitOpenError = circuit.CircuitOpenError
)

func NewConfigurationError(source, message string) *ConfigurationError {
	return domain.NewConfigurationError(source, message)
}

func IsConfigurationError(err error) bool { return domain.IsConfigurationError(err) }
func IsProviderInitError(err error) bool  { return domain.IsProviderInitError(err) }
func IsEvaluationError(err error) bool    { return domain.IsEvaluationError(err) }
func IsCircuitOpen(err error) bool        { return circuit.IsCircuitOpen(err) }
