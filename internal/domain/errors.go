package domain

import (
	"errors"
	"fmt"
)

// -----------------------------
// ConfigurationError
// -----------------------------

// ConfigurationError reports a missing or malformed piece of configuration:
// an absent credential file, a line without a separator, or a credential
// name that was never loaded.
type ConfigurationError struct {
	Source  string
	Message string
	Cause   error
}

func NewConfigurationError(source, message string) *ConfigurationError {
	return &ConfigurationError{Source: source, Message: message}
}

func NewConfigurationErrorWithCause(source, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Source: source, Message: message, Cause: cause}
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error [%s]: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error [%s]: %s", e.Source, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// -----------------------------
// ProviderInitError
// -----------------------------

type ProviderInitError struct {
	Provider string
	Err      error
}

func NewProviderInitError(provider string, err error) *ProviderInitError {
	return &ProviderInitError{Provider: provider, Err: err}
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("failed to initialize provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderInitError) Unwrap() error {
	return e.Err
}

func IsProviderInitError(err error) bool {
	var target *ProviderInitError
	return errors.As(err, &target)
}

// -----------------------------
// EvaluationError
// -----------------------------

type EvaluationError struct {
	Provider string
	FlagKey  string
	Reason   string
	Err      error
}

func NewEvaluationError(provider, flagKey, reason string, err error) *EvaluationError {
	return &EvaluationError{
		Provider: provider,
		FlagKey:  flagKey,
		Reason:   reason,
		Err:      err,
	}
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation error on flag %s from %s: %s: %v", e.FlagKey, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluation error on flag %s from %s: %s", e.FlagKey, e.Provider, e.Reason)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}
