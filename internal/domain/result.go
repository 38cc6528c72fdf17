package domain

import (
	"fmt"
	"time"
)

// ProviderCredential is a named secret handed to exactly one adapter.
type ProviderCredential struct {
	Name   string
	Secret string
}

// String masks the secret so credentials can be logged safely.
func (c ProviderCredential) String() string {
	return fmt.Sprintf("%s=%s", c.Name, maskSecret(c.Secret))
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// EvaluationResult is produced once per provider per poll iteration.
type EvaluationResult struct {
	Provider  string
	FlagKey   string
	Value     bool
	Latency   time.Duration
	Timestamp time.Time
	Err       error
}

// OK reports whether the evaluation completed without error.
func (r EvaluationResult) OK() bool {
	return r.Err == nil
}

// LatencyMillis is the latency rounded down to whole milliseconds.
func (r EvaluationResult) LatencyMillis() int64 {
	return r.Latency.Milliseconds()
}
