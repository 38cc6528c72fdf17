// Package circuit guards a single provider adapter against repeated
// failures. An open breaker makes the poller skip the adapter until the
// cool-down has passed.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down expires.
	StateOpen
	// StateHalfOpen lets calls through on probation.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int

	// Timeout is the cool-down before an open breaker lets a probe through.
	Timeout time.Duration

	// SuccessThreshold is the number of half-open successes that close it again.
	SuccessThreshold int

	// OnStateChange runs on its own goroutine after every transition.
	OnStateChange func(name string, from, to State)
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:      3,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker tracks consecutive failures of one named dependency.
type Breaker struct {
	mu sync.RWMutex

	name             string
	maxFailures      int
	timeout          time.Duration
	successThreshold int
	onStateChange    func(name string, from, to State)

	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time

	totalRequests   int64
	totalSuccesses  int64
	totalFailures   int64
	totalRejections int64
}

// New creates a closed breaker. Non-positive thresholds fall back to the
// defaults.
func New(name string, config Config) *Breaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}

	return &Breaker{
		name:             name,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		successThreshold: config.SuccessThreshold,
		onStateChange:    config.OnStateChange,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

func (b *Breaker) Name() string { return b.name }

// Call runs fn unless the breaker is open. A failure caused by the caller's
// own context ending is not counted against the dependency.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)

	if err != nil && ctx.Err() != nil {
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if time.Since(b.lastStateChange) >= b.timeout {
			b.setState(StateHalfOpen)
			return nil
		}
		b.totalRejections++
		return &CircuitOpenError{
			Name:            b.name,
			Failures:        b.failures,
			LastFailureTime: b.lastFailureTime,
			RetryAt:         b.lastStateChange.Add(b.timeout),
		}
	default:
		return fmt.Errorf("unknown circuit breaker state: %d", b.state)
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.totalSuccesses++
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.successThreshold {
				b.setState(StateClosed)
			}
		}
		return
	}

	b.totalFailures++
	b.failures++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.maxFailures {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.successes = 0
	b.lastStateChange = time.Now()

	if b.onStateChange != nil {
		go b.onStateChange(b.name, from, to)
	}
}

// State returns the current state without advancing an expired cool-down.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed)
	b.failures = 0
}

func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Name:            b.name,
		State:           b.state.String(),
		Failures:        b.failures,
		TotalRequests:   b.totalRequests,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}

// Stats is a JSON-friendly snapshot of a breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"consecutive_failures"`
	TotalRequests   int64     `json:"total_requests"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	LastStateChange time.Time `json:"last_state_change"`
}

// CircuitOpenError is returned by Call while the breaker is open.
type CircuitOpenError struct {
	Name            string
	Failures        int
	LastFailureTime time.Time
	RetryAt         time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %s is open (failures: %d, retry at: %s)",
		e.Name, e.Failures, e.RetryAt.Format(time.RFC3339))
}

// IsCircuitOpen reports whether err wraps a *CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitOpenError
	return errors.As(err, &openErr)
}
