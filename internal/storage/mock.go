package storage

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// MockStorage is an in-process ResultStore for tests.
type MockStorage struct {
	mu      sync.RWMutex
	results map[string]domain.EvaluationResult

	// Mock behaviors
	PutFunc   func(ctx context.Context, result domain.EvaluationResult) error
	CloseFunc func() error

	// Call tracking
	PutCalls   int
	CloseCalls int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{results: make(map[string]domain.EvaluationResult)}
}

func (m *MockStorage) Put(ctx context.Context, result domain.EvaluationResult) error {
	m.mu.Lock()
	m.PutCalls++
	fn := m.PutFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, result)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key(result.Provider, result.FlagKey)] = result
	return nil
}

func (m *MockStorage) Get(ctx context.Context, provider, flagKey string) (domain.EvaluationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[key(provider, flagKey)]
	if !ok {
		return domain.EvaluationResult{}, ErrNotFound
	}
	return result, nil
}

func (m *MockStorage) List(ctx context.Context) ([]domain.EvaluationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.EvaluationResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]domain.EvaluationResult)
	return nil
}

func (m *MockStorage) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{Size: len(m.results)}
}

func (m *MockStorage) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}
