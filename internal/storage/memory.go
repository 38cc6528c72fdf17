package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// MemoryStorage is a ResultStore backed by ristretto. Ristretto cannot
// enumerate its keys, so an index of written keys is kept alongside.
type MemoryStorage struct {
	cache  *ristretto.Cache
	config Config

	mu    sync.RWMutex
	index map[string]struct{}
}

func NewMemoryStorage(cfg Config) (*MemoryStorage, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.MetricsEnabled,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	return &MemoryStorage{
		cache:  cache,
		config: cfg,
		index:  make(map[string]struct{}),
	}, nil
}

func (m *MemoryStorage) Put(ctx context.Context, result domain.EvaluationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key(result.Provider, result.FlagKey)

	var ok bool
	if m.config.TTL > 0 {
		ok = m.cache.SetWithTTL(k, result, 1, m.config.TTL)
	} else {
		ok = m.cache.Set(k, result, 1)
	}
	if !ok {
		return fmt.Errorf("result for %s/%s dropped by cache", result.Provider, result.FlagKey)
	}
	// Make the write visible to readers right away.
	m.cache.Wait()

	m.mu.Lock()
	m.index[k] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, provider, flagKey string) (domain.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluationResult{}, err
	}

	value, found := m.cache.Get(key(provider, flagKey))
	if !found {
		return domain.EvaluationResult{}, ErrNotFound
	}
	result, ok := value.(domain.EvaluationResult)
	if !ok {
		return domain.EvaluationResult{}, ErrNotFound
	}
	return result, nil
}

func (m *MemoryStorage) List(ctx context.Context) ([]domain.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]domain.EvaluationResult, 0, len(m.index))
	for k := range m.index {
		value, found := m.cache.Get(k)
		if !found {
			// expired or evicted
			delete(m.index, k)
			continue
		}
		if result, ok := value.(domain.EvaluationResult); ok {
			results = append(results, result)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Provider != results[j].Provider {
			return results[i].Provider < results[j].Provider
		}
		return results[i].FlagKey < results[j].FlagKey
	})
	return results, nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Clear()
	m.index = make(map[string]struct{})
	return nil
}

func (m *MemoryStorage) Metrics() Metrics {
	m.mu.RLock()
	size := len(m.index)
	m.mu.RUnlock()

	metrics := Metrics{Size: size}
	if cm := m.cache.Metrics; cm != nil {
		metrics.KeysAdded = cm.KeysAdded()
		metrics.KeysUpdated = cm.KeysUpdated()
		metrics.KeysEvicted = cm.KeysEvicted()
		metrics.SetsDropped = cm.SetsDropped()
		metrics.Hits = cm.Hits()
		metrics.Misses = cm.Misses()
		metrics.HitRatio = cm.Ratio()
	}
	return metrics
}

func (m *MemoryStorage) Close() error {
	m.cache.Close()
	return nil
}
