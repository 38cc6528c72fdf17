// Package storage keeps the latest evaluation result per provider and flag
// in memory for the admin API. Nothing is persisted.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// ErrNotFound is returned when no result has been stored for a key.
var ErrNotFound = errors.New("result not found")

// ResultStore holds the most recent result per provider/flag pair.
type ResultStore interface {
	// Put replaces the stored result for result.Provider and result.FlagKey.
	Put(ctx context.Context, result domain.EvaluationResult) error

	// Get returns the latest result for a provider and flag.
	Get(ctx context.Context, provider, flagKey string) (domain.EvaluationResult, error)

	// List returns every stored result ordered by provider, then flag.
	List(ctx context.Context) ([]domain.EvaluationResult, error)

	Clear(ctx context.Context) error

	Metrics() Metrics

	Close() error
}

// Metrics mirrors the ristretto counters that matter for a small store.
type Metrics struct {
	KeysAdded   uint64  `json:"keys_added"`
	KeysUpdated uint64  `json:"keys_updated"`
	KeysEvicted uint64  `json:"keys_evicted"`
	SetsDropped uint64  `json:"sets_dropped"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRatio    float64 `json:"hit_ratio"`
	Size        int     `json:"size"`
}

// Config holds ristretto sizing. Each result costs 1.
type Config struct {
	MaxCost     int64
	NumCounters int64
	BufferItems int64

	// TTL expires results that were not refreshed. Zero keeps them until
	// replaced.
	TTL time.Duration

	MetricsEnabled bool
}

func DefaultConfig() Config {
	return Config{
		MaxCost:        1 << 10,
		NumCounters:    1 << 14,
		BufferItems:    64,
		MetricsEnabled: true,
	}
}

func key(provider, flagKey string) string {
	return provider + "\x00" + flagKey
}
