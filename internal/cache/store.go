// Package cache keeps upstream results in a key/value store with time based
// freshness. Entries are never evicted for age; a stale entry is reported as a
// miss and overwritten by the next Put.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

const (
	// CardWindow is how long card lists and the expansion catalog stay fresh
	CardWindow = 7 * 24 * time.Hour
	// RateWindow is how long an exchange rate stays fresh
	RateWindow = 24 * time.Hour
)

// KVStore is the persistence backend. Read reports found=false for absent keys;
// an error means the backend itself failed.
type KVStore interface {
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key, value string) error
}

// Entry is a cached value with the time it was stored.
type Entry[T any] struct {
	StoredAt time.Time
	Value    T
}

type envelope[T any] struct {
	StoredAt int64 `json:"stored_at"` // unix milliseconds
	Value    T     `json:"value"`
}

// Store is a typed view over a KVStore with a freshness window.
type Store[T any] struct {
	kv        KVStore
	namespace string
	window    time.Duration
	now       func() time.Time
}

func NewStore[T any](kv KVStore, namespace string, window time.Duration) *Store[T] {
	return &Store[T]{
		kv:        kv,
		namespace: namespace,
		window:    window,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Store[T]) WithClock(now func() time.Time) *Store[T] {
	s.now = now
	return s
}

// Window returns the freshness window
func (s *Store[T]) Window() time.Duration {
	return s.window
}

// Get returns the entry for key when it exists and is younger than the window.
// Backend failures and undecodable entries are treated as misses.
func (s *Store[T]) Get(ctx context.Context, key string) (*Entry[T], bool) {
	raw, found, err := s.kv.Read(ctx, key)
	if err != nil {
		log.Printf("Cache: read %s failed: %v", key, err)
		metrics.CacheLookupsTotal.WithLabelValues(s.namespace, "error").Inc()
		return nil, false
	}
	if !found {
		metrics.CacheLookupsTotal.WithLabelValues(s.namespace, "miss").Inc()
		return nil, false
	}

	var env envelope[T]
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Printf("Cache: discarding unreadable entry %s: %v", key, err)
		metrics.CacheLookupsTotal.WithLabelValues(s.namespace, "error").Inc()
		return nil, false
	}

	storedAt := time.UnixMilli(env.StoredAt)
	if s.now().Sub(storedAt) >= s.window {
		metrics.CacheLookupsTotal.WithLabelValues(s.namespace, "expired").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues(s.namespace, "hit").Inc()
	return &Entry[T]{StoredAt: storedAt, Value: env.Value}, true
}

// Put stores value under key stamped with the current time, replacing any
// previous entry. The error is informational; callers carry on without the cache.
func (s *Store[T]) Put(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(envelope[T]{StoredAt: s.now().UnixMilli(), Value: value})
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues(s.namespace, "error").Inc()
		return err
	}
	if err := s.kv.Write(ctx, key, string(data)); err != nil {
		log.Printf("Cache: write %s failed: %v", key, err)
		metrics.CacheWritesTotal.WithLabelValues(s.namespace, "error").Inc()
		return err
	}
	metrics.CacheWritesTotal.WithLabelValues(s.namespace, "success").Inc()
	return nil
}

// ExpansionCache holds aggregated card lists per expansion or search.
type ExpansionCache = Store[[]models.Card]

func NewExpansionCache(kv KVStore) *ExpansionCache {
	return NewStore[[]models.Card](kv, "cards", CardWindow)
}

// CatalogCache holds the full expansion catalog.
type CatalogCache = Store[[]models.Expansion]

func NewCatalogCache(kv KVStore) *CatalogCache {
	return NewStore[[]models.Expansion](kv, "expansions", CardWindow)
}
