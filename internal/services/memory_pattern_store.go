package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bimsense/internal/models"
)

// MemoryPatternStore is the basic PatternStore implementation: process-local
// entries in a go-cache instance and counters on sync/atomic integers. It
// exists for unit tests and for single-node deployments without Redis; it
// offers the same interface semantics as the rich store but no cross-process
// sharing.
type MemoryPatternStore struct {
	cache  *gocache.Cache
	mu     sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
	items  atomic.Int64
}

// NewMemoryPatternStore creates the in-memory store.
func NewMemoryPatternStore() *MemoryPatternStore {
	c := gocache.New(gocache.NoExpiration, time.Minute)

	store := &MemoryPatternStore{cache: c}

	// Keep the item counter in step with janitor evictions and deletes.
	c.OnEvicted(func(string, interface{}) {
		store.items.Add(-1)
	})

	return store
}

// GetEntry returns the payload under key and extends its expiration to ttl.
func (s *MemoryPatternStore) GetEntry(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storeErr("GET", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val, found := s.cache.Get(key)
	if !found {
		return "", ErrNotFound
	}

	payload := val.(string)
	s.cache.Set(key, payload, ttl)
	return payload, nil
}

// SetEntry stores the payload, reporting whether the key was new.
func (s *MemoryPatternStore) SetEntry(ctx context.Context, key, payload string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("SET", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.cache.Get(key)
	s.cache.Set(key, payload, ttl)
	if !existed {
		s.items.Add(1)
	}
	return !existed, nil
}

// DeleteEntry removes the key; absent keys are a no-op. The eviction hook
// decrements the item counter when something was actually removed.
func (s *MemoryPatternStore) DeleteEntry(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("DEL", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}

// BatchGet returns payloads for every present key.
func (s *MemoryPatternStore) BatchGet(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("BATCHGET", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, found := s.cache.Get(key); found {
			result[key] = val.(string)
		}
	}
	return result, nil
}

// Expire resets an existing key's expiration.
func (s *MemoryPatternStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return storeErr("EXPIRE", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if val, found := s.cache.Get(key); found {
		s.cache.Set(key, val, ttl)
	}
	return nil
}

// ExtendEntries resets several expirations.
func (s *MemoryPatternStore) ExtendEntries(ctx context.Context, ttls map[string]time.Duration) error {
	for key, ttl := range ttls {
		if err := s.Expire(ctx, key, ttl); err != nil {
			return err
		}
	}
	return nil
}

// IncrCounter adds delta to a statistics counter atomically.
func (s *MemoryPatternStore) IncrCounter(ctx context.Context, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return storeErr("INCR", err)
	}

	switch field {
	case statHits:
		s.hits.Add(delta)
	case statMisses:
		s.misses.Add(delta)
	case statItems:
		s.items.Add(delta)
	}
	return nil
}

// ReadCounters returns the current counter values.
func (s *MemoryPatternStore) ReadCounters(ctx context.Context) (models.CacheStatistics, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheStatistics{}, storeErr("READSTATS", err)
	}

	return models.CacheStatistics{
		HitCount:   s.hits.Load(),
		MissCount:  s.misses.Load(),
		TotalItems: s.items.Load(),
	}, nil
}
