package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bimsense/internal/models"
)

// Cache expiration defaults. An entry is evicted by whichever boundary is
// reached first: the absolute expiration fixed at write time, or the sliding
// expiration that each read pushes forward.
const (
	DefaultAbsoluteTTL = 24 * time.Hour
	DefaultSlidingTTL  = 6 * time.Hour
)

// CacheSchemaVersion is embedded in every serialized envelope so the wire
// format can evolve across deployment boundaries.
const CacheSchemaVersion = 1

const defaultKeyPrefix = "bimsense:classify:"

// cacheEnvelope is the wire format of one cache entry. The store-level TTL
// implements the sliding component; the absolute boundary is carried inside
// the payload and enforced on read, since a GETEX refresh alone would let a
// frequently-read entry live forever.
type cacheEnvelope struct {
	SchemaVersion     int                              `json:"schema_version"`
	StoredAt          time.Time                        `json:"stored_at"`
	AbsoluteExpiresAt time.Time                        `json:"absolute_expires_at"`
	Suggestion        *models.ClassificationSuggestion `json:"suggestion"`
}

// CacheOptions tunes a ClassificationCache. Zero values pick the defaults.
type CacheOptions struct {
	KeyPrefix   string
	AbsoluteTTL time.Duration
	SlidingTTL  time.Duration
	Metrics     *Metrics
}

// ClassificationCache caches advisory classification suggestions keyed by
// pattern hash. It is a disposable optimization layer: losing it costs
// classifier calls, never data. Hit and miss counters are updated with
// atomic remote increments and are strictly best-effort; a counter failure
// is logged and never fails the surrounding value operation.
type ClassificationCache struct {
	store       PatternStore
	keyPrefix   string
	absoluteTTL time.Duration
	slidingTTL  time.Duration
	metrics     *Metrics
}

// NewClassificationCache creates a cache on top of the given store.
func NewClassificationCache(store PatternStore, opts CacheOptions) *ClassificationCache {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.AbsoluteTTL <= 0 {
		opts.AbsoluteTTL = DefaultAbsoluteTTL
	}
	if opts.SlidingTTL <= 0 {
		opts.SlidingTTL = DefaultSlidingTTL
	}

	return &ClassificationCache{
		store:       store,
		keyPrefix:   opts.KeyPrefix,
		absoluteTTL: opts.AbsoluteTTL,
		slidingTTL:  opts.SlidingTTL,
		metrics:     opts.Metrics,
	}
}

// SetMetrics attaches Prometheus metrics after construction. Metrics are
// late-bound because the hit-rate gauge needs the cache itself.
func (c *ClassificationCache) SetMetrics(m *Metrics) {
	c.metrics = m
}

// Get returns the cached suggestion for a pattern hash. A hit extends the
// sliding expiration (clamped to the remaining absolute window) and
// increments the hit counter; an absent or absolutely-expired entry returns
// ErrNotFound and increments the miss counter. Store failures return
// ErrStoreUnavailable — callers treat that as a miss.
func (c *ClassificationCache) Get(ctx context.Context, patternHash string) (*models.ClassificationSuggestion, error) {
	key := c.key(patternHash)

	payload, err := c.store.GetEntry(ctx, key, c.slidingTTL)
	if errors.Is(err, ErrNotFound) {
		c.recordMisses(ctx, 1)
		return nil, ErrNotFound
	}
	if err != nil {
		c.metrics.IncCacheUnavailable()
		return nil, err
	}

	env, ok := c.decode(ctx, key, payload)
	if !ok {
		c.recordMisses(ctx, 1)
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	if !env.AbsoluteExpiresAt.After(now) {
		// The sliding refresh on read must not outlive the absolute
		// boundary; drop the entry and report a miss.
		if err := c.store.DeleteEntry(ctx, key); err != nil {
			log.Printf("⚠️ [CACHE] Failed to evict expired entry %s: %v", patternHash, err)
		}
		c.recordMisses(ctx, 1)
		return nil, ErrNotFound
	}

	if remaining := env.AbsoluteExpiresAt.Sub(now); remaining < c.slidingTTL {
		if err := c.store.Expire(ctx, key, remaining); err != nil {
			log.Printf("⚠️ [CACHE] Failed to clamp expiration for %s: %v", patternHash, err)
		}
	}

	c.recordHits(ctx, 1)
	return env.Suggestion, nil
}

// Set stores a suggestion under a pattern hash, overwriting any previous
// entry wholesale. ttl overrides the absolute expiration; pass zero for the
// default.
func (c *ClassificationCache) Set(ctx context.Context, patternHash string, suggestion *models.ClassificationSuggestion, ttl time.Duration) error {
	if patternHash == "" {
		return fmt.Errorf("%w: pattern hash is required", models.ErrValidation)
	}
	if suggestion == nil {
		return fmt.Errorf("%w: suggestion is required", models.ErrValidation)
	}
	if ttl <= 0 {
		ttl = c.absoluteTTL
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(cacheEnvelope{
		SchemaVersion:     CacheSchemaVersion,
		StoredAt:          now,
		AbsoluteExpiresAt: now.Add(ttl),
		Suggestion:        suggestion,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	storeTTL := c.slidingTTL
	if ttl < storeTTL {
		storeTTL = ttl
	}

	if _, err := c.store.SetEntry(ctx, c.key(patternHash), string(payload), storeTTL); err != nil {
		c.metrics.IncCacheUnavailable()
		return err
	}
	return nil
}

// GetMany looks up several pattern hashes in one multi-key round trip.
// Hashes without an entry are simply absent from the result map. If the
// batch primitive errors, the lookup degrades to sequential single-key gets
// rather than failing; whatever could be read is returned alongside any
// store-unavailable error.
func (c *ClassificationCache) GetMany(ctx context.Context, patternHashes []string) (map[string]*models.ClassificationSuggestion, error) {
	result := make(map[string]*models.ClassificationSuggestion, len(patternHashes))
	if len(patternHashes) == 0 {
		return result, nil
	}

	keys := make([]string, len(patternHashes))
	for i, h := range patternHashes {
		keys[i] = c.key(h)
	}

	payloads, err := c.store.BatchGet(ctx, keys)
	if err != nil {
		log.Printf("⚠️ [CACHE] Batch lookup failed, falling back to sequential reads: %v", err)
		c.metrics.IncCacheUnavailable()
		return c.getSequential(ctx, patternHashes)
	}

	now := time.Now().UTC()
	extensions := make(map[string]time.Duration)
	var hits, misses int64

	for i, hash := range patternHashes {
		payload, found := payloads[keys[i]]
		if !found {
			misses++
			continue
		}

		env, ok := c.decode(ctx, keys[i], payload)
		if !ok || !env.AbsoluteExpiresAt.After(now) {
			misses++
			continue
		}

		// Reads extend only the sliding component, clamped to the
		// remaining absolute window.
		extension := c.slidingTTL
		if remaining := env.AbsoluteExpiresAt.Sub(now); remaining < extension {
			extension = remaining
		}
		extensions[keys[i]] = extension

		result[hash] = env.Suggestion
		hits++
	}

	if err := c.store.ExtendEntries(ctx, extensions); err != nil {
		log.Printf("⚠️ [CACHE] Failed to extend batch entries: %v", err)
	}

	c.recordHits(ctx, hits)
	c.recordMisses(ctx, misses)
	return result, nil
}

// getSequential is the degraded batch path: one Get per hash, skipping
// hashes the store cannot serve.
func (c *ClassificationCache) getSequential(ctx context.Context, patternHashes []string) (map[string]*models.ClassificationSuggestion, error) {
	result := make(map[string]*models.ClassificationSuggestion, len(patternHashes))
	var unavailable error

	for _, hash := range patternHashes {
		suggestion, err := c.Get(ctx, hash)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			unavailable = err
			continue
		}
		result[hash] = suggestion
	}
	return result, unavailable
}

// Invalidate removes a cache entry. Invalidating an absent hash is a no-op,
// never an error.
func (c *ClassificationCache) Invalidate(ctx context.Context, patternHash string) error {
	if err := c.store.DeleteEntry(ctx, c.key(patternHash)); err != nil {
		c.metrics.IncCacheUnavailable()
		return err
	}
	return nil
}

// GetStatistics returns the current hit/miss/item counters via a single
// structured read of the store.
func (c *ClassificationCache) GetStatistics(ctx context.Context) (models.CacheStatistics, error) {
	stats, err := c.store.ReadCounters(ctx)
	if err != nil {
		c.metrics.IncCacheUnavailable()
		return models.CacheStatistics{}, err
	}
	return stats, nil
}

func (c *ClassificationCache) key(patternHash string) string {
	return c.keyPrefix + patternHash
}

// decode unmarshals an envelope, dropping entries this build cannot read.
func (c *ClassificationCache) decode(ctx context.Context, key, payload string) (cacheEnvelope, bool) {
	var env cacheEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Suggestion == nil || env.SchemaVersion > CacheSchemaVersion {
		log.Printf("⚠️ [CACHE] Dropping unreadable cache entry %s", key)
		if err := c.store.DeleteEntry(ctx, key); err != nil {
			log.Printf("⚠️ [CACHE] Failed to drop entry %s: %v", key, err)
		}
		return cacheEnvelope{}, false
	}
	return env, true
}

// recordHits and recordMisses are strictly best-effort: a statistics failure
// is logged and never propagates into the value operation.
func (c *ClassificationCache) recordHits(ctx context.Context, n int64) {
	if n == 0 {
		return
	}
	if err := c.store.IncrCounter(ctx, statHits, n); err != nil {
		log.Printf("⚠️ [CACHE] Failed to record %d hit(s): %v", n, err)
	}
	c.metrics.AddCacheHits(n)
}

func (c *ClassificationCache) recordMisses(ctx context.Context, n int64) {
	if n == 0 {
		return
	}
	if err := c.store.IncrCounter(ctx, statMisses, n); err != nil {
		log.Printf("⚠️ [CACHE] Failed to record %d miss(es): %v", n, err)
	}
	c.metrics.AddCacheMisses(n)
}
