package services

import (
	"context"
	"errors"
	"time"

	"bimsense/internal/models"
)

// ErrNotFound marks the normal miss path: the requested hash has no cache
// entry, or the requested suggestion id does not exist. Non-fatal by
// definition.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable marks a backing-store failure (network error, timeout,
// cancellation). Callers must treat it as a miss and never block
// classification on it.
var ErrStoreUnavailable = errors.New("cache store unavailable")

// Counter fields of the cache statistics hash.
const (
	statHits   = "hits"
	statMisses = "misses"
	statItems  = "items"
)

// PatternStore is the minimal capability surface the classification cache
// needs from a backing store. Two implementations exist and are selected
// once at construction, never per call:
//
//   - RedisPatternStore ("rich"): native GETEX sliding reads, MGET batch
//     lookups, HINCRBY atomic counters, and Lua scripts that keep the item
//     counter in step with entry creation and deletion.
//   - MemoryPatternStore ("basic"): process-local, backed by go-cache plus
//     sync/atomic counters. Used by unit tests and single-node deployments
//     without Redis.
//
// The item counter tracks sets minus deletes; entries that decay by TTL on
// the remote store are not individually observed, so the counter may drift
// slightly high between evictions. Statistics are advisory and eventually
// consistent.
type PatternStore interface {
	// GetEntry returns the payload stored under key, resetting its
	// expiration to ttl (the sliding read). Returns ErrNotFound when the
	// key is absent and ErrStoreUnavailable on connectivity failure.
	GetEntry(ctx context.Context, key string, ttl time.Duration) (string, error)

	// SetEntry stores payload under key with expiration ttl, overwriting
	// any previous value wholesale. Reports whether the key was newly
	// created.
	SetEntry(ctx context.Context, key, payload string, ttl time.Duration) (bool, error)

	// DeleteEntry removes key. Deleting an absent key is not an error.
	DeleteEntry(ctx context.Context, key string) error

	// BatchGet returns the payloads for every present key in one round
	// trip where the store supports it. Absent keys are simply missing
	// from the result map.
	BatchGet(ctx context.Context, keys []string) (map[string]string, error)

	// Expire resets the expiration of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// ExtendEntries resets expirations for several keys at once (a single
	// pipelined round trip on the rich store).
	ExtendEntries(ctx context.Context, ttls map[string]time.Duration) error

	// IncrCounter atomically adds delta to a statistics counter on the
	// store itself. Never implemented as a local read-modify-write of the
	// remote value: that loses increments under concurrent access.
	IncrCounter(ctx context.Context, field string, delta int64) error

	// ReadCounters returns all statistics counters in one structured
	// read, so concurrent writers cannot tear the snapshot.
	ReadCounters(ctx context.Context) (models.CacheStatistics, error)
}
