package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bimsense/internal/models"
)

// statsKeySuffix names the Redis hash holding the hit/miss/item counters,
// relative to the store's key prefix.
const statsKeySuffix = "stats"

// setEntryScript stores an entry and bumps the item counter when the key is
// new, in one atomic server-side step.
var setEntryScript = redis.NewScript(`
	local created = redis.call("EXISTS", KEYS[1]) == 0
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	if created then
		redis.call("HINCRBY", KEYS[2], ARGV[3], 1)
	end
	if created then return 1 else return 0 end
`)

// deleteEntryScript removes an entry and decrements the item counter only if
// the key actually existed, keeping repeated invalidations idempotent.
var deleteEntryScript = redis.NewScript(`
	local removed = redis.call("DEL", KEYS[1])
	if removed == 1 then
		redis.call("HINCRBY", KEYS[2], ARGV[1], -1)
	end
	return removed
`)

// RedisPatternStore is the rich PatternStore implementation. All counter
// updates run server-side (HINCRBY or Lua), batch lookups are a single MGET
// round trip, and sliding reads use GETEX.
type RedisPatternStore struct {
	client   *redis.Client
	statsKey string
}

// NewRedisPatternStore connects to Redis and returns the rich store.
func NewRedisPatternStore(redisURL, keyPrefix string) (*RedisPatternStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Redis connection established")

	return &RedisPatternStore{
		client:   client,
		statsKey: keyPrefix + statsKeySuffix,
	}, nil
}

// Client returns the underlying Redis client (shared with the event
// publisher's pub/sub).
func (s *RedisPatternStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisPatternStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is healthy
func (s *RedisPatternStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetEntry reads a key with GETEX, resetting its expiration to ttl in the
// same operation.
func (s *RedisPatternStore) GetEntry(ctx context.Context, key string, ttl time.Duration) (string, error) {
	val, err := s.client.GetEx(ctx, key, ttl).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storeErr("GETEX", err)
	}
	return val, nil
}

// SetEntry stores the payload and maintains the item counter atomically.
func (s *RedisPatternStore) SetEntry(ctx context.Context, key, payload string, ttl time.Duration) (bool, error) {
	created, err := setEntryScript.Run(ctx, s.client,
		[]string{key, s.statsKey},
		payload, ttl.Milliseconds(), statItems,
	).Int64()
	if err != nil {
		return false, storeErr("SET", err)
	}
	return created == 1, nil
}

// DeleteEntry removes the key; deleting an absent key is a no-op.
func (s *RedisPatternStore) DeleteEntry(ctx context.Context, key string) error {
	if _, err := deleteEntryScript.Run(ctx, s.client,
		[]string{key, s.statsKey}, statItems,
	).Int64(); err != nil {
		return storeErr("DEL", err)
	}
	return nil
}

// BatchGet fetches all keys in one MGET round trip.
func (s *RedisPatternStore) BatchGet(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr("MGET", err)
	}

	result := make(map[string]string, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			result[keys[i]] = str
		}
	}
	return result, nil
}

// Expire resets a single key's expiration.
func (s *RedisPatternStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.PExpire(ctx, key, ttl).Err(); err != nil {
		return storeErr("PEXPIRE", err)
	}
	return nil
}

// ExtendEntries resets several expirations in one pipelined round trip.
func (s *RedisPatternStore) ExtendEntries(ctx context.Context, ttls map[string]time.Duration) error {
	if len(ttls) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, ttl := range ttls {
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("PEXPIRE pipeline", err)
	}
	return nil
}

// IncrCounter adds delta to a statistics hash field with HINCRBY. The
// increment happens on the server, so arbitrary concurrent callers never
// lose updates.
func (s *RedisPatternStore) IncrCounter(ctx context.Context, field string, delta int64) error {
	if err := s.client.HIncrBy(ctx, s.statsKey, field, delta).Err(); err != nil {
		return storeErr("HINCRBY", err)
	}
	return nil
}

// ReadCounters reads the whole statistics hash in a single HGETALL, so the
// snapshot cannot be torn by concurrent increments.
func (s *RedisPatternStore) ReadCounters(ctx context.Context) (models.CacheStatistics, error) {
	fields, err := s.client.HGetAll(ctx, s.statsKey).Result()
	if err != nil {
		return models.CacheStatistics{}, storeErr("HGETALL", err)
	}

	parse := func(field string) int64 {
		n, _ := strconv.ParseInt(fields[field], 10, 64)
		return n
	}
	return models.CacheStatistics{
		HitCount:   parse(statHits),
		MissCount:  parse(statMisses),
		TotalItems: parse(statItems),
	}, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
