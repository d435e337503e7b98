// Package cache implements C2: a content-addressed store of prior Completion
// Responses with TTL and glob-pattern invalidation, grounded on
// pkg/session/redis_backend.go's key-prefix/TTL idiom.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contentops/aicore/internal/provider"
)

// DefaultTTL is used when a caller does not specify a TTL (spec.md §4.2).
const DefaultTTL = 24 * time.Hour

const (
	canonicalPrefix = "cache:fp:"
	customPrefix    = "cache:custom:"
)

// Entry is the stored value for a fingerprint — everything a Completion
// Response needs minus the per-request `cached` flag, which the coordinator
// sets on the response it builds from a hit.
type Entry struct {
	Text        string              `json:"text"`
	ChosenModel string              `json:"model"`
	Tokens      provider.TokenUsage `json:"tokens"`
	CostUSD     float64             `json:"cost_usd"`
}

// Cache is the Redis-backed response cache. A get/set error is never fatal
// to the coordinator (spec.md §4.2): callers log and treat it as a miss or a
// discarded write.
type Cache struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Fingerprint derives the canonical cache key from (model, temperature
// rounded to 3 decimals, SHA-256 of a stable serialisation of messages).
func Fingerprint(model string, temperature float64, messages []provider.Message) string {
	roundedTemp := math.Round(temperature*1000) / 1000

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, m := range messages {
		_ = enc.Encode(m)
	}

	return fmt.Sprintf("%s|%.3f|%s", model, roundedTemp, hex.EncodeToString(h.Sum(nil)))
}

// Get looks up a fingerprint (or a caller-supplied custom key, which lives in
// a distinct namespace from canonical fingerprints so the two can never
// collide). A miss or a store error are indistinguishable to the caller.
func (c *Cache) Get(ctx context.Context, key string, custom bool) (*Entry, bool) {
	redisKey := c.keyFor(key, custom)

	data, err := c.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get %s: %v (treated as miss)", redisKey, err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("cache: unmarshal %s: %v (treated as miss)", redisKey, err)
		return nil, false
	}
	return &entry, true
}

// Set writes an entry under the given key with the given TTL (0 uses
// DefaultTTL). A write failure is logged and discarded — correctness of the
// coordinator must not depend on it.
func (c *Cache) Set(ctx context.Context, key string, custom bool, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("cache: marshal entry for %s: %v (write discarded)", key, err)
		return
	}

	redisKey := c.keyFor(key, custom)
	if err := c.client.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		log.Printf("cache: set %s: %v (write discarded)", redisKey, err)
	}
}

// Invalidate deletes every entry (canonical and custom) whose key matches a
// glob pattern, atomically per shard via SCAN+DEL.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	for _, prefix := range []string{canonicalPrefix, customPrefix} {
		iter := c.client.Scan(ctx, 0, prefix+pattern, 1000).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return deleted, fmt.Errorf("cache: scan %s: %w", prefix, err)
		}
		if len(keys) == 0 {
			continue
		}
		n, err := c.client.Del(ctx, keys...).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache: del: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (c *Cache) keyFor(key string, custom bool) string {
	if custom {
		return customPrefix + key
	}
	return canonicalPrefix + key
}
