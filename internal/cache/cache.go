// Package cache memoizes computed date lists. The composite key embeds
// the current date and hour so cutoff transitions roll over naturally
// at the top of the hour; the TTL guarantees eviction independently.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "collectdate:dates:"

type entry struct {
	dates     []string
	expiresAt time.Time
}

// Cache is a read-through date-list cache: an in-memory map always, a
// shared redis layer when configured.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	redis *redis.Client
}

// New creates a cache; ttl defaults to one hour, now to time.Now.
func New(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// UseRedis layers a shared redis cache behind the in-memory map.
func (c *Cache) UseRedis(client *redis.Client) {
	c.redis = client
}

// Key builds the composite cache key: scope, limit, calendar date and
// hour of day. A new hour means a new key.
func (c *Cache) Key(scope string, limit int) string {
	n := c.now()
	return fmt.Sprintf("%s%s:%d:%s:%02d", keyPrefix, scope, limit, n.Format("2006-01-02"), n.Hour())
}

// Get returns the cached list for the key, if present and fresh.
func (c *Cache) Get(ctx context.Context, key string) ([]string, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.dates, true
	}
	c.mu.Unlock()

	if c.redis == nil {
		return nil, false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var dates []string
	if err := json.Unmarshal([]byte(val), &dates); err != nil {
		return nil, false
	}
	c.storeLocal(key, dates)
	return dates, true
}

// Set stores the list under the key with the fixed TTL.
func (c *Cache) Set(ctx context.Context, key string, dates []string) {
	c.storeLocal(key, dates)
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(dates)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) storeLocal(key string, dates []string) {
	c.mu.Lock()
	c.entries[key] = entry{dates: dates, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Clear wipes the whole key namespace. Idempotent; called after any
// settings, category-rule or exclusion mutation.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = c.redis.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
