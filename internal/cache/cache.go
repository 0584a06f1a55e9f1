// Package cache is a JSON read-through cache on Redis. A Cache built without a
// client is a valid no-op, so callers never branch on whether Redis is
// configured.
package cache

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // redis.Nil comparison
	"fmt"           // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache stores JSON values in Redis with a fixed TTL.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// New returns a Cache. A nil rdb yields a disabled cache.
func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Enabled reports whether values are actually stored.
func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

// AccountKey is the key of a user's account summary.
func AccountKey(userID uint) string {
	return fmt.Sprintf("account:user:%d", userID)
}

// accountVersionKey counts the invalidations of a user's summary.
func accountVersionKey(userID uint) string {
	return fmt.Sprintf("account:ver:%d", userID)
}

// Get retrieves a value from Redis and unmarshals it into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// AccountVersion returns the invalidation counter of a user's summary. Read it
// before loading the summary from the store and pass it to SetAccount.
func (c *Cache) AccountVersion(ctx context.Context, userID uint) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, accountVersionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// KEYS[1] version key, KEYS[2] summary key
// ARGV[1] expected version, ARGV[2] value, ARGV[3] TTL in milliseconds
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if (v or '0') ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// SetAccount stores a user's summary unless InvalidateAccounts ran for that
// user after version was read. It reports whether the value was stored.
func (c *Cache) SetAccount(ctx context.Context, userID uint, version int64, value any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return false, err // Return error if marshaling fails
	}
	keys := []string{accountVersionKey(userID), AccountKey(userID)}
	n, err := setIfVersion.Run(ctx, c.rdb, keys, version, b, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvalidateAccounts drops the account summaries of the given users and bumps
// their versions, so a summary loaded before the call is never stored.
func (c *Cache) InvalidateAccounts(ctx context.Context, userIDs ...uint) error {
	if !c.Enabled() || len(userIDs) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Del(ctx, AccountKey(id))
			pipe.Incr(ctx, accountVersionKey(id))
		}
		return nil
	})
	return err
}
