package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

// exercise drives a limiter of max 3 per minute through one window and into
// the next.
func exercise(t *testing.T, l Limiter, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "203.0.113.7:/auth/login")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d", i)
		assert.EqualValues(t, 3-i, res.Remaining)
	}

	clock.t = clock.t.Add(20 * time.Second)
	res, err := l.Allow(ctx, "203.0.113.7:/auth/login")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 0, res.Remaining)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	// Other clients are counted separately.
	res, err = l.Allow(ctx, "198.51.100.1:/auth/login")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	clock.t = clock.t.Add(time.Minute)
	res, err = l.Allow(ctx, "203.0.113.7:/auth/login")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a new window starts from zero")
}

func windowStart() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func TestMemoryLimiter(t *testing.T) {
	clock := windowStart()
	l := NewMemoryLimiter(3, time.Minute)
	l.now = clock.now
	exercise(t, l, clock)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := windowStart()
	l := NewRedisLimiter(rdb, "", 3, time.Minute)
	l.now = clock.now
	exercise(t, l, clock)

	key := "rl:203.0.113.7:/auth/login:" + "1740823200"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestRedisLimiter_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, err := NewRedisLimiter(rdb, "", 3, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}
