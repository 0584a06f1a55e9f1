package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	AccountID uint   `json:"account_id"`
	Balance   string `json:"balance"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, time.Minute), mr
}

func TestCache_SetAccountAndInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := AccountKey(7)
	assert.Equal(t, "account:user:7", key)

	var got summary
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	version, err := c.AccountVersion(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, version)

	stored, err := c.SetAccount(ctx, 7, version, summary{AccountID: 3, Balance: "1000.00"})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, time.Minute, mr.TTL(key))

	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, summary{AccountID: 3, Balance: "1000.00"}, got)

	require.NoError(t, c.InvalidateAccounts(ctx, 7, 8))
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	version, err = c.AccountVersion(ctx, 8)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
}

func TestCache_SetAccountAfterInvalidationIsDiscarded(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// A summary loaded before a ledger commit must not outlive its invalidation.
	version, err := c.AccountVersion(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, c.InvalidateAccounts(ctx, 7))

	stored, err := c.SetAccount(ctx, 7, version, summary{AccountID: 3, Balance: "1000.00"})
	require.NoError(t, err)
	assert.False(t, stored)
	found, err := c.Get(ctx, AccountKey(7), &summary{})
	require.NoError(t, err)
	assert.False(t, found)

	version, err = c.AccountVersion(ctx, 7)
	require.NoError(t, err)
	stored, err = c.SetAccount(ctx, 7, version, summary{AccountID: 3, Balance: "990.00"})
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.SetAccount(ctx, 1, 0, summary{AccountID: 1})
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	found, err := c.Get(ctx, AccountKey(1), &summary{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	found, err := c.Get(context.Background(), "k", &summary{})
	assert.Error(t, err)
	assert.False(t, found)
}

func TestCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "k", &summary{})
	assert.Error(t, err)
	_, err = c.AccountVersion(context.Background(), 1)
	assert.Error(t, err)
	_, err = c.SetAccount(context.Background(), 1, 0, summary{})
	assert.Error(t, err)
}

func TestCache_Disabled(t *testing.T) {
	for name, c := range map[string]*Cache{"nil cache": nil, "nil client": New(nil, time.Minute)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.False(t, c.Enabled())
			stored, err := c.SetAccount(ctx, 1, 0, 1)
			assert.NoError(t, err)
			assert.False(t, stored)
			found, err := c.Get(ctx, "k", new(int))
			assert.NoError(t, err)
			assert.False(t, found)
			assert.NoError(t, c.InvalidateAccounts(ctx, 1))
		})
	}
}
