package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdesk/internal/model"
)

// unreachable points at a port nothing listens on.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestUserCache_OutageIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := NewUserCache(unreachable(t), time.Minute, zap.NewNop())

	c.Set(ctx, 0, []model.User{{ID: "u1"}})
	users, gen, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.Nil(t, users)
	assert.Negative(t, gen)

	assert.NotPanics(t, func() { c.Invalidate(ctx) })
}

func newMiniCache(t *testing.T) (*UserCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewUserCache(rdb, time.Minute, zap.NewNop()), mr
}

func TestUserCache_HitAfterSet(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniCache(t)

	_, gen, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.Zero(t, gen)

	c.Set(ctx, gen, []model.User{{ID: "u1", Email: "ana@x.com"}})
	users, _, ok := c.Get(ctx)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, time.Minute, mr.TTL(userListKey))
}

func TestUserCache_InvalidateDropsListing(t *testing.T) {
	ctx := context.Background()
	c, _ := newMiniCache(t)

	c.Set(ctx, 0, []model.User{{ID: "u1"}})
	c.Invalidate(ctx)

	_, gen, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestUserCache_StaleListingIsNotStored(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniCache(t)

	// a reader misses, a writer invalidates, then the reader tries to store
	_, gen, _ := c.Get(ctx)
	c.Invalidate(ctx)
	c.Set(ctx, gen, []model.User{})

	assert.False(t, mr.Exists(userListKey))
	_, _, ok := c.Get(ctx)
	assert.False(t, ok)
}
