package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envRedisTestAddr = "REDIS_TEST_ADDR"

func newRedisTestCache(t *testing.T, opts ...RedisOption) *RedisCache {
	t.Helper()

	addr := os.Getenv(envRedisTestAddr)
	if addr == "" {
		t.Skipf("%s not set, skipping redis test", envRedisTestAddr)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())

	prefix := "slotbook:test:" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
		_ = rdb.Close()
	})

	return NewRedisCache(rdb, time.Minute, append([]RedisOption{WithRedisPrefix(prefix)}, opts...)...)
}

func TestRedisCache_GetPutEvict(t *testing.T) {
	ctx := context.Background()
	c := newRedisTestCache(t)

	_, ok := c.Get(ctx, key(0))
	assert.False(t, ok)

	c.Put(ctx, key(0), page("a", "b"), c.Generation(ctx))
	got, ok := c.Get(ctx, key(0))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, []string{got[0].SlotID, got[1].SlotID})

	require.NoError(t, c.EvictAll(ctx))
	_, ok = c.Get(ctx, key(0))
	assert.False(t, ok)
}

func TestRedisCache_PutAfterEvictionIsInvisible(t *testing.T) {
	ctx := context.Background()
	c := newRedisTestCache(t)

	gen := c.Generation(ctx)
	require.NoError(t, c.EvictAll(ctx))
	c.Put(ctx, key(0), page("stale"), gen)

	_, ok := c.Get(ctx, key(0))
	assert.False(t, ok)
}

func TestRedisCache_AccessRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	c := newRedisTestCache(t)
	c.ttl = 2 * time.Second

	c.Put(ctx, key(0), page("a"), c.Generation(ctx))
	time.Sleep(1200 * time.Millisecond)
	_, ok := c.Get(ctx, key(0))
	require.True(t, ok)
	time.Sleep(1200 * time.Millisecond)
	_, ok = c.Get(ctx, key(0))
	assert.True(t, ok, "read should have renewed the expiry window")
}

func pageKeys(t *testing.T, c *RedisCache) []string {
	t.Helper()
	ctx := context.Background()
	var keys []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+":g*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	require.NoError(t, iter.Err())
	return keys
}

func TestRedisCache_CapacityDropsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := newRedisTestCache(t, WithRedisCapacity(2))
	gen := c.Generation(ctx)

	c.Put(ctx, key(0), page("a"), gen)
	c.Put(ctx, key(1), page("b"), gen)
	_, ok := c.Get(ctx, key(0))
	require.True(t, ok)
	c.Put(ctx, key(2), page("c"), gen)

	_, ok = c.Get(ctx, key(1))
	assert.False(t, ok, "least recently used page should be gone")
	_, ok = c.Get(ctx, key(0))
	assert.True(t, ok)
	_, ok = c.Get(ctx, key(2))
	assert.True(t, ok)
	assert.Len(t, pageKeys(t, c), 2)
}

func TestRedisCache_EvictAllDeletesOldGeneration(t *testing.T) {
	ctx := context.Background()
	c := newRedisTestCache(t, WithRedisCapacity(10))

	for i := range 5 {
		c.Put(ctx, key(i), page("a"), c.Generation(ctx))
	}
	require.Len(t, pageKeys(t, c), 5)

	require.NoError(t, c.EvictAll(ctx))
	assert.Empty(t, pageKeys(t, c))

	exists, err := c.rdb.Exists(ctx, c.indexKey(0)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
