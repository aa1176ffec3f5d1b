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

// unreachableRedis fails every command quickly.
func unreachableRedis(t *testing.T) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewRedisCacheFromClient(client, "test")
}

func TestLayeredCache_SetFailsWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(unreachableRedis(t))
	t.Cleanup(func() { _ = lc.Close() })

	require.Error(t, lc.Set(ctx, "k", []byte("v"), time.Minute))

	// nothing reached L1 either
	_, err := lc.memCache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLayeredCache_ServesFromMemoryFirst(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(unreachableRedis(t))
	t.Cleanup(func() { _ = lc.Close() })

	require.NoError(t, lc.memCache.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestLayeredCache_MemoryTTLCap(t *testing.T) {
	lc := NewLayeredCache(unreachableRedis(t), WithLayeredMemoryTTL(30*time.Second))
	t.Cleanup(func() { _ = lc.Close() })

	assert.Equal(t, 30*time.Second, lc.memoryTTL(5*time.Minute))
	assert.Equal(t, 10*time.Second, lc.memoryTTL(10*time.Second))
	assert.Equal(t, 30*time.Second, lc.memoryTTL(0))
}

// Runs against a real server when FINDASH_TEST_REDIS_ADDR is set.
func TestLayeredCache_Redis(t *testing.T) {
	addr := os.Getenv("FINDASH_TEST_REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("FINDASH_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	rc, err := NewRedisCache(WithRedisAddr(addr), WithRedisPrefix("findash-test-"+uuid.NewString()))
	require.NoError(t, err)
	lc := NewLayeredCache(rc)
	t.Cleanup(func() { _ = lc.Close() })

	require.NoError(t, lc.Set(ctx, "snap", []byte("body"), time.Minute))

	// drop L1 so the read has to go to Redis and backfill
	require.NoError(t, lc.memCache.Delete(ctx, "snap"))
	got, err := lc.Get(ctx, "snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), got)

	ok, err := lc.memCache.Exists(ctx, "snap")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lc.Delete(ctx, "snap"))
	_, err = lc.Get(ctx, "snap")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
