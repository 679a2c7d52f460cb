package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*RedisStorage)(nil)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStorageGetSetDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStorage(client, "throttle:")

	val, err := store.Get("10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("10.0.0.1", []byte("3"), time.Minute))
	assert.True(t, mr.Exists("throttle:10.0.0.1"))
	assert.Equal(t, time.Minute, mr.TTL("throttle:10.0.0.1"))

	val, err = store.Get("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), val)

	require.NoError(t, store.Delete("10.0.0.1"))
	assert.False(t, mr.Exists("throttle:10.0.0.1"))
}

func TestRedisStorageExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStorage(client, "throttle:")

	require.NoError(t, store.Set("k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := store.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorageResetKeepsOtherKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStorage(client, "throttle:")

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(key, []byte("1"), 0))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, store.Reset())
	assert.False(t, mr.Exists("throttle:a"))
	assert.False(t, mr.Exists("throttle:c"))
	assert.True(t, mr.Exists("other:key"))
	assert.NoError(t, store.Close())
}

func TestRedisPing(t *testing.T) {
	_, client := newTestRedis(t)
	r := &Redis{Client: client}
	assert.NoError(t, r.Ping(context.Background()))

	var missing *Redis
	assert.Error(t, missing.Ping(context.Background()))
}
