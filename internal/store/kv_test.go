package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisKV(client)
}

func TestRedisKV_SetGet(t *testing.T) {
	_, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "chime:test", "value-1", 0))

	val, err := kv.Get(ctx, "chime:test")
	require.NoError(t, err)
	assert.Equal(t, "value-1", val)
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, kv := setupTestKV(t)

	_, err := kv.Get(context.Background(), "chime:absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "chime:ttl", "v", 5*time.Second))

	mr.FastForward(6 * time.Second)

	_, err := kv.Get(ctx, "chime:ttl")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_Delete(t *testing.T) {
	_, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "chime:del", "v", 0))
	require.NoError(t, kv.Delete(ctx, "chime:del"))

	_, err := kv.Get(ctx, "chime:del")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "chime:clock:7:latest", LatestTelemetryKey(7))
	assert.Equal(t, "chime:weather:Lewisburg", WeatherKey("Lewisburg"))
}
