package caching

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCachingService(t *testing.T) {
	s := miniredis.RunT(t)
	svc := NewRedisCachingService(redis.NewClient(&redis.Options{Addr: s.Addr()}), "cache:")
	ctx := context.Background()

	val, err := svc.Get(ctx, "user:a")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, svc.Set(ctx, "user:a", "payload", time.Minute))
	assert.True(t, s.Exists("cache:user:a"))

	val, err = svc.Get(ctx, "user:a")
	require.NoError(t, err)
	assert.Equal(t, "payload", val)

	s.FastForward(2 * time.Minute)
	val, err = svc.Get(ctx, "user:a")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, svc.Set(ctx, "user:b", "x", time.Minute))
	require.NoError(t, svc.Delete(ctx, "user:b"))
	assert.False(t, s.Exists("cache:user:b"))
}

func TestNullCachingService(t *testing.T) {
	var c Cache = NewNullCachingService()
	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))

	val, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}
