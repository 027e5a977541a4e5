package channel

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "nonce-a"
	keyB = "nonce-b"
)

func receive(t *testing.T, sub Subscription) Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope received")
	}
	return Envelope{}
}

func requireSilent(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case env := <-sub.Messages():
		t.Fatalf("unexpected envelope %s", env.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_PosterDelivers(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, keyA)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, NewPoster(bus, origin, keyA).Post(ctx, Complete{Provider: "google"}))

	m, err := Decode(receive(t, sub), origin)
	require.NoError(t, err)
	assert.Equal(t, Complete{Provider: "google"}, m)
}

func TestMemoryBus_KeysAreIsolated(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	subA, err := bus.Subscribe(ctx, keyA)
	require.NoError(t, err)
	defer subA.Close()
	subB, err := bus.Subscribe(ctx, keyB)
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, NewPoster(bus, origin, keyB).Post(ctx, Failure{Provider: "google", Error: "access_denied"}))

	m, err := Decode(receive(t, subB), origin)
	require.NoError(t, err)
	assert.Equal(t, Failure{Provider: "google", Error: "access_denied"}, m)
	requireSilent(t, subA)
}

func TestMemoryBus_CloseDetaches(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, bus.Subscribers())

	require.NoError(t, NewPoster(bus, origin, keyA).Post(ctx, Complete{Provider: "google"}))
	select {
	case <-sub.Messages():
		t.Fatal("detached subscription received a message")
	default:
	}
}

func TestMemoryBus_RequiresKey(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	_, err := bus.Subscribe(ctx, "")
	assert.ErrorIs(t, err, ErrNoKey)

	err = NewPoster(bus, origin, "").Post(ctx, Complete{Provider: "google"})
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestMemoryBus_SubscribeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryBus().Subscribe(ctx, keyA)
	assert.ErrorIs(t, err, context.Canceled)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisBus_RoundTrip(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	opener := NewRedisBus(rdb, origin, nil)
	popup := NewRedisBus(rdb, origin, nil)

	sub, err := opener.Subscribe(ctx, keyA)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, NewPoster(popup, origin, keyA).Post(ctx, Failure{Provider: "github", Error: "access_denied"}))

	env := receive(t, sub)
	assert.Equal(t, origin, env.Origin)

	m, err := Decode(env, origin)
	require.NoError(t, err)
	assert.Equal(t, Failure{Provider: "github", Error: "access_denied"}, m)
}

func TestRedisBus_KeysAreIsolated(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	bus := NewRedisBus(rdb, origin, nil)

	subA, err := bus.Subscribe(ctx, keyA)
	require.NoError(t, err)
	defer subA.Close()
	subB, err := bus.Subscribe(ctx, keyB)
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, NewPoster(bus, origin, keyB).Post(ctx, Failure{Provider: "google", Error: "access_denied"}))

	m, err := Decode(receive(t, subB), origin)
	require.NoError(t, err)
	assert.Equal(t, Failure{Provider: "google", Error: "access_denied"}, m)
	requireSilent(t, subA)
}

func TestRedisBus_SkipsGarbage(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	bus := NewRedisBus(rdb, origin, nil)

	sub, err := bus.Subscribe(ctx, keyA)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, rdb.Publish(ctx, ChannelName(origin, keyA), "not-an-envelope").Err())
	require.NoError(t, NewPoster(bus, origin, keyA).Post(ctx, Complete{Provider: "google"}))

	m, err := Decode(receive(t, sub), origin)
	require.NoError(t, err)
	assert.Equal(t, Complete{Provider: "google"}, m)
}

func TestRedisBus_RequiresKey(t *testing.T) {
	bus := NewRedisBus(newRedis(t), origin, nil)

	_, err := bus.Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoKey)
	assert.ErrorIs(t, bus.Publish(context.Background(), "", Envelope{Origin: origin}), ErrNoKey)
}

func TestRedisBus_CloseEndsMessages(t *testing.T) {
	rdb := newRedis(t)
	sub, err := NewRedisBus(rdb, origin, nil).Subscribe(context.Background(), keyA)
	require.NoError(t, err)

	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed")
	}
}
