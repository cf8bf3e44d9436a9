package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := New(client, WithPrefix("od:"))

	_, ok, err := s.Get(ctx, "geocode:1 A St")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "geocode:1 A St", `{"timestamp":1}`))
	assert.True(t, mr.Exists("od:geocode:1 A St"))

	v, ok, err := s.Get(ctx, "geocode:1 A St")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"timestamp":1}`, v)

	require.NoError(t, s.Delete(ctx, "geocode:1 A St"))
	_, ok, err = s.Get(ctx, "geocode:1 A St")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreExpiration(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := New(client, WithExpiration(time.Minute))

	require.NoError(t, s.Set(ctx, "k", "v"))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGetErrorOnClosedServer(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := New(client)
	mr.Close()

	_, _, err := s.Get(ctx, "k")
	assert.Error(t, err)
}
