package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBusPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	bus := New(setupTestRedis(t))

	got := make(chan changefeed.Event, 1)
	sub, err := bus.Subscribe(ctx, "tenants", func(_ context.Context, ev changefeed.Event) {
		got <- ev
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, changefeed.Event{Table: "tenants", Op: changefeed.OpUpdate, RowID: "b1"}))

	select {
	case ev := <-got:
		assert.Equal(t, changefeed.OpUpdate, ev.Op)
		assert.Equal(t, "b1", ev.RowID)
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestBusChannelPrefix(t *testing.T) {
	bus := New(setupTestRedis(t), WithChannelPrefix("x:"))
	assert.Equal(t, "x:tenants", bus.Channel("tenants"))
}

func TestBusCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bus := New(setupTestRedis(t))

	sub, err := bus.Subscribe(ctx, "tenants", func(context.Context, changefeed.Event) {})
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}
