package geocache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/kv/memory"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCacheHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(memory.New(), WithClock(clk.now))

	c.Set(ctx, "123 Main St", branch.Coordinates{Lng: -71.06, Lat: 42.36})
	clk.t = clk.t.Add(7 * 24 * time.Hour)

	got, ok := c.Get(ctx, "123 Main St")
	if !ok {
		t.Fatal("expected hit at exactly TTL")
	}
	if got.Lng != -71.06 || got.Lat != 42.36 {
		t.Fatalf("unexpected coordinates %+v", got)
	}
}

func TestCacheExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.New()
	c := New(store, WithClock(clk.now))

	c.Set(ctx, "123 Main St", branch.Coordinates{Lng: 1, Lat: 2})
	clk.t = clk.t.Add(7*24*time.Hour + time.Millisecond)

	if _, ok := c.Get(ctx, "123 Main St"); ok {
		t.Fatal("expected miss after TTL")
	}
	if store.Len() != 1 {
		t.Fatal("expired entries are not deleted proactively")
	}
}

func TestCacheKeyIsLiteralAddress(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := New(store)

	c.Set(ctx, "123 Main St", branch.Coordinates{Lng: 1, Lat: 2})
	if _, ok := c.Get(ctx, "123 main st"); ok {
		t.Fatal("differently formatted address must be a distinct key")
	}
	if _, ok, _ := store.Get(ctx, "geocode:123 Main St"); !ok {
		t.Fatal("expected namespaced key in backing store")
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := New(store)

	for _, raw := range []string{"not json", `{"timestamp": 1}`, `[]`} {
		_ = store.Set(ctx, "geocode:x", raw)
		if _, ok := c.Get(ctx, "x"); ok {
			t.Fatalf("expected miss for corrupt entry %q", raw)
		}
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("quota exceeded") }
func (failingStore) Delete(context.Context, string) error      { return nil }

func TestCacheSwallowsStoreFailures(t *testing.T) {
	ctx := context.Background()
	c := New(failingStore{})

	c.Set(ctx, "1 A St", branch.Coordinates{Lng: 1, Lat: 2})
	if _, ok := c.Get(ctx, "1 A St"); ok {
		t.Fatal("expected miss when store fails")
	}
}

func TestCacheCustomTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New(memory.New(), WithClock(clk.now), WithTTL(time.Hour))

	c.Set(ctx, "a", branch.Coordinates{Lng: 1, Lat: 1})
	clk.t = clk.t.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected miss with custom TTL")
	}
}
