package cache

import (
	"context"
	"testing"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

func billingDenied(tenantID string) modulerule.Set {
	return modulerule.NewSet([]*modulerule.Rule{{
		TenantID: tenantID,
		Module:   modulerule.ModuleBilling,
		Role:     modulerule.RoleStaff,
		Allowed:  false,
	}})
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	// Miss
	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "t1", billingDenied("t1"))
	got, ok := c.Get(ctx, "t1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	rule, ok := got.Lookup(modulerule.ModuleBilling, modulerule.RoleStaff)
	if !ok || rule.Allowed {
		t.Fatal("expected cached deny rule")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	c := NewMemory(WithTTL(time.Minute))
	c.now = func() time.Time { return now }

	c.Set(ctx, "t1", billingDenied("t1"))
	now = now.Add(time.Minute + time.Second)

	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry should be evicted on read")
	}
}

func TestMemoryCacheInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "t1", billingDenied("t1"))
	c.Set(ctx, "t2", billingDenied("t2"))

	c.InvalidateTenant(ctx, "t1")

	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("t1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "t2"); !ok {
		t.Fatal("t2 should still be cached")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		tenant := string(rune('a' + i))
		c.Set(ctx, tenant, billingDenied(tenant))
	}

	if size := c.Len(); size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
	if _, ok := c.Get(ctx, "e"); !ok {
		t.Fatal("most recent tenant should be cached")
	}
}

func TestMemoryCacheOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	c.Set(ctx, "a", billingDenied("a"))
	c.Set(ctx, "b", billingDenied("b"))
	c.Set(ctx, "a", modulerule.NewSet(nil))

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Fatal("overwriting a must not evict b")
	}
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "t1", billingDenied("t1"))
	c.Set(ctx, "t2", billingDenied("t2"))

	c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
	if _, ok := c.Get(ctx, "t2"); ok {
		t.Fatal("expected miss after flush")
	}
}
