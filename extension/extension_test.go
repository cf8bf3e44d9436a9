package extension

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	feedredis "github.com/imranmit2020/open-dental-helper-sub002/changefeed/redis"
	"github.com/imranmit2020/open-dental-helper-sub002/geocode"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/store/memory"
)

type stubGeocoder struct{}

func (stubGeocoder) Forward(_ context.Context, address, _ string) (*branch.Coordinates, error) {
	if address == "nowhere" {
		return nil, geocode.ErrNoResults
	}
	return &branch.Coordinates{Lng: -73.9, Lat: 40.7}, nil
}

func strPtr(s string) *string { return &s }

func TestBuildRequiresStore(t *testing.T) {
	e := New()
	if err := e.build(); !errors.Is(err, opendental.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail before build")
	}
	if err := e.Health(context.Background()); err == nil {
		t.Fatal("expected Health to fail before build")
	}
}

func TestStartLoadsDirectoryAndFollowsFeed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_ = s.CreateBranch(ctx, &branch.Branch{Name: "North", Address: strPtr("1 A St")})

	e := New(
		WithStore(s),
		WithGeocoder(stubGeocoder{}),
		WithTokenSource(geocode.StaticTokenSource("tok")),
	)
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop(ctx) })

	list := e.Directory().Branches()
	if len(list) != 1 || list[0].Coordinates == nil {
		t.Fatalf("expected one geocoded branch after start, got %+v", list)
	}

	_ = s.CreateBranch(ctx, &branch.Branch{Name: "South", Address: strPtr("nowhere")})

	deadline := time.Now().Add(2 * time.Second)
	for len(e.Directory().Branches()) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("directory did not refresh after change event")
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, b := range e.Directory().Branches() {
		if b.Name == "South" && b.Coordinates != nil {
			t.Fatal("failed geocode must leave coordinates nil")
		}
	}

	if err := e.Health(ctx); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

func TestDisableDirectory(t *testing.T) {
	e := New(WithStore(memory.New()), WithDisableDirectory())
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if e.Directory() != nil {
		t.Fatal("expected no directory")
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestResolverUsesConfiguredFallbackRole(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cfg := DefaultConfig()
	cfg.Resolver.FallbackRole = modulerule.RoleHygienist
	e := New(WithStore(s), WithConfig(cfg), WithDisableDirectory())
	if err := e.build(); err != nil {
		t.Fatal(err)
	}

	_ = s.UpsertModuleRule(ctx, &modulerule.Rule{
		TenantID: "t1",
		Module:   modulerule.ModuleReports,
		Role:     modulerule.RoleHygienist,
		Allowed:  false,
	})

	tctx := opendental.WithTenant(ctx, "", "t1")
	if e.Resolver().CanAccessModule(tctx, modulerule.ModuleReports, "") {
		t.Fatal("expected fallback role hygienist to be denied reports")
	}
	if !e.Resolver().CanAccessModule(tctx, modulerule.ModuleReports, modulerule.RoleDentist) {
		t.Fatal("expected dentist to keep default access")
	}
}

func TestRedisFeedSeesStoreWrites(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := memory.New()
	_ = s.CreateBranch(ctx, &branch.Branch{Name: "North", Address: strPtr("1 A St")})

	e := New(
		WithStore(s),
		WithFeed(feedredis.New(client)),
		WithGeocoder(stubGeocoder{}),
		WithTokenSource(geocode.StaticTokenSource("tok")),
	)
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop(ctx) })

	if n := len(e.Directory().Branches()); n != 1 {
		t.Fatalf("expected 1 branch after start, got %d", n)
	}

	_ = s.CreateBranch(ctx, &branch.Branch{Name: "South", Address: strPtr("2 B Ave")})

	deadline := time.Now().Add(2 * time.Second)
	for len(e.Directory().Branches()) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("directory did not refresh after a write relayed through redis")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRuleChangesFlushResolverCache(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := New(WithStore(s), WithDisableDirectory())
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop(ctx) })

	tctx := opendental.WithTenant(ctx, "", "t1")
	if !e.Resolver().CanAccessModule(tctx, modulerule.ModuleInventory, modulerule.RoleStaff) {
		t.Fatal("expected inventory allowed before any rule")
	}

	// A write that bypasses the resolver, as another instance would make.
	_ = s.UpsertModuleRule(ctx, &modulerule.Rule{
		TenantID: "t1",
		Module:   modulerule.ModuleInventory,
		Role:     modulerule.RoleStaff,
		Allowed:  false,
	})
	if e.Resolver().CanAccessModule(tctx, modulerule.ModuleInventory, modulerule.RoleStaff) {
		t.Fatal("rule change event must flush the cached set")
	}
}
