package opendental

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/store/memory"
)

func newTestResolver(t *testing.T, opts ...Option) (*Resolver, *memory.Store) {
	t.Helper()
	s := memory.New()
	res, err := NewResolver(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return res, s
}

// flakyStore wraps a rule store and fails reads or writes on demand.
type flakyStore struct {
	modulerule.Store
	mu        sync.Mutex
	failList  error
	failWrite error
	lists     int
}

func (f *flakyStore) ListModuleRules(ctx context.Context, tenantID string) ([]*modulerule.Rule, error) {
	f.mu.Lock()
	f.lists++
	err := f.failList
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.ListModuleRules(ctx, tenantID)
}

func (f *flakyStore) UpsertModuleRule(ctx context.Context, r *modulerule.Rule) error {
	f.mu.Lock()
	err := f.failWrite
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.UpsertModuleRule(ctx, r)
}

func (f *flakyStore) setListErr(err error) {
	f.mu.Lock()
	f.failList = err
	f.mu.Unlock()
}

func (f *flakyStore) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// mapCache is a minimal RuleCache.
type mapCache struct {
	mu   sync.Mutex
	sets map[string]modulerule.Set
}

func newMapCache() *mapCache { return &mapCache{sets: make(map[string]modulerule.Set)} }

func (c *mapCache) Get(_ context.Context, tenantID string) (modulerule.Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[tenantID]
	return s, ok
}

func (c *mapCache) Set(_ context.Context, tenantID string, s modulerule.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[tenantID] = s
}

func (c *mapCache) InvalidateTenant(_ context.Context, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, tenantID)
}

func (c *mapCache) has(tenantID string) bool {
	_, ok := c.Get(context.Background(), tenantID)
	return ok
}

func TestNewResolver_RequiresStore(t *testing.T) {
	if _, err := NewResolver(); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestDefaultAllow(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	res, _ := newTestResolver(t)

	access, err := res.ForTenant(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range modulerule.Modules() {
		for _, r := range modulerule.Roles() {
			if !access.CanAccessModule(m, r) {
				t.Fatalf("expected %s/%s allowed without rules", m, r)
			}
		}
	}
	if !access.CanAccessModule("not_a_module", modulerule.RoleStaff) {
		t.Fatal("unknown module keys are allowed when no rule matches")
	}
}

func TestForTenantRequiresTenant(t *testing.T) {
	res, _ := newTestResolver(t)
	if _, err := res.ForTenant(context.Background()); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
}

func TestSetPermissionOverrideAndRevert(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "T1")
	res, _ := newTestResolver(t)
	access, _ := res.ForTenant(ctx)

	if !access.CanAccessModule(modulerule.ModuleSchedule, modulerule.RoleStaff) {
		t.Fatal("expected schedule allowed for staff initially")
	}

	if err := access.SetPermission(ctx, modulerule.ModuleSchedule, modulerule.RoleStaff, false); err != nil {
		t.Fatal(err)
	}
	if access.CanAccessModule(modulerule.ModuleSchedule, modulerule.RoleStaff) {
		t.Fatal("expected schedule denied for staff after override")
	}
	if !access.CanAccessModule(modulerule.ModuleSchedule, modulerule.RoleDentist) {
		t.Fatal("dentist must be unaffected by a staff rule")
	}

	if err := access.SetPermission(ctx, modulerule.ModuleSchedule, modulerule.RoleStaff, true); err != nil {
		t.Fatal(err)
	}
	if !access.CanAccessModule(modulerule.ModuleSchedule, modulerule.RoleStaff) {
		t.Fatal("expected schedule allowed again")
	}
}

func TestSetPermissionTwiceYieldsOneRule(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	res, s := newTestResolver(t)
	access, _ := res.ForTenant(ctx)

	for i := 0; i < 2; i++ {
		if err := access.SetPermission(ctx, modulerule.ModuleBilling, modulerule.RoleHygienist, false); err != nil {
			t.Fatal(err)
		}
	}

	rules, _ := s.ListModuleRules(ctx, "t1")
	if len(rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(rules))
	}
	if rules[0].CorporationID == nil || *rules[0].CorporationID != "corp1" {
		t.Fatal("expected corporation id recorded on the rule")
	}
	if len(access.Rules()) != 1 {
		t.Fatalf("expected one loaded rule, got %d", len(access.Rules()))
	}
}

func TestSetPermissionValidates(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	res, s := newTestResolver(t)
	access, _ := res.ForTenant(ctx)

	if err := access.SetPermission(ctx, "lab_orders", modulerule.RoleStaff, false); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if err := access.SetPermission(ctx, modulerule.ModuleBilling, "owner", false); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if rules, _ := s.ListModuleRules(ctx, "t1"); len(rules) != 0 {
		t.Fatal("invalid writes must not reach the store")
	}
}

func TestSetPermissionFailureLeavesStateUnchanged(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	flaky := &flakyStore{Store: memory.New()}
	res, err := NewResolver(WithStore(flaky))
	if err != nil {
		t.Fatal(err)
	}
	access, _ := res.ForTenant(ctx)

	boom := errors.New("permission denied by row security")
	flaky.failWrite = boom
	if err := access.SetPermission(ctx, modulerule.ModuleReports, modulerule.RoleStaff, false); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if !access.CanAccessModule(modulerule.ModuleReports, modulerule.RoleStaff) {
		t.Fatal("failed write must not be applied")
	}
}

func TestListRulesFailSoftAndNotCached(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.UpsertModuleRule(ctx, &modulerule.Rule{
		ID:       id.NewModuleRuleID(),
		TenantID: "t1",
		Module:   modulerule.ModuleBilling,
		Role:     modulerule.RoleStaff,
		Allowed:  false,
	})
	flaky := &flakyStore{Store: mem}
	cache := newMapCache()
	res, err := NewResolver(WithStore(flaky), WithCache(cache))
	if err != nil {
		t.Fatal(err)
	}

	flaky.setListErr(errors.New("network unreachable"))
	set := res.ListRules(ctx, "t1")
	if set.Len() != 0 {
		t.Fatal("store failure must yield an empty set")
	}
	if cache.has("t1") {
		t.Fatal("failed loads must not be cached")
	}

	flaky.setListErr(nil)
	set = res.ListRules(ctx, "t1")
	if set.Len() != 1 {
		t.Fatal("expected rules after recovery")
	}
	if !cache.has("t1") {
		t.Fatal("successful load should be cached")
	}

	calls := flaky.listCalls()
	_ = res.ListRules(ctx, "t1")
	if flaky.listCalls() != calls {
		t.Fatal("cached set should be served without a store read")
	}
}

func TestSetPermissionInvalidatesCache(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	cache := newMapCache()
	res, _ := newTestResolver(t, WithCache(cache))

	if !res.CanAccessModule(ctx, modulerule.ModuleInventory, modulerule.RoleStaff) {
		t.Fatal("expected allowed")
	}
	if !cache.has("t1") {
		t.Fatal("expected cached set after check")
	}

	access, _ := res.ForTenant(ctx)
	if err := access.SetPermission(ctx, modulerule.ModuleInventory, modulerule.RoleStaff, false); err != nil {
		t.Fatal(err)
	}
	if res.CanAccessModule(ctx, modulerule.ModuleInventory, modulerule.RoleStaff) {
		t.Fatal("resolver must observe the new rule after invalidation")
	}
}

func TestChecksReuseLoadedRuleSet(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	flaky := &flakyStore{Store: memory.New()}
	res, err := NewResolver(WithStore(flaky))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if !res.CanAccessModule(ctx, modulerule.ModuleSchedule, modulerule.RoleStaff) {
			t.Fatal("expected schedule allowed")
		}
	}
	if n := flaky.listCalls(); n != 1 {
		t.Fatalf("expected one store read for five checks, got %d", n)
	}

	access, _ := res.ForTenant(ctx)
	if err := access.SetPermission(ctx, modulerule.ModuleSchedule, modulerule.RoleStaff, false); err != nil {
		t.Fatal(err)
	}
	before := flaky.listCalls()
	for i := 0; i < 3; i++ {
		if res.CanAccessModule(ctx, modulerule.ModuleSchedule, modulerule.RoleStaff) {
			t.Fatal("write must be visible to later checks")
		}
	}
	if n := flaky.listCalls(); n != before {
		t.Fatalf("checks after a write must reuse the reloaded set, got %d extra reads", n-before)
	}
}

func TestFollowFlushesOnRuleChange(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	shared := memory.New()
	writer, err := NewResolver(WithStore(shared))
	if err != nil {
		t.Fatal(err)
	}
	reader, err := NewResolver(WithStore(shared))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := reader.Follow(context.Background(), shared)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if !reader.CanAccessModule(ctx, modulerule.ModuleInsurance, modulerule.RoleStaff) {
		t.Fatal("expected allowed before any rule")
	}

	access, _ := writer.ForTenant(ctx)
	if err := access.SetPermission(ctx, modulerule.ModuleInsurance, modulerule.RoleStaff, false); err != nil {
		t.Fatal(err)
	}
	if reader.CanAccessModule(ctx, modulerule.ModuleInsurance, modulerule.RoleStaff) {
		t.Fatal("following resolver must drop its stale set on a rule change")
	}
}

func TestEffectiveRoleFallback(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	res, s := newTestResolver(t)
	_ = s.UpsertModuleRule(ctx, &modulerule.Rule{TenantID: "t1", Module: modulerule.ModuleMarketing, Role: modulerule.RoleStaff, Allowed: false})
	_ = s.UpsertModuleRule(ctx, &modulerule.Rule{TenantID: "t1", Module: modulerule.ModuleMarketing, Role: modulerule.RoleDentist, Allowed: false})

	// No explicit role, no context role: fallback staff.
	d := res.Decide(ctx, modulerule.ModuleMarketing, "")
	if d.Allowed || d.Role != modulerule.RoleStaff || d.Source != SourceRule {
		t.Fatalf("unexpected decision %+v", d)
	}

	// Context role applies when no explicit role is given.
	dctx := WithRole(ctx, modulerule.RoleAdmin)
	if d := res.Decide(dctx, modulerule.ModuleMarketing, ""); !d.Allowed || d.Role != modulerule.RoleAdmin || d.Source != SourceDefault {
		t.Fatalf("unexpected decision %+v", d)
	}

	// Explicit role wins over context role.
	if res.CanAccessModule(dctx, modulerule.ModuleMarketing, modulerule.RoleDentist) {
		t.Fatal("explicit dentist role should be denied")
	}

	// Access handles capture the context role.
	access, _ := res.ForTenant(WithRole(ctx, modulerule.RoleDentist))
	if access.CanAccessModule(modulerule.ModuleMarketing, "") {
		t.Fatal("captured dentist role should be denied")
	}
}

func TestConfiguredFallbackRole(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	cfg := DefaultConfig()
	cfg.FallbackRole = modulerule.RoleHygienist
	res, s := newTestResolver(t, WithConfig(cfg))
	_ = s.UpsertModuleRule(ctx, &modulerule.Rule{TenantID: "t1", Module: modulerule.ModuleTreatments, Role: modulerule.RoleHygienist, Allowed: false})

	if res.CanAccessModule(ctx, modulerule.ModuleTreatments, "") {
		t.Fatal("expected configured fallback role to be used")
	}
}

func TestTenantIsolation(t *testing.T) {
	res, s := newTestResolver(t)
	bg := context.Background()
	_ = s.UpsertModuleRule(bg, &modulerule.Rule{TenantID: "t1", Module: modulerule.ModuleBilling, Role: modulerule.RoleStaff, Allowed: false})

	t1 := WithTenant(bg, "corp1", "t1")
	t2 := WithTenant(bg, "corp1", "t2")
	if res.CanAccessModule(t1, modulerule.ModuleBilling, modulerule.RoleStaff) {
		t.Fatal("t1 staff should be denied billing")
	}
	if !res.CanAccessModule(t2, modulerule.ModuleBilling, modulerule.RoleStaff) {
		t.Fatal("t2 must not see t1 rules")
	}
	if !res.CanAccessModule(bg, modulerule.ModuleBilling, modulerule.RoleStaff) {
		t.Fatal("no tenant means no rules, which allows")
	}
}

func TestMatrix(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	res, _ := newTestResolver(t)
	access, _ := res.ForTenant(ctx)
	_ = access.SetPermission(ctx, modulerule.ModuleAIInsights, modulerule.RoleStaff, false)

	matrix := access.Matrix()
	if len(matrix) != len(modulerule.Modules())*len(modulerule.Roles()) {
		t.Fatalf("unexpected matrix size %d", len(matrix))
	}
	denied := 0
	for _, d := range matrix {
		if !d.Allowed {
			denied++
			if d.Module != modulerule.ModuleAIInsights || d.Role != modulerule.RoleStaff {
				t.Fatalf("unexpected denial %+v", d)
			}
		}
	}
	if denied != 1 {
		t.Fatalf("expected exactly one denial, got %d", denied)
	}
}

type decisionRecorder struct {
	mu        sync.Mutex
	decisions []*Decision
	upserts   int
	failures  int
}

func (p *decisionRecorder) Name() string { return "recorder" }

func (p *decisionRecorder) OnAfterDecision(_ context.Context, _ string, d any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d.(*Decision))
	return nil
}

func (p *decisionRecorder) OnRuleUpserted(context.Context, *modulerule.Rule) error {
	p.upserts++
	return nil
}

func (p *decisionRecorder) OnRuleUpsertFailed(context.Context, *modulerule.Rule, error) error {
	p.failures++
	return nil
}

func TestPluginHooks(t *testing.T) {
	ctx := WithTenant(context.Background(), "corp1", "t1")
	rec := &decisionRecorder{}
	flaky := &flakyStore{Store: memory.New()}
	res, err := NewResolver(WithStore(flaky), WithPlugin(rec))
	if err != nil {
		t.Fatal(err)
	}

	_ = res.CanAccessModule(ctx, modulerule.ModuleDashboard, modulerule.RoleStaff)
	if len(rec.decisions) != 1 || rec.decisions[0].TenantID != "t1" {
		t.Fatalf("expected one recorded decision, got %+v", rec.decisions)
	}

	access, _ := res.ForTenant(ctx)
	_ = access.SetPermission(ctx, modulerule.ModuleDashboard, modulerule.RoleStaff, false)
	flaky.failWrite = errors.New("boom")
	_ = access.SetPermission(ctx, modulerule.ModuleDashboard, modulerule.RoleStaff, true)
	if rec.upserts != 1 || rec.failures != 1 {
		t.Fatalf("expected 1 upsert and 1 failure, got %d and %d", rec.upserts, rec.failures)
	}
}
