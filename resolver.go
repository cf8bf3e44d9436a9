package opendental

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/plugin"
)

// Resolver answers module access questions for tenants. It loads override
// rules from the store once per tenant, serves checks from the loaded set,
// and fires plugin hooks. Without WithCache, loaded sets are kept in
// process until invalidated.
type Resolver struct {
	store   modulerule.Store
	cache   RuleCache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		return nil, ErrStoreRequired
	}
	if r.plugins == nil {
		r.plugins = plugin.NewRegistry(r.logger)
	}
	if r.cache == nil {
		r.cache = newTenantSets()
	}
	return r, nil
}

// Store returns the underlying rule store.
func (r *Resolver) Store() modulerule.Store { return r.store }

// Plugins returns the plugin registry.
func (r *Resolver) Plugins() *plugin.Registry { return r.plugins }

// Config returns the resolver configuration.
func (r *Resolver) Config() Config { return r.config }

// ListRules returns the rule set for a tenant. It never fails: a store
// error is logged and yields an empty set, so every module is allowed.
// Only successful loads are cached.
func (r *Resolver) ListRules(ctx context.Context, tenantID string) modulerule.Set {
	set, err := r.loadRules(ctx, tenantID)
	if err != nil {
		r.logger.Warn("module rules unavailable, allowing all modules",
			"tenant_id", tenantID,
			"error", err,
		)
		return modulerule.NewSet(nil)
	}
	return set
}

// loadRules reads through the cache.
func (r *Resolver) loadRules(ctx context.Context, tenantID string) (modulerule.Set, error) {
	if tenantID == "" {
		return modulerule.NewSet(nil), nil
	}
	if set, ok := r.cache.Get(ctx, tenantID); ok {
		return set, nil
	}

	rules, err := r.store.ListModuleRules(ctx, tenantID)
	if err != nil {
		return modulerule.Set{}, fmt.Errorf("opendental: list module rules: %w", err)
	}
	set := modulerule.NewSet(rules)
	r.cache.Set(ctx, tenantID, set)
	return set, nil
}

// ForTenant loads the rule set of the context tenant into an Access handle.
// The handle also captures the context role, if any.
func (r *Resolver) ForTenant(ctx context.Context) (*Access, error) {
	scope := scopeFromContext(ctx)
	if scope.tenantID == "" {
		return nil, ErrNoTenant
	}
	return &Access{
		resolver:      r,
		tenantID:      scope.tenantID,
		corporationID: scope.corporationID,
		role:          RoleFromContext(ctx),
		set:           r.ListRules(ctx, scope.tenantID),
	}, nil
}

// CanAccessModule reports whether role may open module in the context
// tenant. See Decide.
func (r *Resolver) CanAccessModule(ctx context.Context, module modulerule.Module, role modulerule.Role) bool {
	return r.Decide(ctx, module, role).Allowed
}

// Decide evaluates module access in the context tenant. An empty role falls
// back to the context role and then to Config.FallbackRole. A context
// without a tenant has no rules, so every module is allowed.
func (r *Resolver) Decide(ctx context.Context, module modulerule.Module, role modulerule.Role) *Decision {
	tenantID := scopeFromContext(ctx).tenantID
	set := r.ListRules(ctx, tenantID)
	d := decide(set, tenantID, module, r.effectiveRole(role, RoleFromContext(ctx)))
	r.plugins.EmitAfterDecision(ctx, tenantID, d)
	return d
}

// InvalidateTenant drops the cached rule set for a tenant.
func (r *Resolver) InvalidateTenant(ctx context.Context, tenantID string) {
	r.cache.InvalidateTenant(ctx, tenantID)
}

// InvalidateAll drops every cached rule set. Caches that cannot be flushed
// keep their entries until they expire.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	f, ok := r.cache.(RuleCacheFlusher)
	if !ok {
		r.logger.Debug("rule cache does not support flushing")
		return
	}
	f.InvalidateAll(ctx)
}

// Follow subscribes to rule changes on src and flushes cached rule sets on
// every event, so writes made by other instances are seen on the next check.
func (r *Resolver) Follow(ctx context.Context, src changefeed.Source) (changefeed.Subscription, error) {
	sub, err := src.Subscribe(ctx, modulerule.Table, func(ctx context.Context, ev changefeed.Event) {
		r.logger.Debug("module rules changed, flushing rule cache",
			"op", ev.Op,
			"row_id", ev.RowID,
		)
		r.InvalidateAll(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("opendental: follow module rules: %w", err)
	}
	return sub, nil
}

func (r *Resolver) effectiveRole(explicit, fromContext modulerule.Role) modulerule.Role {
	if explicit != "" {
		return explicit
	}
	if fromContext != "" {
		return fromContext
	}
	return r.config.fallbackRole()
}
