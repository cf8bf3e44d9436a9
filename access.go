package opendental

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Access is one tenant's loaded rule set. Checks are pure lookups against
// the loaded set; SetPermission and Reload replace it.
type Access struct {
	resolver      *Resolver
	tenantID      string
	corporationID string
	role          modulerule.Role

	mu  sync.RWMutex
	set modulerule.Set
}

// TenantID returns the tenant the handle is bound to.
func (a *Access) TenantID() string { return a.tenantID }

// Rules returns the loaded rules sorted by module then role.
func (a *Access) Rules() []*modulerule.Rule {
	return a.snapshot().Rules()
}

// CanAccessModule reports whether role may open module. An empty role falls
// back to the role captured from the context and then to the configured
// fallback role. Pairs without a rule are allowed.
func (a *Access) CanAccessModule(module modulerule.Module, role modulerule.Role) bool {
	return a.Decide(module, role).Allowed
}

// Decide evaluates module access against the loaded set.
func (a *Access) Decide(module modulerule.Module, role modulerule.Role) *Decision {
	return decide(a.snapshot(), a.tenantID, module, a.resolver.effectiveRole(role, a.role))
}

// Matrix evaluates every known module for every known role.
func (a *Access) Matrix() []*Decision {
	set := a.snapshot()
	out := make([]*Decision, 0, len(modulerule.Modules())*len(modulerule.Roles()))
	for _, m := range modulerule.Modules() {
		for _, r := range modulerule.Roles() {
			out = append(out, decide(set, a.tenantID, m, r))
		}
	}
	return out
}

// SetPermission writes an override rule for (module, role) in the tenant.
//
// On success the tenant's cache entry is invalidated and the handle is
// reloaded before returning. On failure the loaded set is left untouched
// and the wrapped store error is returned.
func (a *Access) SetPermission(ctx context.Context, module modulerule.Module, role modulerule.Role, allowed bool) error {
	if !module.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := time.Now().UTC()
	rule := &modulerule.Rule{
		ID:        id.NewModuleRuleID(),
		TenantID:  a.tenantID,
		Module:    module,
		Role:      role,
		Allowed:   allowed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if corp := a.corporationID; corp != "" {
		rule.CorporationID = &corp
	}

	r := a.resolver
	if err := r.store.UpsertModuleRule(ctx, rule); err != nil {
		r.plugins.EmitRuleUpsertFailed(ctx, rule, err)
		return fmt.Errorf("opendental: upsert module rule: %w", err)
	}
	r.plugins.EmitRuleUpserted(ctx, rule)
	r.InvalidateTenant(ctx, a.tenantID)

	if err := a.Reload(ctx); err != nil {
		r.logger.Warn("reload after module rule write failed",
			"tenant_id", a.tenantID,
			"error", err,
		)
		a.mu.Lock()
		a.set = modulerule.NewSet(append(a.set.Rules(), rule))
		a.mu.Unlock()
	}
	return nil
}

// Reload re-reads the tenant's rules from the store. On error the loaded
// set is kept.
func (a *Access) Reload(ctx context.Context) error {
	a.resolver.InvalidateTenant(ctx, a.tenantID)
	set, err := a.resolver.loadRules(ctx, a.tenantID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.set = set
	a.mu.Unlock()
	return nil
}

func (a *Access) snapshot() modulerule.Set {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set
}
