package modulerule

import "context"

// Store defines persistence operations for module permission rules.
type Store interface {
	// ListModuleRules returns every rule defined for a tenant.
	ListModuleRules(ctx context.Context, tenantID string) ([]*Rule, error)

	// UpsertModuleRule inserts a rule or, when a rule already exists for
	// (tenant_id, module_key, role), updates its allowed flag, corporation
	// and updated_at while keeping the stored ID.
	UpsertModuleRule(ctx context.Context, r *Rule) error

	// ListModuleRulesByCorporation returns rules tagged with a corporation
	// across all of its tenants.
	ListModuleRulesByCorporation(ctx context.Context, corporationID string) ([]*Rule, error)

	// DeleteModuleRulesByTenant removes all rules for a tenant.
	DeleteModuleRulesByTenant(ctx context.Context, tenantID string) error
}
