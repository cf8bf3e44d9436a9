// Package opendental resolves which application modules a role may open
// within a clinic tenant.
//
// Access is fail-open: a (module, role) pair without an explicit override
// rule is allowed, and a rule store that cannot be read yields an empty
// rule set rather than an error. Tenant scope comes from forge.Scope when
// present and from WithTenant otherwise.
//
//	res, err := opendental.NewResolver(
//	    opendental.WithStore(memStore),
//	)
//	ctx = opendental.WithTenant(ctx, "corp_1", "tenant_1")
//	access, err := res.ForTenant(ctx)
//	if access.CanAccessModule(modulerule.ModuleBilling, modulerule.RoleStaff) {
//	    // show billing
//	}
package opendental

import "github.com/imranmit2020/open-dental-helper-sub002/modulerule"

// Source identifies what produced a decision.
type Source string

const (
	// SourceRule means an explicit override rule decided the outcome.
	SourceRule Source = "rule"

	// SourceDefault means no rule matched and the default allow applied.
	SourceDefault Source = "default"
)

// Decision is the outcome of a module access check.
type Decision struct {
	TenantID string            `json:"tenant_id"`
	Module   modulerule.Module `json:"module"`
	Role     modulerule.Role   `json:"role"`
	Allowed  bool              `json:"allowed"`
	Source   Source            `json:"source"`
	RuleID   string            `json:"rule_id,omitempty"`
}

// decide evaluates module access for role against set.
func decide(set modulerule.Set, tenantID string, module modulerule.Module, role modulerule.Role) *Decision {
	d := &Decision{
		TenantID: tenantID,
		Module:   module,
		Role:     role,
		Allowed:  true,
		Source:   SourceDefault,
	}
	if rule, ok := set.Lookup(module, role); ok {
		d.Allowed = rule.Allowed
		d.Source = SourceRule
		d.RuleID = rule.ID.String()
	}
	return d
}
