// Package modulerule defines the per-tenant module permission rule entity
// and its store interface.
//
// A rule overrides the default for one (tenant, module, role) triple. When
// no rule exists for a triple the module is accessible.
package modulerule

import (
	"sort"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
)

// Table is the rule table name used by change-feed events.
const Table = "module_permissions"

// Module is a named feature area of the application.
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModulePatients      Module = "patients"
	ModuleSchedule      Module = "schedule"
	ModuleTreatments    Module = "treatments"
	ModuleBilling       Module = "billing"
	ModuleInsurance     Module = "insurance"
	ModuleConsentForms  Module = "consent_forms"
	ModuleTeledentistry Module = "teledentistry"
	ModuleAIInsights    Module = "ai_insights"
	ModuleReports       Module = "reports"
	ModuleInventory     Module = "inventory"
	ModuleMarketing     Module = "marketing"
	ModuleStaff         Module = "staff"
	ModuleSettings      Module = "settings"
)

var modules = []Module{
	ModuleDashboard,
	ModulePatients,
	ModuleSchedule,
	ModuleTreatments,
	ModuleBilling,
	ModuleInsurance,
	ModuleConsentForms,
	ModuleTeledentistry,
	ModuleAIInsights,
	ModuleReports,
	ModuleInventory,
	ModuleMarketing,
	ModuleStaff,
	ModuleSettings,
}

// Modules returns every recognized module key in display order.
func Modules() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// Valid reports whether m is a recognized module key.
func (m Module) Valid() bool {
	for _, k := range modules {
		if k == m {
			return true
		}
	}
	return false
}

// Role is a staff classification. Patient roles are resolved separately
// and are never members of this set.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDentist   Role = "dentist"
	RoleHygienist Role = "hygienist"
	RoleStaff     Role = "staff"
)

var roles = []Role{RoleAdmin, RoleDentist, RoleHygienist, RoleStaff}

// Roles returns the fixed staff role set.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Valid reports whether r is one of the staff roles.
func (r Role) Valid() bool {
	for _, k := range roles {
		if k == r {
			return true
		}
	}
	return false
}

// Rule is an explicit allow/deny override for one role on one module
// within a tenant.
type Rule struct {
	ID       id.ModuleRuleID `json:"id" db:"id"`
	TenantID string          `json:"tenant_id" db:"tenant_id"`
	// CorporationID is reporting metadata; it is not part of the lookup key.
	CorporationID *string   `json:"corporation_id,omitempty" db:"corporation_id"`
	Module        Module    `json:"module_key" db:"module_key"`
	Role          Role      `json:"role" db:"role"`
	Allowed       bool      `json:"allowed" db:"allowed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Key identifies a rule within a single tenant.
type Key struct {
	Module Module
	Role   Role
}

// Key returns the rule's lookup key.
func (r *Rule) Key() Key { return Key{Module: r.Module, Role: r.Role} }

// Set is an immutable snapshot of one tenant's rules indexed by Key.
type Set struct {
	rules map[Key]*Rule
}

// NewSet indexes rules by key. Later rules for the same key replace
// earlier ones.
func NewSet(rules []*Rule) Set {
	m := make(map[Key]*Rule, len(rules))
	for _, r := range rules {
		if r == nil {
			continue
		}
		cp := *r
		m[r.Key()] = &cp
	}
	return Set{rules: m}
}

// Lookup returns the rule for (module, role), if one exists.
func (s Set) Lookup(m Module, r Role) (*Rule, bool) {
	rule, ok := s.rules[Key{Module: m, Role: r}]
	if !ok {
		return nil, false
	}
	cp := *rule
	return &cp, true
}

// Len returns the number of rules in the set.
func (s Set) Len() int { return len(s.rules) }

// Rules returns copies of the rules sorted by module then role.
func (s Set) Rules() []*Rule {
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Role < out[j].Role
	})
	return out
}
