package api

// ──────────────────────────────────────────────────
// Module rule requests
// ──────────────────────────────────────────────────

// ListModuleRulesRequest has no parameters; the tenant comes from scope.
type ListModuleRulesRequest struct{}

// SetModuleRuleRequest is the body for writing an override rule.
type SetModuleRuleRequest struct {
	Module  string `json:"module" description:"Module key"`
	Role    string `json:"role" description:"Role the rule applies to"`
	Allowed bool   `json:"allowed" description:"Whether the role may open the module"`
}

// ──────────────────────────────────────────────────
// Module access requests
// ──────────────────────────────────────────────────

// CheckModuleRequest is the body for a module access check.
type CheckModuleRequest struct {
	Module string `json:"module" description:"Module key"`
	Role   string `json:"role,omitempty" description:"Role to check (default: caller's role)"`
}

// ModuleMatrixRequest has no parameters; the tenant comes from scope.
type ModuleMatrixRequest struct{}

// ──────────────────────────────────────────────────
// Branch requests
// ──────────────────────────────────────────────────

// ListBranchesRequest has no parameters.
type ListBranchesRequest struct{}

// RefreshBranchesRequest has no parameters.
type RefreshBranchesRequest struct{}
