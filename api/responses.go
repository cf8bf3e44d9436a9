package api

import (
	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/directory"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// ModuleRulesResponse lists a tenant's override rules.
type ModuleRulesResponse struct {
	TenantID string             `json:"tenant_id" description:"Tenant the rules belong to"`
	Rules    []*modulerule.Rule `json:"rules" description:"Override rules sorted by module then role"`
}

// DecisionResponse is the result of a module access check.
type DecisionResponse struct {
	Module  string `json:"module" description:"Module key"`
	Role    string `json:"role" description:"Role evaluated"`
	Allowed bool   `json:"allowed" description:"Whether the role may open the module"`
	Source  string `json:"source" description:"rule or default"`
	RuleID  string `json:"rule_id,omitempty" description:"Matching rule identifier"`
}

// ModuleMatrixResponse maps module to role to allowed for a tenant.
type ModuleMatrixResponse struct {
	TenantID string                     `json:"tenant_id" description:"Tenant evaluated"`
	Modules  map[string]map[string]bool `json:"modules" description:"module -> role -> allowed"`
}

// BranchesResponse is the directory state.
type BranchesResponse struct {
	Branches []*branch.Branch `json:"branches" description:"Branches with derived coordinates"`
	Loading  bool             `json:"loading" description:"Whether a load is in flight"`
	Error    string           `json:"error,omitempty" description:"Last load error"`
}

func toDecisionResponse(d *opendental.Decision) *DecisionResponse {
	return &DecisionResponse{
		Module:  string(d.Module),
		Role:    string(d.Role),
		Allowed: d.Allowed,
		Source:  string(d.Source),
		RuleID:  d.RuleID,
	}
}

func toMatrixResponse(tenantID string, decisions []*opendental.Decision) *ModuleMatrixResponse {
	resp := &ModuleMatrixResponse{
		TenantID: tenantID,
		Modules:  make(map[string]map[string]bool),
	}
	for _, d := range decisions {
		roles, ok := resp.Modules[string(d.Module)]
		if !ok {
			roles = make(map[string]bool)
			resp.Modules[string(d.Module)] = roles
		}
		roles[string(d.Role)] = d.Allowed
	}
	return resp
}

func toBranchesResponse(st directory.State) *BranchesResponse {
	list := st.Branches
	if list == nil {
		list = []*branch.Branch{}
	}
	return &BranchesResponse{
		Branches: list,
		Loading:  st.Loading,
		Error:    st.Error,
	}
}
