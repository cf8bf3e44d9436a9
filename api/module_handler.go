package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) registerModuleRuleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("module-rules"))

	if err := g.GET("/module-rules", a.listModuleRules,
		forge.WithSummary("List module rules"),
		forge.WithDescription("Lists the override rules of the caller's tenant."),
		forge.WithOperationID("listModuleRules"),
		forge.WithResponseSchema(http.StatusOK, "Module rules", ModuleRulesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.PUT("/module-rules", a.setModuleRule,
		forge.WithSummary("Set module rule"),
		forge.WithDescription("Writes an override rule for a module and role in the caller's tenant. Requires the admin role."),
		forge.WithOperationID("setModuleRule"),
		forge.WithRequestSchema(SetModuleRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated module rules", ModuleRulesResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerModuleAccessRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("module-access"))

	if err := g.POST("/module-access/check", a.checkModule,
		forge.WithSummary("Check module access"),
		forge.WithDescription("Evaluates whether a role may open a module in the caller's tenant."),
		forge.WithOperationID("checkModuleAccess"),
		forge.WithRequestSchema(CheckModuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", DecisionResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/module-access", a.moduleMatrix,
		forge.WithSummary("Module access matrix"),
		forge.WithDescription("Evaluates every module for every role in the caller's tenant."),
		forge.WithOperationID("moduleAccessMatrix"),
		forge.WithResponseSchema(http.StatusOK, "Matrix", ModuleMatrixResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listModuleRules(ctx forge.Context, _ *ListModuleRulesRequest) (*ModuleRulesResponse, error) {
	access, err := a.res.ForTenant(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	resp := &ModuleRulesResponse{TenantID: access.TenantID(), Rules: access.Rules()}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) setModuleRule(ctx forge.Context, req *SetModuleRuleRequest) (*ModuleRulesResponse, error) {
	if err := requireAdmin(ctx.Context()); err != nil {
		return nil, mapError(err)
	}
	if req.Module == "" || req.Role == "" {
		return nil, forge.BadRequest("module and role are required")
	}
	module, err := parseModule(req.Module)
	if err != nil {
		return nil, mapError(err)
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, mapError(err)
	}

	access, err := a.res.ForTenant(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	if err := access.SetPermission(ctx.Context(), module, role, req.Allowed); err != nil {
		return nil, mapError(err)
	}

	resp := &ModuleRulesResponse{TenantID: access.TenantID(), Rules: access.Rules()}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) checkModule(ctx forge.Context, req *CheckModuleRequest) (*DecisionResponse, error) {
	if req.Module == "" {
		return nil, forge.BadRequest("module is required")
	}
	module, err := parseModule(req.Module)
	if err != nil {
		return nil, mapError(err)
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toDecisionResponse(a.res.Decide(ctx.Context(), module, role))
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) moduleMatrix(ctx forge.Context, _ *ModuleMatrixRequest) (*ModuleMatrixResponse, error) {
	access, err := a.res.ForTenant(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	resp := toMatrixResponse(access.TenantID(), access.Matrix())
	return resp, ctx.JSON(http.StatusOK, resp)
}
