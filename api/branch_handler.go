package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) registerBranchRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("branches"))

	if err := g.GET("/branches", a.listBranches,
		forge.WithSummary("List branches"),
		forge.WithDescription("Returns the geocoded branch directory and its load state."),
		forge.WithOperationID("listBranches"),
		forge.WithResponseSchema(http.StatusOK, "Branch directory", BranchesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/branches/refresh", a.refreshBranches,
		forge.WithSummary("Refresh branches"),
		forge.WithDescription("Reloads the branch directory from the store and geocodes it."),
		forge.WithOperationID("refreshBranches"),
		forge.WithResponseSchema(http.StatusOK, "Branch directory", BranchesResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listBranches(ctx forge.Context, _ *ListBranchesRequest) (*BranchesResponse, error) {
	resp := toBranchesResponse(a.dir.State())
	return resp, ctx.JSON(http.StatusOK, resp)
}

// refreshBranches reports a failed load through the state's error field
// rather than an error status, matching what GET returns afterwards.
func (a *API) refreshBranches(ctx forge.Context, _ *RefreshBranchesRequest) (*BranchesResponse, error) {
	_, _ = a.dir.Refresh(ctx.Context())
	resp := toBranchesResponse(a.dir.State())
	return resp, ctx.JSON(http.StatusOK, resp)
}
