// Package api provides HTTP handlers for module access and the branch
// directory.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/directory"
)

// API wires all HTTP handlers together.
type API struct {
	res    *opendental.Resolver
	dir    *directory.Directory
	router forge.Router
}

// New creates an API from a Resolver, an optional Directory and a Forge
// router. Branch routes are only registered when dir is non-nil.
func New(res *opendental.Resolver, dir *directory.Directory, router forge.Router) *API {
	return &API{res: res, dir: dir, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("opendental: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerModuleRuleRoutes,
		a.registerModuleAccessRoutes,
	}
	if a.dir != nil {
		registerers = append(registerers, a.registerBranchRoutes)
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
