// Package middleware provides forge middleware that gates routes on module
// access.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// RequireModule allows the request only if the caller's role may open
// module in the caller's tenant. The role is read from the request context
// (see opendental.WithRole) and falls back to the resolver's fallback role.
func RequireModule(res *opendental.Resolver, module modulerule.Module) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			if !res.CanAccessModule(ctx.Context(), module, "") {
				return denyResponse(ctx, module)
			}
			return next(ctx)
		}
	}
}

// RequireAnyModule allows the request if ANY of the modules is accessible.
func RequireAnyModule(res *opendental.Resolver, modules ...modulerule.Module) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			for _, m := range modules {
				if res.CanAccessModule(ctx.Context(), m, "") {
					return next(ctx)
				}
			}
			return denyResponse(ctx, "")
		}
	}
}

func denyResponse(ctx forge.Context, module modulerule.Module) error {
	body := map[string]string{"error": opendental.ErrAccessDenied.Error()}
	if module != "" {
		body["module"] = string(module)
	}
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(body)
}
