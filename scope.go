package opendental

import (
	"context"

	"github.com/xraph/forge"
)

type tenantScope struct {
	corporationID string
	tenantID      string
}

// scopeFromContext extracts tenant scope from forge.Scope or standalone context.
// Falls back to explicit tenant if Forge scope is not set (standalone mode).
// Under Forge the app is the corporation and the organization is the tenant.
func scopeFromContext(ctx context.Context) tenantScope {
	s, ok := forge.ScopeFrom(ctx)
	if ok && s.OrgID() != "" {
		return tenantScope{
			corporationID: s.AppID(),
			tenantID:      s.OrgID(),
		}
	}
	return tenantScope{
		corporationID: corporationIDFromContext(ctx),
		tenantID:      tenantIDFromContext(ctx),
	}
}

// TenantFromContext returns the tenant ID the resolver would use for ctx.
func TenantFromContext(ctx context.Context) string {
	return scopeFromContext(ctx).tenantID
}
