package opendental

import (
	"context"

	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

type contextKey int

const (
	ctxKeyCorporationID contextKey = iota
	ctxKeyTenantID
	ctxKeyRole
)

// WithTenant returns a context with the given corporation and tenant IDs.
// Use this for standalone mode (without Forge).
func WithTenant(ctx context.Context, corporationID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyCorporationID, corporationID)
	ctx = context.WithValue(ctx, ctxKeyTenantID, tenantID)
	return ctx
}

// WithRole returns a context carrying the caller's role.
func WithRole(ctx context.Context, role modulerule.Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// RoleFromContext returns the role set with WithRole, or "".
func RoleFromContext(ctx context.Context) modulerule.Role {
	v, _ := ctx.Value(ctxKeyRole).(modulerule.Role)
	return v
}

func corporationIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyCorporationID).(string)
	if !ok {
		return ""
	}
	return v
}

func tenantIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyTenantID).(string)
	if !ok {
		return ""
	}
	return v
}
