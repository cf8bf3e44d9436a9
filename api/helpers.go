package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, opendental.ErrUnknownModule) ||
		errors.Is(err, opendental.ErrInvalidRole) ||
		errors.Is(err, opendental.ErrNoTenant) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, opendental.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// parseModule validates a module key from a request.
func parseModule(s string) (modulerule.Module, error) {
	m := modulerule.Module(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", opendental.ErrUnknownModule, s)
	}
	return m, nil
}

// parseRole validates a role from a request. An empty role is allowed and
// means the caller's own role.
func parseRole(s string) (modulerule.Role, error) {
	if s == "" {
		return "", nil
	}
	r := modulerule.Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", opendental.ErrInvalidRole, s)
	}
	return r, nil
}

// requireAdmin rejects callers whose context role is not admin. Rule writes
// change what every other role in the tenant may open.
func requireAdmin(ctx context.Context) error {
	if role := opendental.RoleFromContext(ctx); role != modulerule.RoleAdmin {
		return fmt.Errorf("%w: writing module rules requires the admin role, caller has %q", opendental.ErrAccessDenied, role)
	}
	return nil
}
