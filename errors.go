package opendental

import "errors"

var (
	// ErrStoreRequired is returned by NewResolver when no rule store is set.
	ErrStoreRequired = errors.New("opendental: store is required")

	// ErrNoTenant is returned when the context carries no tenant.
	ErrNoTenant = errors.New("opendental: no tenant in context")

	// ErrUnknownModule is returned when writing a rule for a module key that
	// is not part of the application.
	ErrUnknownModule = errors.New("opendental: unknown module")

	// ErrInvalidRole is returned when writing a rule for an unknown role.
	ErrInvalidRole = errors.New("opendental: invalid role")

	// ErrAccessDenied is returned by middleware when a role may not open a
	// module.
	ErrAccessDenied = errors.New("opendental: module access denied")
)
