package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/directory"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

func TestMapErrorPassesThroughUnknownErrors(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("nil must map to nil")
	}
	cause := errors.New("boom")
	if got := mapError(cause); got != cause {
		t.Fatalf("expected unmapped error to pass through, got %v", got)
	}
	for _, err := range []error{
		opendental.ErrUnknownModule,
		opendental.ErrInvalidRole,
		opendental.ErrNoTenant,
		fmt.Errorf("wrapped: %w", opendental.ErrInvalidRole),
		opendental.ErrAccessDenied,
	} {
		if got := mapError(err); got == err {
			t.Fatalf("expected %v to be mapped to an HTTP error", err)
		}
	}
}

func TestParseModuleAndRole(t *testing.T) {
	if _, err := parseModule("billing"); err != nil {
		t.Fatalf("billing should be valid: %v", err)
	}
	if _, err := parseModule("nope"); !errors.Is(err, opendental.ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if r, err := parseRole(""); err != nil || r != "" {
		t.Fatalf("empty role should mean caller's role, got %q %v", r, err)
	}
	if r, err := parseRole("dentist"); err != nil || r != modulerule.RoleDentist {
		t.Fatalf("expected dentist, got %q %v", r, err)
	}
	if _, err := parseRole("janitor"); !errors.Is(err, opendental.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestToMatrixResponse(t *testing.T) {
	resp := toMatrixResponse("t1", []*opendental.Decision{
		{Module: modulerule.ModuleBilling, Role: modulerule.RoleStaff, Allowed: false},
		{Module: modulerule.ModuleBilling, Role: modulerule.RoleDentist, Allowed: true},
		{Module: modulerule.ModuleSchedule, Role: modulerule.RoleStaff, Allowed: true},
	})
	if resp.TenantID != "t1" {
		t.Fatalf("unexpected tenant %q", resp.TenantID)
	}
	if resp.Modules["billing"]["staff"] {
		t.Fatal("billing/staff should be denied")
	}
	if !resp.Modules["billing"]["dentist"] || !resp.Modules["schedule"]["staff"] {
		t.Fatal("expected allowed entries")
	}
}

func TestToBranchesResponseNeverNull(t *testing.T) {
	resp := toBranchesResponse(directory.State{Loading: true})
	if resp.Branches == nil {
		t.Fatal("branches must be an empty list, not nil")
	}
	if !resp.Loading {
		t.Fatal("expected loading flag carried over")
	}

	resp = toBranchesResponse(directory.State{
		Branches: []*branch.Branch{{Name: "North"}},
		Error:    "store down",
	})
	if len(resp.Branches) != 1 || resp.Error != "store down" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRequireAdmin(t *testing.T) {
	ctx := opendental.WithTenant(context.Background(), "corp1", "t1")
	if err := requireAdmin(ctx); !errors.Is(err, opendental.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied without a role, got %v", err)
	}
	for _, r := range []modulerule.Role{modulerule.RoleStaff, modulerule.RoleDentist, modulerule.RoleHygienist} {
		if err := requireAdmin(opendental.WithRole(ctx, r)); !errors.Is(err, opendental.ErrAccessDenied) {
			t.Fatalf("expected %s to be rejected, got %v", r, err)
		}
	}
	if err := requireAdmin(opendental.WithRole(ctx, modulerule.RoleAdmin)); err != nil {
		t.Fatalf("admin must be allowed to write rules: %v", err)
	}
	if got := mapError(requireAdmin(ctx)); got == nil {
		t.Fatal("rejection must map to an HTTP error")
	}
}
