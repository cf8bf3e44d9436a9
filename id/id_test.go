package id_test

import (
	"strings"
	"testing"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ModuleRuleID", id.NewModuleRuleID, "mrule_"},
		{"BranchID", id.NewBranchID, "branch_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewModuleRuleID()
	parsed, err := id.ParseModuleRuleID(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestCrossTypeRejection(t *testing.T) {
	branchID := id.NewBranchID().String()
	if _, err := id.ParseModuleRuleID(branchID); err == nil {
		t.Fatalf("expected prefix mismatch error for %q", branchID)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "not-a-typeid", "mrule_!!!"} {
		if _, err := id.Parse(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestNilBehaviour(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Fatalf("nil ID string = %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Fatalf("nil ID value = %v, %v", v, err)
	}
}

func TestScan(t *testing.T) {
	original := id.NewBranchID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatal(err)
	}
	if fromString.String() != original.String() {
		t.Fatal("scan from string mismatch")
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNil.IsNil() {
		t.Fatal("scan nil should yield Nil")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Fatal("expected error scanning int")
	}
}
