package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// ──────────────────────────────────────────────────
// Module rule model
// ──────────────────────────────────────────────────

type moduleRuleModel struct {
	grove.BaseModel `grove:"table:opendental_module_permissions"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	CorporationID   *string   `grove:"corporation_id"`
	ModuleKey       string    `grove:"module_key,notnull"`
	Role            string    `grove:"role,notnull"`
	Allowed         bool      `grove:"allowed,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func moduleRuleToModel(r *modulerule.Rule) *moduleRuleModel {
	return &moduleRuleModel{
		ID:            r.ID.String(),
		TenantID:      r.TenantID,
		CorporationID: r.CorporationID,
		ModuleKey:     string(r.Module),
		Role:          string(r.Role),
		Allowed:       r.Allowed,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func moduleRuleFromModel(m *moduleRuleModel) *modulerule.Rule {
	rid, _ := id.ParseModuleRuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &modulerule.Rule{
		ID:            rid,
		TenantID:      m.TenantID,
		CorporationID: m.CorporationID,
		Module:        modulerule.Module(m.ModuleKey),
		Role:          modulerule.Role(m.Role),
		Allowed:       m.Allowed,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Branch model
// ──────────────────────────────────────────────────

type branchModel struct {
	grove.BaseModel `grove:"table:opendental_tenants"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Address         *string   `grove:"address"`
	Phone           string    `grove:"phone"`
	Email           string    `grove:"email"`
	ClinicCode      string    `grove:"clinic_code"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func branchToModel(b *branch.Branch) *branchModel {
	return &branchModel{
		ID:         b.ID.String(),
		Name:       b.Name,
		Address:    b.Address,
		Phone:      b.Phone,
		Email:      b.Email,
		ClinicCode: b.ClinicCode,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func branchFromModel(m *branchModel) *branch.Branch {
	bid, _ := id.ParseBranchID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &branch.Branch{
		ID:         bid,
		Name:       m.Name,
		Address:    m.Address,
		Phone:      m.Phone,
		Email:      m.Email,
		ClinicCode: m.ClinicCode,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
