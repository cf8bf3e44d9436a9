package mongo

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
	ID              string    `grove:"id,pk" bson:"_id"`
	TenantID        string    `grove:"tenant_id" bson:"tenant_id"`
	CorporationID   *string   `grove:"corporation_id" bson:"corporation_id,omitempty"`
	ModuleKey       string    `grove:"module_key" bson:"module_key"`
	Role            string    `grove:"role" bson:"role"`
	Allowed         bool      `grove:"allowed" bson:"allowed"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
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
	ID              string    `grove:"id,pk" bson:"_id"`
	Name            string    `grove:"name" bson:"name"`
	Address         *string   `grove:"address" bson:"address,omitempty"`
	Phone           string    `grove:"phone" bson:"phone"`
	Email           string    `grove:"email" bson:"email"`
	ClinicCode      string    `grove:"clinic_code" bson:"clinic_code"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
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
