package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the store (SQLite).
var Migrations = migrate.NewGroup("opendental")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_module_permissions",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS opendental_module_permissions (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    corporation_id  TEXT,
    module_key      TEXT NOT NULL,
    role            TEXT NOT NULL,
    allowed         INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(tenant_id, module_key, role)
);

CREATE INDEX IF NOT EXISTS idx_opendental_module_permissions_tenant ON opendental_module_permissions (tenant_id);
CREATE INDEX IF NOT EXISTS idx_opendental_module_permissions_corporation ON opendental_module_permissions (corporation_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS opendental_module_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tenants",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS opendental_tenants (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    address         TEXT,
    phone           TEXT NOT NULL DEFAULT '',
    email           TEXT NOT NULL DEFAULT '',
    clinic_code     TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_opendental_tenants_created ON opendental_tenants (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS opendental_tenants`)
				return err
			},
		},
	)
}
