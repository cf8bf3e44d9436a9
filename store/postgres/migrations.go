package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// NotifyChannel is the LISTEN/NOTIFY channel the change triggers publish on.
const NotifyChannel = "opendental_changes"

// Migrations is the grove migration group for the store (PostgreSQL).
var Migrations = migrate.NewGroup("opendental")

// notifyFunctionSQL installs the trigger function that turns row changes into
// NOTIFY payloads of the form {"table", "op", "row_id"}. The logical table
// name is passed as the trigger's first argument.
const notifyFunctionSQL = `
CREATE OR REPLACE FUNCTION opendental_notify_change() RETURNS trigger AS $$
DECLARE
    row_id TEXT;
BEGIN
    IF TG_OP = 'DELETE' THEN
        row_id := OLD.id;
    ELSE
        row_id := NEW.id;
    END IF;
    PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
        'table',  TG_ARGV[0],
        'op',     lower(TG_OP),
        'row_id', row_id
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;
`

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
    allowed         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

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
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
		&migrate.Migration{
			Name:    "create_change_triggers",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				if _, err := exec.Exec(ctx, notifyFunctionSQL); err != nil {
					return err
				}
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS opendental_tenants_notify ON opendental_tenants;
CREATE TRIGGER opendental_tenants_notify
    AFTER INSERT OR UPDATE OR DELETE ON opendental_tenants
    FOR EACH ROW EXECUTE FUNCTION opendental_notify_change('tenants');

DROP TRIGGER IF EXISTS opendental_module_permissions_notify ON opendental_module_permissions;
CREATE TRIGGER opendental_module_permissions_notify
    AFTER INSERT OR UPDATE OR DELETE ON opendental_module_permissions
    FOR EACH ROW EXECUTE FUNCTION opendental_notify_change('module_permissions');
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS opendental_tenants_notify ON opendental_tenants;
DROP TRIGGER IF EXISTS opendental_module_permissions_notify ON opendental_module_permissions;
DROP FUNCTION IF EXISTS opendental_notify_change();
`)
				return err
			},
		},
	)
}
