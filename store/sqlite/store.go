// Package sqlite provides a SQLite implementation of the composite store
// using grove ORM. SQLite has no notification mechanism, so the change feed
// only carries writes made through this Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// errNotFound is the sentinel for missing entities.
var errNotFound = fmt.Errorf("not found")

// Store is a SQLite implementation of the composite store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	hub *changefeed.Hub
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
		hub: changefeed.NewHub(),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("opendental/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe delivers change events for writes made through this store.
func (s *Store) Subscribe(ctx context.Context, table string, h changefeed.Handler) (changefeed.Subscription, error) {
	return s.hub.Subscribe(ctx, table, h)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *Store) publish(ctx context.Context, table string, op changefeed.Op, rowID string) {
	s.hub.Publish(ctx, changefeed.Event{Table: table, Op: op, RowID: rowID})
}

// ──────────────────────────────────────────────────
// Module rule operations
// ──────────────────────────────────────────────────

func (s *Store) ListModuleRules(ctx context.Context, tenantID string) ([]*modulerule.Rule, error) {
	var models []moduleRuleModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("module_key ASC, role ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental/sqlite: list module rules: %w", err)
	}
	result := make([]*modulerule.Rule, len(models))
	for i := range models {
		result[i] = moduleRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) UpsertModuleRule(ctx context.Context, r *modulerule.Rule) error {
	now := time.Now().UTC()
	if r.ID.IsNil() {
		r.ID = id.NewModuleRuleID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	m := moduleRuleToModel(r)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id, module_key, role) DO UPDATE SET " +
			"allowed = EXCLUDED.allowed, " +
			"corporation_id = EXCLUDED.corporation_id, " +
			"updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: upsert module rule: %w", err)
	}

	op := changefeed.OpInsert
	stored := new(moduleRuleModel)
	err = s.sdb.NewSelect(stored).
		Where("tenant_id = ?", r.TenantID).
		Where("module_key = ?", string(r.Module)).
		Where("role = ?", string(r.Role)).
		Scan(ctx)
	if err == nil {
		if stored.ID != m.ID {
			op = changefeed.OpUpdate
		}
		got := moduleRuleFromModel(stored)
		r.ID = got.ID
		r.CreatedAt = got.CreatedAt
	}

	s.publish(ctx, modulerule.Table, op, r.ID.String())
	return nil
}

func (s *Store) ListModuleRulesByCorporation(ctx context.Context, corporationID string) ([]*modulerule.Rule, error) {
	var models []moduleRuleModel
	err := s.sdb.NewSelect(&models).
		Where("corporation_id = ?", corporationID).
		OrderExpr("tenant_id ASC, module_key ASC, role ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental/sqlite: list module rules by corporation: %w", err)
	}
	result := make([]*modulerule.Rule, len(models))
	for i := range models {
		result[i] = moduleRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteModuleRulesByTenant(ctx context.Context, tenantID string) error {
	res, err := s.sdb.NewDelete((*moduleRuleModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: delete module rules by tenant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.publish(ctx, modulerule.Table, changefeed.OpDelete, "")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Branch operations
// ──────────────────────────────────────────────────

func (s *Store) ListBranches(ctx context.Context) ([]*branch.Branch, error) {
	var models []branchModel
	err := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental/sqlite: list branches: %w", err)
	}
	result := make([]*branch.Branch, len(models))
	for i := range models {
		result[i] = branchFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetBranch(ctx context.Context, branchID id.BranchID) (*branch.Branch, error) {
	m := new(branchModel)
	err := s.sdb.NewSelect(m).Where("id = ?", branchID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("branch %s: %w", branchID, errNotFound)
		}
		return nil, fmt.Errorf("opendental/sqlite: get branch: %w", err)
	}
	return branchFromModel(m), nil
}

func (s *Store) CreateBranch(ctx context.Context, b *branch.Branch) error {
	now := time.Now().UTC()
	if b.ID.IsNil() {
		b.ID = id.NewBranchID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	_, err := s.sdb.NewInsert(branchToModel(b)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: create branch: %w", err)
	}
	s.publish(ctx, branch.Table, changefeed.OpInsert, b.ID.String())
	return nil
}

func (s *Store) UpdateBranch(ctx context.Context, b *branch.Branch) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := s.sdb.NewUpdate(branchToModel(b)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: update branch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("branch %s: %w", b.ID, errNotFound)
	}
	s.publish(ctx, branch.Table, changefeed.OpUpdate, b.ID.String())
	return nil
}

func (s *Store) DeleteBranch(ctx context.Context, branchID id.BranchID) error {
	res, err := s.sdb.NewDelete((*branchModel)(nil)).
		Where("id = ?", branchID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental/sqlite: delete branch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.publish(ctx, branch.Table, changefeed.OpDelete, branchID.String())
	}
	return nil
}
