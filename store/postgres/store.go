// Package postgres provides a PostgreSQL implementation of the composite
// store using grove ORM with Go-based migrations.
//
// Change events come from database triggers through a pgx LISTEN connection
// when a listen DSN is configured, so writes made by any process are
// observed. Without one, only writes made through this Store are published.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store is a PostgreSQL implementation of the composite store.
type Store struct {
	db       *grove.DB
	pgdb     *pgdriver.PgDB
	hub      *changefeed.Hub
	listener *Listener
	logger   *slog.Logger
}

// Option configures the store.
type Option func(*Store)

// WithListenDSN enables the trigger-driven change feed over a dedicated
// connection to dsn.
func WithListenDSN(dsn string) Option {
	return func(s *Store) {
		if dsn != "" {
			s.listener = NewListener(dsn, s.hub, WithListenerLogger(s.logger))
		}
	}
}

// WithLogger sets the structured logger. Pass it before WithListenDSN.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates a new PostgreSQL store.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		pgdb:   pgdriver.Unwrap(db),
		hub:    changefeed.NewHub(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("opendental: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("opendental: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close stops the change listener and closes the database connection.
func (s *Store) Close() error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return s.db.Close()
}

// Subscribe delivers change events for table. The LISTEN connection, when
// configured, is opened on first use.
func (s *Store) Subscribe(ctx context.Context, table string, h changefeed.Handler) (changefeed.Subscription, error) {
	if s.listener != nil {
		if err := s.listener.Start(ctx); err != nil {
			return nil, err
		}
	}
	return s.hub.Subscribe(ctx, table, h)
}

// publish emits a locally observed write. With a listener the trigger
// delivers the event instead.
func (s *Store) publish(ctx context.Context, table string, op changefeed.Op, rowID string) {
	if s.listener != nil {
		return
	}
	s.hub.Publish(ctx, changefeed.Event{Table: table, Op: op, RowID: rowID})
}

// ──────────────────────────────────────────────────
// Module rule operations
// ──────────────────────────────────────────────────

func (s *Store) ListModuleRules(ctx context.Context, tenantID string) ([]*modulerule.Rule, error) {
	var models []moduleRuleModel
	err := s.pgdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("module_key ASC, role ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental: list module rules: %w", err)
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
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(tenant_id, module_key, role) DO UPDATE SET " +
			"allowed = EXCLUDED.allowed, " +
			"corporation_id = EXCLUDED.corporation_id, " +
			"updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: upsert module rule: %w", err)
	}

	op := changefeed.OpInsert
	stored := new(moduleRuleModel)
	err = s.pgdb.NewSelect(stored).
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
	err := s.pgdb.NewSelect(&models).
		Where("corporation_id = ?", corporationID).
		OrderExpr("tenant_id ASC, module_key ASC, role ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental: list module rules by corporation: %w", err)
	}
	result := make([]*modulerule.Rule, len(models))
	for i := range models {
		result[i] = moduleRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteModuleRulesByTenant(ctx context.Context, tenantID string) error {
	res, err := s.pgdb.NewDelete((*moduleRuleModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: delete module rules by tenant: %w", err)
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
	err := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("opendental: list branches: %w", err)
	}
	result := make([]*branch.Branch, len(models))
	for i := range models {
		result[i] = branchFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetBranch(ctx context.Context, branchID id.BranchID) (*branch.Branch, error) {
	m := new(branchModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", branchID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("branch %s: %w", branchID, errNotFound)
		}
		return nil, fmt.Errorf("opendental: get branch: %w", err)
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
	_, err := s.pgdb.NewInsert(branchToModel(b)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: create branch: %w", err)
	}
	s.publish(ctx, branch.Table, changefeed.OpInsert, b.ID.String())
	return nil
}

func (s *Store) UpdateBranch(ctx context.Context, b *branch.Branch) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := s.pgdb.NewUpdate(branchToModel(b)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: update branch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("branch %s: %w", b.ID, errNotFound)
	}
	s.publish(ctx, branch.Table, changefeed.OpUpdate, b.ID.String())
	return nil
}

func (s *Store) DeleteBranch(ctx context.Context, branchID id.BranchID) error {
	res, err := s.pgdb.NewDelete((*branchModel)(nil)).
		Where("id = ?", branchID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: delete branch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.publish(ctx, branch.Table, changefeed.OpDelete, branchID.String())
	}
	return nil
}
