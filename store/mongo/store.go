// Package mongo provides a MongoDB implementation of the composite store
// using grove ORM. Indexes stand in for migrations.
//
// With WithChangeStreams the change feed is driven by collection change
// streams, which requires a replica set. Otherwise only writes made through
// this Store are published.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/store"
)

// Collection name constants.
const (
	colModuleRules = "opendental_module_permissions"
	colTenants     = "opendental_tenants"
)

// collectionTables maps collections to the logical change-feed table names.
var collectionTables = map[string]string{
	colModuleRules: modulerule.Table,
	colTenants:     branch.Table,
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// errNotFound is the sentinel for missing entities.
var errNotFound = fmt.Errorf("not found")

// Store is a MongoDB implementation of the composite store.
type Store struct {
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	hub    *changefeed.Hub
	logger *slog.Logger

	streams   bool
	watchOnce sync.Once
	watchErr  error
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures the store.
type Option func(*Store)

// WithChangeStreams drives the change feed from collection change streams.
func WithChangeStreams() Option { return func(s *Store) { s.streams = true } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		mdb:    mongodriver.Unwrap(db),
		hub:    changefeed.NewHub(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("opendental/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close stops any change stream watchers and closes the database connection.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
	return s.db.Close()
}

// Subscribe delivers change events for table. Change stream watchers, when
// enabled, are opened on first use.
func (s *Store) Subscribe(ctx context.Context, table string, h changefeed.Handler) (changefeed.Subscription, error) {
	if s.streams {
		s.watchOnce.Do(func() { s.watchErr = s.startWatchers(ctx) })
		if s.watchErr != nil {
			return nil, s.watchErr
		}
	}
	return s.hub.Subscribe(ctx, table, h)
}

func (s *Store) startWatchers(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	opened := make([]*mongod.ChangeStream, 0, len(collectionTables))
	for col := range collectionTables {
		cs, err := s.mdb.Collection(col).Watch(ctx, mongod.Pipeline{})
		if err != nil {
			cancel()
			for _, c := range opened {
				_ = c.Close(context.Background())
			}
			return fmt.Errorf("opendental/mongo: watch %s: %w", col, err)
		}
		opened = append(opened, cs)
		s.wg.Add(1)
		go s.watch(runCtx, collectionTables[col], cs)
	}
	s.cancel = cancel
	return nil
}

// changeDoc is the subset of a change stream event the feed needs.
type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

func (s *Store) watch(ctx context.Context, table string, cs *mongod.ChangeStream) {
	defer s.wg.Done()
	defer func() { _ = cs.Close(context.Background()) }()

	for cs.Next(ctx) {
		var doc changeDoc
		if err := cs.Decode(&doc); err != nil {
			s.logger.Warn("change stream: bad event", "table", table, "error", err)
			continue
		}
		op, ok := streamOp(doc.OperationType)
		if !ok {
			continue
		}
		s.hub.Publish(ctx, changefeed.Event{Table: table, Op: op, RowID: doc.DocumentKey.ID})
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		s.logger.Error("change stream closed", "table", table, "error", err)
	}
}

func streamOp(operationType string) (changefeed.Op, bool) {
	switch operationType {
	case "insert":
		return changefeed.OpInsert, true
	case "update", "replace":
		return changefeed.OpUpdate, true
	case "delete":
		return changefeed.OpDelete, true
	default:
		return "", false
	}
}

// publish emits a locally observed write. With change streams enabled the
// stream delivers the event instead.
func (s *Store) publish(ctx context.Context, table string, op changefeed.Op, rowID string) {
	if s.streams {
		return
	}
	s.hub.Publish(ctx, changefeed.Event{Table: table, Op: op, RowID: rowID})
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colModuleRules: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "module_key", Value: 1}, {Key: "role", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "corporation_id", Value: 1}}},
		},
		colTenants: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Module rule operations
// ──────────────────────────────────────────────────

func (s *Store) ListModuleRules(ctx context.Context, tenantID string) ([]*modulerule.Rule, error) {
	var models []moduleRuleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID}).
		Sort(bson.D{{Key: "module_key", Value: 1}, {Key: "role", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("opendental: list module rules: %w", err)
	}
	result := make([]*modulerule.Rule, len(models))
	for i := range models {
		result[i] = moduleRuleFromModel(&models[i])
	}
	return result, nil
}

// UpsertModuleRule writes r keyed by (tenant, module, role). The stored ID
// and creation time survive an update and are copied back into r.
func (s *Store) UpsertModuleRule(ctx context.Context, r *modulerule.Rule) error {
	t := now()
	if r.ID.IsNil() {
		r.ID = id.NewModuleRuleID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t
	}
	r.UpdatedAt = t

	m := moduleRuleToModel(r)
	filter := bson.M{"tenant_id": m.TenantID, "module_key": m.ModuleKey, "role": m.Role}
	set := bson.M{"allowed": m.Allowed, "updated_at": m.UpdatedAt}
	update := bson.M{
		"$setOnInsert": bson.M{"_id": m.ID, "created_at": m.CreatedAt},
	}
	if m.CorporationID != nil {
		set["corporation_id"] = *m.CorporationID
	} else {
		update["$unset"] = bson.M{"corporation_id": ""}
	}
	update["$set"] = set

	res, err := s.mdb.Collection(colModuleRules).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("opendental: upsert module rule: %w", err)
	}

	op := changefeed.OpInsert
	if res.UpsertedCount == 0 {
		op = changefeed.OpUpdate
		var stored moduleRuleModel
		if err := s.mdb.NewFind(&stored).Filter(filter).Scan(ctx); err == nil {
			got := moduleRuleFromModel(&stored)
			r.ID = got.ID
			r.CreatedAt = got.CreatedAt
		}
	}

	s.publish(ctx, modulerule.Table, op, r.ID.String())
	return nil
}

func (s *Store) ListModuleRulesByCorporation(ctx context.Context, corporationID string) ([]*modulerule.Rule, error) {
	var models []moduleRuleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"corporation_id": corporationID}).
		Sort(bson.D{{Key: "tenant_id", Value: 1}, {Key: "module_key", Value: 1}, {Key: "role", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("opendental: list module rules by corporation: %w", err)
	}
	result := make([]*modulerule.Rule, len(models))
	for i := range models {
		result[i] = moduleRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteModuleRulesByTenant(ctx context.Context, tenantID string) error {
	res, err := s.mdb.NewDelete((*moduleRuleModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: delete module rules by tenant: %w", err)
	}
	if res.DeletedCount() > 0 {
		s.publish(ctx, modulerule.Table, changefeed.OpDelete, "")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Branch operations
// ──────────────────────────────────────────────────

func (s *Store) ListBranches(ctx context.Context) ([]*branch.Branch, error) {
	var models []branchModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("opendental: list branches: %w", err)
	}
	result := make([]*branch.Branch, len(models))
	for i := range models {
		result[i] = branchFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetBranch(ctx context.Context, branchID id.BranchID) (*branch.Branch, error) {
	var m branchModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": branchID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("branch %s: %w", branchID, errNotFound)
		}
		return nil, fmt.Errorf("opendental: get branch: %w", err)
	}
	return branchFromModel(&m), nil
}

func (s *Store) CreateBranch(ctx context.Context, b *branch.Branch) error {
	t := now()
	if b.ID.IsNil() {
		b.ID = id.NewBranchID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t
	}
	b.UpdatedAt = t
	if _, err := s.mdb.NewInsert(branchToModel(b)).Exec(ctx); err != nil {
		return fmt.Errorf("opendental: create branch: %w", err)
	}
	s.publish(ctx, branch.Table, changefeed.OpInsert, b.ID.String())
	return nil
}

func (s *Store) UpdateBranch(ctx context.Context, b *branch.Branch) error {
	b.UpdatedAt = now()
	m := branchToModel(b)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: update branch: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("branch %s: %w", b.ID, errNotFound)
	}
	s.publish(ctx, branch.Table, changefeed.OpUpdate, b.ID.String())
	return nil
}

func (s *Store) DeleteBranch(ctx context.Context, branchID id.BranchID) error {
	res, err := s.mdb.NewDelete((*branchModel)(nil)).
		Filter(bson.M{"_id": branchID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("opendental: delete branch: %w", err)
	}
	if res.DeletedCount() > 0 {
		s.publish(ctx, branch.Table, changefeed.OpDelete, branchID.String())
	}
	return nil
}
