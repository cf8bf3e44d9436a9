// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development. Writes are published
// on an in-process change feed.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/id"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Compile-time interface checks.
var (
	_ modulerule.Store  = (*Store)(nil)
	_ branch.Store      = (*Store)(nil)
	_ changefeed.Source = (*Store)(nil)
)

// errNotFound is the sentinel for missing entities.
var errNotFound = fmt.Errorf("not found")

// Store is a thread-safe in-memory store for rules and branches.
type Store struct {
	mu sync.RWMutex

	rules    map[ruleKey]*modulerule.Rule
	branches map[string]*branch.Branch

	hub *changefeed.Hub
}

type ruleKey struct {
	tenantID string
	module   modulerule.Module
	role     modulerule.Role
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rules:    make(map[ruleKey]*modulerule.Rule),
		branches: make(map[string]*branch.Branch),
		hub:      changefeed.NewHub(),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Subscribe delivers change events for writes made through this store.
func (s *Store) Subscribe(ctx context.Context, table string, h changefeed.Handler) (changefeed.Subscription, error) {
	return s.hub.Subscribe(ctx, table, h)
}

// ──────────────────────────────────────────────────
// Module rule store
// ──────────────────────────────────────────────────

func (s *Store) ListModuleRules(_ context.Context, tenantID string) ([]*modulerule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*modulerule.Rule, 0)
	for k, r := range s.rules {
		if k.tenantID == tenantID {
			result = append(result, copyRule(r))
		}
	}
	sortRules(result)
	return result, nil
}

func (s *Store) UpsertModuleRule(ctx context.Context, r *modulerule.Rule) error {
	k := ruleKey{tenantID: r.TenantID, module: r.Module, role: r.Role}
	now := time.Now().UTC()

	s.mu.Lock()
	op := changefeed.OpUpdate
	existing, ok := s.rules[k]
	if ok {
		existing.Allowed = r.Allowed
		existing.CorporationID = copyString(r.CorporationID)
		existing.UpdatedAt = now
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = now
	} else {
		op = changefeed.OpInsert
		if r.ID.IsNil() {
			r.ID = id.NewModuleRuleID()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		s.rules[k] = copyRule(r)
	}
	s.mu.Unlock()

	s.hub.Publish(ctx, changefeed.Event{Table: modulerule.Table, Op: op, RowID: r.ID.String()})
	return nil
}

func (s *Store) ListModuleRulesByCorporation(_ context.Context, corporationID string) ([]*modulerule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*modulerule.Rule, 0)
	for _, r := range s.rules {
		if r.CorporationID != nil && *r.CorporationID == corporationID {
			result = append(result, copyRule(r))
		}
	}
	sortRules(result)
	return result, nil
}

func (s *Store) DeleteModuleRulesByTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	removed := 0
	for k := range s.rules {
		if k.tenantID == tenantID {
			delete(s.rules, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.hub.Publish(ctx, changefeed.Event{Table: modulerule.Table, Op: changefeed.OpDelete})
	}
	return nil
}

// ──────────────────────────────────────────────────
// Branch store
// ──────────────────────────────────────────────────

func (s *Store) ListBranches(_ context.Context) ([]*branch.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*branch.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		result = append(result, b.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) GetBranch(_ context.Context, branchID id.BranchID) (*branch.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[branchID.String()]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branchID, errNotFound)
	}
	return b.Clone(), nil
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

	s.mu.Lock()
	if _, ok := s.branches[b.ID.String()]; ok {
		s.mu.Unlock()
		return fmt.Errorf("branch %s: already exists", b.ID)
	}
	s.branches[b.ID.String()] = stored(b)
	s.mu.Unlock()

	s.hub.Publish(ctx, changefeed.Event{Table: branch.Table, Op: changefeed.OpInsert, RowID: b.ID.String()})
	return nil
}

func (s *Store) UpdateBranch(ctx context.Context, b *branch.Branch) error {
	s.mu.Lock()
	existing, ok := s.branches[b.ID.String()]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("branch %s: %w", b.ID, errNotFound)
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	s.branches[b.ID.String()] = stored(b)
	s.mu.Unlock()

	s.hub.Publish(ctx, changefeed.Event{Table: branch.Table, Op: changefeed.OpUpdate, RowID: b.ID.String()})
	return nil
}

func (s *Store) DeleteBranch(ctx context.Context, branchID id.BranchID) error {
	s.mu.Lock()
	_, ok := s.branches[branchID.String()]
	delete(s.branches, branchID.String())
	s.mu.Unlock()

	if ok {
		s.hub.Publish(ctx, changefeed.Event{Table: branch.Table, Op: changefeed.OpDelete, RowID: branchID.String()})
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyRule(r *modulerule.Rule) *modulerule.Rule {
	cp := *r
	cp.CorporationID = copyString(r.CorporationID)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// stored clones b without derived coordinates.
func stored(b *branch.Branch) *branch.Branch {
	cp := b.Clone()
	cp.Coordinates = nil
	return cp
}

func sortRules(rules []*modulerule.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Module != rules[j].Module {
			return rules[i].Module < rules[j].Module
		}
		return rules[i].Role < rules[j].Role
	})
}
