package opendental

import (
	"context"
	"sync"

	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// RuleCache caches loaded tenant rule sets.
type RuleCache interface {
	// Get returns the cached rule set for a tenant, if available.
	Get(ctx context.Context, tenantID string) (modulerule.Set, bool)

	// Set stores a tenant's rule set.
	Set(ctx context.Context, tenantID string, rules modulerule.Set)

	// InvalidateTenant removes the cached rule set for a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)
}

// RuleCacheFlusher is implemented by caches that can drop every tenant at
// once. Change events do not name a tenant, so the resolver flushes on them.
type RuleCacheFlusher interface {
	InvalidateAll(ctx context.Context)
}

// tenantSets is the resolver's default cache: loaded sets are kept until
// invalidated.
type tenantSets struct {
	mu   sync.RWMutex
	sets map[string]modulerule.Set
}

var (
	_ RuleCache        = (*tenantSets)(nil)
	_ RuleCacheFlusher = (*tenantSets)(nil)
)

func newTenantSets() *tenantSets {
	return &tenantSets{sets: make(map[string]modulerule.Set)}
}

func (c *tenantSets) Get(_ context.Context, tenantID string) (modulerule.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sets[tenantID]
	return s, ok
}

func (c *tenantSets) Set(_ context.Context, tenantID string, set modulerule.Set) {
	c.mu.Lock()
	c.sets[tenantID] = set
	c.mu.Unlock()
}

func (c *tenantSets) InvalidateTenant(_ context.Context, tenantID string) {
	c.mu.Lock()
	delete(c.sets, tenantID)
	c.mu.Unlock()
}

func (c *tenantSets) InvalidateAll(context.Context) {
	c.mu.Lock()
	clear(c.sets)
	c.mu.Unlock()
}
