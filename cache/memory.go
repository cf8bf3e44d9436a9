// Package cache provides RuleCache implementations for tenant rule sets.
package cache

import (
	"context"
	"sync"
	"time"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Compile-time interface checks.
var (
	_ opendental.RuleCache        = (*Memory)(nil)
	_ opendental.RuleCacheFlusher = (*Memory)(nil)
)

// Memory is an in-memory rule-set cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type entry struct {
	set       modulerule.Set
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxSize sets the maximum number of cached tenants.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a tenant's cached rule set.
func (m *Memory) Get(_ context.Context, tenantID string) (modulerule.Set, bool) {
	m.mu.RLock()
	e, ok := m.entries[tenantID]
	m.mu.RUnlock()
	if !ok {
		return modulerule.Set{}, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, tenantID)
		m.mu.Unlock()
		return modulerule.Set{}, false
	}
	return e.set, true
}

// Set stores a tenant's rule set.
func (m *Memory) Set(_ context.Context, tenantID string, set modulerule.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[tenantID]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[tenantID] = &entry{
		set:       set,
		expiresAt: m.now().Add(m.ttl),
	}
}

// InvalidateTenant removes the cached rule set for a tenant.
func (m *Memory) InvalidateTenant(_ context.Context, tenantID string) {
	m.mu.Lock()
	delete(m.entries, tenantID)
	m.mu.Unlock()
}

// InvalidateAll removes every cached rule set.
func (m *Memory) InvalidateAll(context.Context) {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
}

// Len returns the number of cached tenants, including expired entries not
// yet evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes the entry closest to expiry. Must hold write lock.
func (m *Memory) evictOne() {
	var (
		victim string
		oldest time.Time
	)
	for k, e := range m.entries {
		if victim == "" || e.expiresAt.Before(oldest) {
			victim, oldest = k, e.expiresAt
		}
	}
	delete(m.entries, victim)
}
