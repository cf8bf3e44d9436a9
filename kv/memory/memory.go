// Package memory provides a map-backed kv.Store for tests and single-process use.
package memory

import (
	"context"
	"sync"

	"github.com/imranmit2020/open-dental-helper-sub002/kv"
)

// Compile-time interface check.
var _ kv.Store = (*Store)(nil)

// Store is a thread-safe in-memory kv.Store.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]string
	maxEntries int
}

// Option configures the store.
type Option func(*Store)

// WithMaxEntries caps the number of keys. Setting a new key beyond the cap
// fails with kv.ErrQuotaExceeded; overwriting an existing key always succeeds.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		return kv.ErrQuotaExceeded
	}
	s.entries[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
