// Package redis provides a kv.Store backed by Redis so cached values are
// shared across instances and survive restarts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/imranmit2020/open-dental-helper-sub002/kv"
)

// Compile-time interface check.
var _ kv.Store = (*Store)(nil)

// Store is a Redis-backed kv.Store.
type Store struct {
	client     *goredis.Client
	prefix     string        // prepended to every key, e.g. "opendental:"
	expiration time.Duration // zero keeps keys until evicted
}

// Option configures the store.
type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(p string) Option { return func(s *Store) { s.prefix = p } }

// WithExpiration sets a Redis TTL on written keys.
func WithExpiration(d time.Duration) Option { return func(s *Store) { s.expiration = d } }

// New creates a store on the given client.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv/redis: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.client.Set(ctx, s.prefix+key, value, s.expiration).Err()
	if err == nil {
		return nil
	}
	if isOOM(err) {
		return fmt.Errorf("kv/redis: set %s: %w: %w", key, kv.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("kv/redis: set %s: %w", key, err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("kv/redis: delete %s: %w", key, err)
	}
	return nil
}

// isOOM reports whether Redis rejected a write because maxmemory was reached.
func isOOM(err error) bool {
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return strings.HasPrefix(rerr.Error(), "OOM")
	}
	return false
}
