package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Compile-time interface checks.
var (
	_ opendental.RuleCache        = (*Redis)(nil)
	_ opendental.RuleCacheFlusher = (*Redis)(nil)
)

// DefaultRedisPrefix namespaces rule-set keys.
const DefaultRedisPrefix = "opendental:rules:"

// Redis is a rule-set cache shared by every instance connected to the same
// Redis. Rule sets are stored as JSON rule lists with a Redis TTL. Redis
// failures are logged and treated as misses.
type Redis struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the key expiration.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(p string) RedisOption { return func(r *Redis) { r.prefix = p } }

// WithRedisLogger sets the structured logger.
func WithRedisLogger(l *slog.Logger) RedisOption { return func(r *Redis) { r.logger = l } }

// NewRedis creates a Redis-backed rule cache.
func NewRedis(client *goredis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    5 * time.Minute,
		prefix: DefaultRedisPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a tenant's cached rule set.
func (r *Redis) Get(ctx context.Context, tenantID string) (modulerule.Set, bool) {
	raw, err := r.client.Get(ctx, r.prefix+tenantID).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.logger.Debug("rule cache read failed", "tenant_id", tenantID, "error", err)
		}
		return modulerule.Set{}, false
	}
	var rules []*modulerule.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		r.logger.Debug("rule cache entry unreadable", "tenant_id", tenantID, "error", err)
		return modulerule.Set{}, false
	}
	return modulerule.NewSet(rules), true
}

// Set stores a tenant's rule set.
func (r *Redis) Set(ctx context.Context, tenantID string, set modulerule.Set) {
	data, err := json.Marshal(set.Rules())
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.prefix+tenantID, data, r.ttl).Err(); err != nil {
		r.logger.Debug("rule cache write failed", "tenant_id", tenantID, "error", err)
	}
}

// InvalidateTenant removes the cached rule set for a tenant.
func (r *Redis) InvalidateTenant(ctx context.Context, tenantID string) {
	if err := r.client.Del(ctx, r.prefix+tenantID).Err(); err != nil {
		r.logger.Warn("rule cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

// InvalidateAll removes every rule set under the cache prefix.
func (r *Redis) InvalidateAll(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("rule cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("rule cache flush failed", "keys", len(keys), "error", err)
	}
}
