// Package geocache caches geocoding results on a kv.Store with a fixed
// time-to-live.
//
// Entries are keyed by the literal address string, so differently formatted
// spellings of one place are cached separately. Expired entries are left in
// place and treated as misses. Every failure reading or writing the backing
// store is absorbed: the cache only ever degrades to a miss.
package geocache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/kv"
)

const (
	// DefaultTTL is the validity window of a cached coordinate.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultPrefix namespaces cache keys in the backing store.
	DefaultPrefix = "geocode:"
)

// entry is the serialized form. Timestamp is Unix milliseconds.
type entry struct {
	Timestamp int64               `json:"timestamp"`
	Value     *branch.Coordinates `json:"value"`
}

// Cache is a TTL cache of address -> coordinates.
type Cache struct {
	store  kv.Store
	ttl    time.Duration
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry time-to-live.
func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

// WithPrefix sets the key prefix.
func WithPrefix(p string) Option { return func(c *Cache) { c.prefix = p } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *Cache) { c.logger = l } }

// New creates a cache on store.
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the backing-store key for address.
func (c *Cache) Key(address string) string { return c.prefix + address }

// Get returns the cached coordinates for address when a valid entry exists.
func (c *Cache) Get(ctx context.Context, address string) (branch.Coordinates, bool) {
	raw, ok, err := c.store.Get(ctx, c.Key(address))
	if err != nil {
		c.logger.Debug("geocache: read failed", "address", address, "error", err)
		return branch.Coordinates{}, false
	}
	if !ok {
		return branch.Coordinates{}, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Value == nil {
		return branch.Coordinates{}, false
	}
	age := c.now().Sub(time.UnixMilli(e.Timestamp))
	if age > c.ttl {
		return branch.Coordinates{}, false
	}
	return *e.Value, true
}

// Set stores coordinates for address stamped with the current time.
// Write failures, including quota exhaustion, are logged and dropped.
func (c *Cache) Set(ctx context.Context, address string, coords branch.Coordinates) {
	data, err := json.Marshal(entry{Timestamp: c.now().UnixMilli(), Value: &coords})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.Key(address), string(data)); err != nil {
		c.logger.Debug("geocache: write failed", "address", address, "error", err)
	}
}
