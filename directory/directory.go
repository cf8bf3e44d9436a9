// Package directory keeps an in-memory list of clinic branches enriched with
// geocoded coordinates.
//
// A load fetches the branch list, resolves each non-empty address through a
// geocache.Cache backed by a geocode.Geocoder, and publishes the result.
// Geocoding is best-effort: a missing token disables it for the whole load
// and a failed lookup leaves only that branch's coordinates nil. Only a
// failure to fetch the list itself is reported as an error.
//
// Start subscribes to the upstream change feed so that any change to the
// branch table triggers a full refresh.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/geocache"
	"github.com/imranmit2020/open-dental-helper-sub002/geocode"
	"github.com/imranmit2020/open-dental-helper-sub002/plugin"
)

var (
	// ErrNoStore is returned by New when no branch store is configured.
	ErrNoStore = errors.New("directory: branch store is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("directory: already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("directory: closed")
)

// Config holds directory tuning.
type Config struct {
	// Table is the change-feed table that triggers refreshes.
	Table string `json:"table" mapstructure:"table" yaml:"table"`

	// GeocodeConcurrency bounds concurrent geocoding calls per load.
	GeocodeConcurrency int `json:"geocode_concurrency" mapstructure:"geocode_concurrency" yaml:"geocode_concurrency"`

	// GeocodeTimeout bounds a single geocoding call. Zero means no bound
	// beyond the load's context.
	GeocodeTimeout time.Duration `json:"geocode_timeout" mapstructure:"geocode_timeout" yaml:"geocode_timeout"`
}

// DefaultConfig returns the default directory configuration.
func DefaultConfig() Config {
	return Config{
		Table:              branch.Table,
		GeocodeConcurrency: 8,
		GeocodeTimeout:     10 * time.Second,
	}
}

// Option configures a Directory.
type Option func(*Directory)

// WithStore sets the branch store.
func WithStore(s branch.Store) Option { return func(d *Directory) { d.store = s } }

// WithFeed sets the change feed used by Start.
func WithFeed(src changefeed.Source) Option { return func(d *Directory) { d.feed = src } }

// WithGeocoder sets the geocoding client.
func WithGeocoder(g geocode.Geocoder) Option { return func(d *Directory) { d.geocoder = g } }

// WithTokenSource sets where the geocoding token comes from.
func WithTokenSource(ts geocode.TokenSource) Option { return func(d *Directory) { d.tokens = ts } }

// WithCache sets the coordinate cache.
func WithCache(c *geocache.Cache) Option { return func(d *Directory) { d.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(d *Directory) { d.logger = l } }

// WithConfig sets the directory configuration.
func WithConfig(cfg Config) Option { return func(d *Directory) { d.config = cfg } }

// WithPlugins sets the plugin registry notified of loads and geocode failures.
func WithPlugins(r *plugin.Registry) Option { return func(d *Directory) { d.plugins = r } }

// State is a point-in-time view of the directory.
type State struct {
	Branches []*branch.Branch `json:"branches"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
}

// Directory is the geocoded branch list.
type Directory struct {
	store    branch.Store
	feed     changefeed.Source
	geocoder geocode.Geocoder
	tokens   geocode.TokenSource
	cache    *geocache.Cache
	logger   *slog.Logger
	config   Config
	plugins  *plugin.Registry

	mu       sync.RWMutex
	branches []*branch.Branch
	err      error
	started  uint64 // generation of the most recently started load
	applied  uint64 // generation of the most recently published outcome
	inflight int
	closed   bool

	runMu  sync.Mutex
	sub    changefeed.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Directory.
func New(opts ...Option) (*Directory, error) {
	d := &Directory{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		return nil, ErrNoStore
	}
	if d.plugins == nil {
		d.plugins = plugin.NewRegistry(d.logger)
	}
	if d.config.Table == "" {
		d.config.Table = branch.Table
	}
	if d.config.GeocodeConcurrency <= 0 {
		d.config.GeocodeConcurrency = DefaultConfig().GeocodeConcurrency
	}
	return d, nil
}

// Branches returns a copy of the current branch list.
func (d *Directory) Branches() []*branch.Branch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneAll(d.branches)
}

// Loading reports whether a load is running.
func (d *Directory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inflight > 0
}

// Err returns the error of the last directory fetch, or nil.
func (d *Directory) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// State returns the current list together with the loading and error flags.
func (d *Directory) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := State{
		Branches: cloneAll(d.branches),
		Loading:  d.inflight > 0,
	}
	if d.err != nil {
		s.Error = d.err.Error()
	}
	return s
}

// Load fetches the branch list, geocodes it and publishes the result.
//
// When the list cannot be fetched the previous list stays published, Err
// reports the failure and the wrapped error is returned. A load that
// completes after a newer one, or after Close, does not publish anything.
func (d *Directory) Load(ctx context.Context) ([]*branch.Branch, error) {
	gen := d.begin()
	defer d.end()

	token := d.token(ctx)

	list, err := d.store.ListBranches(ctx)
	if err != nil {
		err = fmt.Errorf("directory: list branches: %w", err)
		d.logger.Warn("directory fetch failed", "error", err)
		d.publish(gen, nil, err)
		return nil, err
	}

	out := d.enrich(ctx, list, token)
	if d.publish(gen, out, nil) {
		d.plugins.EmitDirectoryLoaded(ctx, cloneAll(out))
	}
	return cloneAll(out), nil
}

// Refresh reloads the directory. It is equivalent to Load.
func (d *Directory) Refresh(ctx context.Context) ([]*branch.Branch, error) {
	return d.Load(ctx)
}

func (d *Directory) begin() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight++
	d.started++
	return d.started
}

func (d *Directory) end() {
	d.mu.Lock()
	d.inflight--
	d.mu.Unlock()
}

// publish records the outcome of load gen unless a newer outcome is already
// published or the directory is closed. A non-nil loadErr keeps the current
// list.
func (d *Directory) publish(gen uint64, list []*branch.Branch, loadErr error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen <= d.applied {
		d.logger.Debug("discarding superseded directory load", "generation", gen)
		return false
	}
	d.applied = gen
	d.err = loadErr
	if loadErr == nil {
		d.branches = list
	}
	return true
}

// token returns the geocoding token, or "" when geocoding is unavailable.
func (d *Directory) token(ctx context.Context) string {
	if d.tokens == nil || d.geocoder == nil {
		return ""
	}
	tok, err := d.tokens.Token(ctx)
	if err != nil || tok == "" {
		d.logger.Info("geocoding disabled for this load", "error", err)
		return ""
	}
	return tok
}

// enrich returns copies of list with coordinates resolved. Order is
// preserved. Lookups run concurrently up to GeocodeConcurrency.
func (d *Directory) enrich(ctx context.Context, list []*branch.Branch, token string) []*branch.Branch {
	out := make([]*branch.Branch, len(list))
	for i, b := range list {
		c := b.Clone()
		c.Coordinates = nil
		out[i] = c
	}
	if token == "" {
		return out
	}

	var (
		g      errgroup.Group
		failMu sync.Mutex
		failed int
	)
	g.SetLimit(d.config.GeocodeConcurrency)

	for _, b := range out {
		if !b.HasAddress() {
			continue
		}
		g.Go(func() error {
			coords, err := d.resolve(ctx, *b.Address, token)
			if err != nil {
				failMu.Lock()
				failed++
				failMu.Unlock()
				d.logger.Debug("geocode failed", "branch", b.Name, "address", *b.Address, "error", err)
				d.plugins.EmitGeocodeFailed(ctx, b.Clone(), err)
				return nil
			}
			b.Coordinates = coords
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		d.logger.Warn("some branches could not be geocoded", "failed", failed, "total", len(out))
	}
	return out
}

// resolve consults the cache before calling the geocoder, and caches
// successful lookups.
func (d *Directory) resolve(ctx context.Context, address, token string) (*branch.Coordinates, error) {
	if d.cache != nil {
		if c, ok := d.cache.Get(ctx, address); ok {
			return &c, nil
		}
	}

	callCtx := ctx
	if d.config.GeocodeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.config.GeocodeTimeout)
		defer cancel()
	}

	coords, err := d.geocoder.Forward(callCtx, address, token)
	if err != nil {
		return nil, err
	}
	if coords == nil {
		return nil, geocode.ErrMalformedResponse
	}
	if d.cache != nil {
		d.cache.Set(ctx, address, *coords)
	}
	return coords, nil
}

func cloneAll(list []*branch.Branch) []*branch.Branch {
	if list == nil {
		return nil
	}
	out := make([]*branch.Branch, len(list))
	for i, b := range list {
		out[i] = b.Clone()
	}
	return out
}
