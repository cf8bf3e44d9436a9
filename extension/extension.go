// Package extension provides a Forge extension entry point for module access
// and the branch directory.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/api"
	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/cache"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/directory"
	"github.com/imranmit2020/open-dental-helper-sub002/geocache"
	"github.com/imranmit2020/open-dental-helper-sub002/geocode"
	"github.com/imranmit2020/open-dental-helper-sub002/kv"
	kvmemory "github.com/imranmit2020/open-dental-helper-sub002/kv/memory"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/plugin"
	"github.com/imranmit2020/open-dental-helper-sub002/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "opendental"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Tenant module access and geocoded branch directory"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the resolver and directory as a Forge extension.
type Extension struct {
	config     Config
	store      store.Store
	res        *opendental.Resolver
	dir        *directory.Directory
	apiHandler *api.API
	logger     *slog.Logger

	resolverOpts  []opendental.Option
	directoryOpts []directory.Option
	plugins       []plugin.Plugin
	feed          changefeed.Source
	geocoder      geocode.Geocoder
	tokens        geocode.TokenSource
	geoStore      kv.Store

	// Subscriptions opened by Start.
	subs []changefeed.Subscription
}

// New creates a Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Resolver returns the module access resolver.
func (e *Extension) Resolver() *opendental.Resolver { return e.res }

// Directory returns the branch directory, or nil when disabled.
func (e *Extension) Directory() *directory.Directory { return e.dir }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It builds the resolver and
// directory, registers them in the DI container, and optionally registers
// HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if e.store == nil {
		if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
			e.store = s
		}
	}
	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*opendental.Resolver, error) {
		return e.res, nil
	}); err != nil {
		return fmt.Errorf("opendental: register resolver in container: %w", err)
	}
	if e.dir != nil {
		if err := vessel.Provide(fapp.Container(), func() (*directory.Directory, error) {
			return e.dir, nil
		}); err != nil {
			return fmt.Errorf("opendental: register directory in container: %w", err)
		}
	}

	e.apiHandler = api.New(e.res, e.dir, fapp.Router())
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(e.routeGroup(fapp.Router())); err != nil {
			return fmt.Errorf("opendental: register routes: %w", err)
		}
	}
	return nil
}

func (e *Extension) routeGroup(router forge.Router) forge.Router {
	if e.config.BasePath == "" || e.config.BasePath == "/" {
		return router
	}
	return router.Group(e.config.BasePath)
}

// build constructs the resolver and directory. It needs no forge app, so it
// is shared by Register and tests.
func (e *Extension) build() error {
	if e.store == nil {
		return opendental.ErrStoreRequired
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	logger := e.logger

	registry := plugin.NewRegistry(logger)
	for _, x := range e.plugins {
		registry.Register(x)
	}

	opts := []opendental.Option{
		opendental.WithLogger(logger),
		opendental.WithConfig(e.config.Resolver),
		opendental.WithStore(e.store),
		opendental.WithPlugins(registry),
	}
	if ttl := e.config.Resolver.RuleCacheTTL; ttl > 0 {
		opts = append(opts, opendental.WithCache(cache.NewMemory(cache.WithTTL(ttl))))
	}
	opts = append(opts, e.resolverOpts...)

	res, err := opendental.NewResolver(opts...)
	if err != nil {
		return fmt.Errorf("opendental: create resolver: %w", err)
	}
	e.res = res

	if e.config.DisableDirectory {
		return nil
	}
	dir, err := directory.New(e.directoryOptions(logger, registry)...)
	if err != nil {
		return fmt.Errorf("opendental: create directory: %w", err)
	}
	e.dir = dir
	return nil
}

func (e *Extension) directoryOptions(logger *slog.Logger, registry *plugin.Registry) []directory.Option {
	mb := e.config.Mapbox

	geocoder := e.geocoder
	if geocoder == nil {
		copts := []geocode.ClientOption{geocode.WithClientLogger(logger)}
		if mb.BaseURL != "" {
			copts = append(copts, geocode.WithBaseURL(mb.BaseURL))
		}
		geocoder = geocode.NewClient(copts...)
	}

	tokens := e.tokens
	if tokens == nil {
		switch {
		case mb.Token != "":
			tokens = geocode.StaticTokenSource(mb.Token)
		case mb.TokenEndpoint != "":
			tokens = geocode.NewEndpointTokenSource(mb.TokenEndpoint,
				geocode.WithAPIKey(mb.APIKey),
				geocode.WithTokenLogger(logger),
			)
		}
	}

	geoStore := e.geoStore
	if geoStore == nil {
		geoStore = kvmemory.New()
	}

	cfg := directory.DefaultConfig()
	if mb.Concurrency > 0 {
		cfg.GeocodeConcurrency = mb.Concurrency
	}

	opts := []directory.Option{
		directory.WithLogger(logger),
		directory.WithConfig(cfg),
		directory.WithStore(e.store),
		directory.WithFeed(e.changeSource()),
		directory.WithGeocoder(geocoder),
		directory.WithCache(geocache.New(geoStore, geocache.WithLogger(logger))),
		directory.WithPlugins(registry),
	}
	if tokens != nil {
		opts = append(opts, directory.WithTokenSource(tokens))
	}
	return append(opts, e.directoryOpts...)
}

// changeSource is the feed the directory and resolver follow: the one set
// with WithFeed, else the store's own.
func (e *Extension) changeSource() changefeed.Source {
	if e.feed != nil {
		return e.feed
	}
	return e.store
}

// Start runs migrations if enabled, then subscribes the resolver and the
// directory to the change feed and performs the initial directory load.
// When WithFeed names a publishing feed, store writes are relayed onto it
// first so local and remote writes arrive the same way. A failed initial
// load is reported through the directory state and does not fail Start.
func (e *Extension) Start(ctx context.Context) error {
	if e.res == nil {
		return errors.New("opendental: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("opendental: migration failed: %w", err)
		}
	}

	runCtx := context.WithoutCancel(ctx)
	if pub, ok := e.feed.(changefeed.Publisher); ok {
		sub, err := changefeed.Relay(runCtx, e.store, pub, branch.Table, modulerule.Table)
		if err != nil {
			return fmt.Errorf("opendental: relay store changes: %w", err)
		}
		e.subs = append(e.subs, sub)
	}

	sub, err := e.res.Follow(runCtx, e.changeSource())
	if err != nil {
		e.closeSubs()
		return err
	}
	e.subs = append(e.subs, sub)

	if e.dir != nil {
		if err := e.dir.Start(ctx); err != nil {
			e.closeSubs()
			return fmt.Errorf("opendental: start directory: %w", err)
		}
		if _, err := e.dir.Load(ctx); err != nil {
			e.logger.Warn("initial branch directory load failed", "error", err)
		}
	}
	return nil
}

// Stop closes the directory and every change feed subscription.
func (e *Extension) Stop(_ context.Context) error {
	var err error
	if e.dir != nil {
		err = e.dir.Close()
	}
	return errors.Join(err, e.closeSubs())
}

func (e *Extension) closeSubs() error {
	var errs []error
	for _, s := range e.subs {
		errs = append(errs, s.Close())
	}
	e.subs = nil
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.res == nil {
		return errors.New("opendental: extension not initialized")
	}
	return e.store.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
