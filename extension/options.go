package extension

import (
	"log/slog"

	opendental "github.com/imranmit2020/open-dental-helper-sub002"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/directory"
	"github.com/imranmit2020/open-dental-helper-sub002/geocode"
	"github.com/imranmit2020/open-dental-helper-sub002/kv"
	"github.com/imranmit2020/open-dental-helper-sub002/plugin"
	"github.com/imranmit2020/open-dental-helper-sub002/store"
)

// ExtOption configures the Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.store = s
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithResolverOptions adds resolver-level options.
func WithResolverOptions(opts ...opendental.Option) ExtOption {
	return func(e *Extension) {
		e.resolverOpts = append(e.resolverOpts, opts...)
	}
}

// WithDirectoryOptions adds directory-level options.
func WithDirectoryOptions(opts ...directory.Option) ExtOption {
	return func(e *Extension) {
		e.directoryOpts = append(e.directoryOpts, opts...)
	}
}

// WithFeed overrides the store's change feed, for example with a Redis bus.
// A feed that also implements changefeed.Publisher receives every write
// made through the store.
func WithFeed(src changefeed.Source) ExtOption {
	return func(e *Extension) {
		e.feed = src
	}
}

// WithGeocoder overrides the Mapbox client built from Config.
func WithGeocoder(g geocode.Geocoder) ExtOption {
	return func(e *Extension) {
		e.geocoder = g
	}
}

// WithTokenSource overrides the token source built from Config.
func WithTokenSource(ts geocode.TokenSource) ExtOption {
	return func(e *Extension) {
		e.tokens = ts
	}
}

// WithGeocodeStore sets the key-value store backing the geocode cache.
// Defaults to an in-process store.
func WithGeocodeStore(s kv.Store) ExtOption {
	return func(e *Extension) {
		e.geoStore = s
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithDisableDirectory disables the branch directory.
func WithDisableDirectory() ExtOption {
	return func(e *Extension) {
		e.config.DisableDirectory = true
	}
}
