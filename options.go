package opendental

import (
	"log/slog"

	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
	"github.com/imranmit2020/open-dental-helper-sub002/plugin"
)

// Option is a functional option for the Resolver.
type Option func(*Resolver)

// WithStore sets the module rule store.
func WithStore(s modulerule.Store) Option { return func(r *Resolver) { r.store = s } }

// WithCache sets the tenant rule-set cache.
func WithCache(c RuleCache) Option { return func(r *Resolver) { r.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.logger = l } }

// WithConfig sets the resolver configuration.
func WithConfig(c Config) Option { return func(r *Resolver) { r.config = c } }

// WithPlugins shares an existing plugin registry with the resolver.
func WithPlugins(reg *plugin.Registry) Option { return func(r *Resolver) { r.plugins = reg } }

// WithPlugin registers a plugin with the resolver.
func WithPlugin(x plugin.Plugin) Option {
	return func(r *Resolver) {
		if r.plugins == nil {
			r.plugins = plugin.NewRegistry(r.logger)
		}
		r.plugins.Register(x)
	}
}
