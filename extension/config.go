package extension

import opendental "github.com/imranmit2020/open-dental-helper-sub002"

// Config holds the extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.opendental" or "opendental" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableDirectory skips building the branch directory and its routes.
	DisableDirectory bool `json:"disable_directory" mapstructure:"disable_directory" yaml:"disable_directory"`

	// BasePath is the URL prefix for routes (default: "/opendental").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Resolver configures module access resolution. A zero RuleCacheTTL
	// keeps loaded rule sets until a rule change event flushes them.
	Resolver opendental.Config `json:"resolver" mapstructure:"resolver" yaml:"resolver"`

	// Mapbox configures geocoding for the branch directory.
	Mapbox MapboxConfig `json:"mapbox" mapstructure:"mapbox" yaml:"mapbox"`
}

// MapboxConfig selects the geocoding endpoint and where its token comes
// from. Token wins over TokenEndpoint. With neither, branches are listed
// without coordinates.
type MapboxConfig struct {
	BaseURL       string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
	Token         string `json:"token" mapstructure:"token" yaml:"token"`
	TokenEndpoint string `json:"token_endpoint" mapstructure:"token_endpoint" yaml:"token_endpoint"`
	APIKey        string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`

	// Concurrency caps simultaneous geocode requests per load.
	Concurrency int `json:"concurrency" mapstructure:"concurrency" yaml:"concurrency"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath: "/opendental",
		Resolver: opendental.DefaultConfig(),
		Mapbox:   MapboxConfig{Concurrency: 8},
	}
}
