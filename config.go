package opendental

import (
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Config holds configuration for the module access resolver.
type Config struct {
	// FallbackRole is used when neither the caller nor the context supplies
	// a role. Defaults to staff.
	FallbackRole modulerule.Role `json:"fallback_role,omitempty" mapstructure:"fallback_role" yaml:"fallback_role"`

	// RuleCacheTTL is the lifetime of cached tenant rule sets when a rule
	// cache is configured. Zero means the cache's own default.
	RuleCacheTTL time.Duration `json:"rule_cache_ttl,omitempty" mapstructure:"rule_cache_ttl" yaml:"rule_cache_ttl"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FallbackRole: modulerule.RoleStaff,
		RuleCacheTTL: 5 * time.Minute,
	}
}

func (c Config) fallbackRole() modulerule.Role {
	if c.FallbackRole == "" {
		return modulerule.RoleStaff
	}
	return c.FallbackRole
}
