// Package plugin defines lifecycle hooks for the access resolver and the
// branch directory. Plugins are notified of decisions, rule writes and
// directory loads and can react with logging, metrics or auditing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// AfterDecision is called after a module access decision is made.
// The decision parameter is *opendental.Decision (passed as any to avoid an
// import cycle).
type AfterDecision interface {
	OnAfterDecision(ctx context.Context, tenantID string, decision any) error
}

// RuleUpserted is called after a module rule is written.
type RuleUpserted interface {
	OnRuleUpserted(ctx context.Context, r *modulerule.Rule) error
}

// RuleUpsertFailed is called when writing a module rule fails.
type RuleUpsertFailed interface {
	OnRuleUpsertFailed(ctx context.Context, r *modulerule.Rule, cause error) error
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

// DirectoryLoaded is called after the branch list is published.
type DirectoryLoaded interface {
	OnDirectoryLoaded(ctx context.Context, branches []*branch.Branch) error
}

// GeocodeFailed is called for each branch whose address could not be
// geocoded during a load.
type GeocodeFailed interface {
	OnGeocodeFailed(ctx context.Context, b *branch.Branch, cause error) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
