package plugin

import (
	"context"
	"log/slog"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Named entry types pair a hook with the plugin name for logging.

type afterDecisionEntry struct {
	name string
	hook AfterDecision
}
type ruleUpsertedEntry struct {
	name string
	hook RuleUpserted
}
type ruleUpsertFailedEntry struct {
	name string
	hook RuleUpsertFailed
}
type directoryLoadedEntry struct {
	name string
	hook DirectoryLoaded
}
type geocodeFailedEntry struct {
	name string
	hook GeocodeFailed
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
//
// Register is not safe to call concurrently with the emit methods; register
// every plugin before handing the registry to a Resolver or Directory.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterDecision    []afterDecisionEntry
	ruleUpserted     []ruleUpsertedEntry
	ruleUpsertFailed []ruleUpsertFailedEntry
	directoryLoaded  []directoryLoadedEntry
	geocodeFailed    []geocodeFailedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterDecision); ok {
		r.afterDecision = append(r.afterDecision, afterDecisionEntry{name, h})
	}
	if h, ok := p.(RuleUpserted); ok {
		r.ruleUpserted = append(r.ruleUpserted, ruleUpsertedEntry{name, h})
	}
	if h, ok := p.(RuleUpsertFailed); ok {
		r.ruleUpsertFailed = append(r.ruleUpsertFailed, ruleUpsertFailedEntry{name, h})
	}
	if h, ok := p.(DirectoryLoaded); ok {
		r.directoryLoaded = append(r.directoryLoaded, directoryLoadedEntry{name, h})
	}
	if h, ok := p.(GeocodeFailed); ok {
		r.geocodeFailed = append(r.geocodeFailed, geocodeFailedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Access event emitters
// ──────────────────────────────────────────────────

// EmitAfterDecision notifies all plugins that implement AfterDecision.
func (r *Registry) EmitAfterDecision(ctx context.Context, tenantID string, decision any) {
	for _, e := range r.afterDecision {
		if err := e.hook.OnAfterDecision(ctx, tenantID, decision); err != nil {
			r.logHookError("OnAfterDecision", e.name, err)
		}
	}
}

// EmitRuleUpserted notifies all plugins that implement RuleUpserted.
func (r *Registry) EmitRuleUpserted(ctx context.Context, rule *modulerule.Rule) {
	for _, e := range r.ruleUpserted {
		if err := e.hook.OnRuleUpserted(ctx, rule); err != nil {
			r.logHookError("OnRuleUpserted", e.name, err)
		}
	}
}

// EmitRuleUpsertFailed notifies all plugins that implement RuleUpsertFailed.
func (r *Registry) EmitRuleUpsertFailed(ctx context.Context, rule *modulerule.Rule, cause error) {
	for _, e := range r.ruleUpsertFailed {
		if err := e.hook.OnRuleUpsertFailed(ctx, rule, cause); err != nil {
			r.logHookError("OnRuleUpsertFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Directory event emitters
// ──────────────────────────────────────────────────

// EmitDirectoryLoaded notifies all plugins that implement DirectoryLoaded.
func (r *Registry) EmitDirectoryLoaded(ctx context.Context, branches []*branch.Branch) {
	for _, e := range r.directoryLoaded {
		if err := e.hook.OnDirectoryLoaded(ctx, branches); err != nil {
			r.logHookError("OnDirectoryLoaded", e.name, err)
		}
	}
}

// EmitGeocodeFailed notifies all plugins that implement GeocodeFailed.
func (r *Registry) EmitGeocodeFailed(ctx context.Context, b *branch.Branch, cause error) {
	for _, e := range r.geocodeFailed {
		if err := e.hook.OnGeocodeFailed(ctx, b, cause); err != nil {
			r.logHookError("OnGeocodeFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
