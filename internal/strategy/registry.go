package strategy

import (
	"context"

	"fixloop/internal/config"
	"fixloop/internal/event"
	"fixloop/internal/tactile"
)

// Strategy attempts to repair one event. A strategy never returns an
// error: anything that prevents the fix is reported as a declined
// outcome so the loop can keep going.
type Strategy interface {
	Fix(ctx context.Context, ev event.Event) event.FixOutcome
}

// Registry resolves an event kind to the strategy that handles it.
// Runtime, network and unknown events have no entry: they are surfaced
// in the logs but never acted on.
type Registry struct {
	byKind    map[event.Kind]Strategy
	typeError Strategy
}

// NewRegistry wires the built-in strategies against the configured
// project layout.
func NewRegistry(cfg *config.Config, exec *tactile.Executor, editor *tactile.FileEditor) *Registry {
	dirs := make(map[string]string, len(cfg.Services))
	for _, svc := range cfg.Services {
		dirs[svc.Name] = svc.Dir
	}

	return &Registry{
		byKind: map[event.Kind]Strategy{
			event.KindMissingModule:  NewMissingModuleStrategy(exec, cfg.ProjectRoot, dirs, cfg.Supervisor.NpmTimeout()),
			event.KindTsconfigNoEmit: NewTsconfigStrategy(editor, cfg.ProjectRoot, dirs),
		},
		typeError: NewTypeErrorStrategy(editor, cfg.ProjectRoot, cfg.SharedLibrary, dirs),
	}
}

// Lookup returns the strategy for the kind, or false when events of
// that kind are surface-only.
func (r *Registry) Lookup(kind event.Kind) (Strategy, bool) {
	if s, ok := r.byKind[kind]; ok {
		return s, true
	}
	if kind.IsTypeError() {
		return r.typeError, true
	}
	return nil, false
}
