package strategy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"fixloop/internal/event"
	"fixloop/internal/logging"
	"fixloop/internal/tactile"
)

// TypeErrorStrategy repairs compiler diagnostics by rewriting the one
// line the diagnostic points at. Dispatch is by diagnostic code; each
// code maps to a pure rewriter in rewrite.go.
type TypeErrorStrategy struct {
	editor        *tactile.FileEditor
	frontendRoot  string
	sharedLibrary string
	serviceDirs   map[string]string
}

// NewTypeErrorStrategy builds the strategy. serviceDirs maps a service
// name to its directory under <projectRoot>/frontend.
func NewTypeErrorStrategy(editor *tactile.FileEditor, projectRoot, sharedLibrary string, serviceDirs map[string]string) *TypeErrorStrategy {
	return &TypeErrorStrategy{
		editor:        editor,
		frontendRoot:  filepath.Join(projectRoot, "frontend"),
		sharedLibrary: sharedLibrary,
		serviceDirs:   serviceDirs,
	}
}

func (s *TypeErrorStrategy) Fix(ctx context.Context, ev event.Event) event.FixOutcome {
	path, ok := s.resolveFile(ev)
	if !ok {
		logging.FixWarn("cannot locate %s for %s", ev.File, ev.Fingerprint)
		return event.Declined(ev.Fingerprint, "source file not found")
	}

	rewrite, ok := s.rewriterFor(ev, path)
	if !ok {
		return event.Declined(ev.Fingerprint, fmt.Sprintf("no rewriter for %s", ev.Kind.DiagnosticCode()))
	}

	changed, err := s.editor.ReplaceLine(path, ev.Line, rewrite)
	if err != nil {
		logging.FixWarn("rewrite %s:%d failed: %v", path, ev.Line, err)
		return event.Declined(ev.Fingerprint, err.Error())
	}
	if !changed {
		return event.Declined(ev.Fingerprint, "line already in fixed form")
	}

	logging.Fix("rewrote %s:%d for %s", path, ev.Line, ev.Kind.DiagnosticCode())
	// the rewrite is only source text until webpack rebuilds it
	return event.FixOutcome{
		Fingerprint:     ev.Fingerprint,
		Applied:         true,
		RequiresRestart: true,
		Detail:          fmt.Sprintf("rewrote line %d of %s", ev.Line, ev.File),
	}
}

func (s *TypeErrorStrategy) rewriterFor(ev event.Event, path string) (func(string) (string, bool), bool) {
	switch ev.Kind.DiagnosticCode() {
	case "TS2307":
		if !strings.Contains(ev.Message, s.sharedLibrary) {
			return nil, false
		}
		depth := s.importDepth(path)
		return func(line string) (string, bool) {
			return RewriteSharedImport(line, s.sharedLibrary, depth)
		}, true
	case "TS7006":
		param, ok := ParamFromMessage(ev.Message)
		if !ok {
			return nil, false
		}
		return func(line string) (string, bool) {
			return RewriteImplicitAny(line, param)
		}, true
	case "TS2339":
		return RewritePropertyAssertion, true
	case "TS2345":
		return RewriteApplyAssertion, true
	}
	return nil, false
}

// importDepth counts the directories between the source root and the
// file. A file at <root>/app/src/Foo.tsx sits two levels down, so its
// relative import of a root-level sibling needs a "../../" prefix.
func (s *TypeErrorStrategy) importDepth(path string) int {
	rel, err := filepath.Rel(s.frontendRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(dir), "/"))
}

// resolveFile maps a compiler-reported path onto the working tree. The
// compiler reports paths relative to the app dir ("./src/Foo.tsx"), so
// each service directory is tried before falling back to the root.
func (s *TypeErrorStrategy) resolveFile(ev event.Event) (string, bool) {
	trimmed := strings.TrimPrefix(filepath.ToSlash(ev.File), "./")

	var candidates []string
	if dir, ok := s.serviceDirs[ev.Service]; ok {
		candidates = append(candidates, filepath.Join(s.frontendRoot, dir, trimmed))
	}
	candidates = append(candidates,
		filepath.Join(s.frontendRoot, trimmed),
		filepath.Join(filepath.Dir(s.frontendRoot), trimmed),
	)
	for _, c := range candidates {
		if s.editor.Exists(c) {
			return c, true
		}
	}
	return "", false
}
