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

// TsconfigStrategy flips "noEmit": true to false in the service's
// tsconfig.json so the compiler produces output again. Only the exact
// literal is touched; anything else in the file is left as written, and
// a file without the literal is declined, which also makes the fix
// idempotent.
type TsconfigStrategy struct {
	editor       *tactile.FileEditor
	frontendRoot string
	serviceDirs  map[string]string
}

func NewTsconfigStrategy(editor *tactile.FileEditor, projectRoot string, serviceDirs map[string]string) *TsconfigStrategy {
	return &TsconfigStrategy{
		editor:       editor,
		frontendRoot: filepath.Join(projectRoot, "frontend"),
		serviceDirs:  serviceDirs,
	}
}

func (s *TsconfigStrategy) Fix(ctx context.Context, ev event.Event) event.FixOutcome {
	dir, ok := s.serviceDirs[ev.Service]
	if !ok {
		return event.Declined(ev.Fingerprint, fmt.Sprintf("unknown service %q", ev.Service))
	}

	path := filepath.Join(s.frontendRoot, dir, "tsconfig.json")
	content, err := s.editor.ReadRaw(path)
	if err != nil {
		logging.FixWarn("read %s: %v", path, err)
		return event.Declined(ev.Fingerprint, err.Error())
	}

	const enabled = `"noEmit": true`
	if !strings.Contains(content, enabled) {
		return event.Declined(ev.Fingerprint, "noEmit already disabled or absent")
	}

	updated := strings.Replace(content, enabled, `"noEmit": false`, 1)
	if err := s.editor.WriteRaw(path, updated); err != nil {
		logging.FixWarn("write %s: %v", path, err)
		return event.Declined(ev.Fingerprint, err.Error())
	}

	logging.Fix("disabled noEmit in %s", path)
	return event.FixOutcome{
		Fingerprint:     ev.Fingerprint,
		Applied:         true,
		RequiresRestart: true,
		Detail:          "set noEmit to false in tsconfig.json",
	}
}
