package strategy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fixloop/internal/event"
	"fixloop/internal/logging"
	"fixloop/internal/tactile"
)

// MissingModuleStrategy installs an unresolved npm package into the
// service that failed to resolve it. Installation is inherently
// idempotent: re-running npm install for a present package is a no-op.
type MissingModuleStrategy struct {
	exec         *tactile.Executor
	frontendRoot string
	serviceDirs  map[string]string
	timeout      time.Duration
}

func NewMissingModuleStrategy(exec *tactile.Executor, projectRoot string, serviceDirs map[string]string, timeout time.Duration) *MissingModuleStrategy {
	return &MissingModuleStrategy{
		exec:         exec,
		frontendRoot: filepath.Join(projectRoot, "frontend"),
		serviceDirs:  serviceDirs,
		timeout:      timeout,
	}
}

func (s *MissingModuleStrategy) Fix(ctx context.Context, ev event.Event) event.FixOutcome {
	module := strings.TrimPrefix(ev.Fingerprint, "missing:")
	if module == "" || module == ev.Fingerprint {
		return event.Declined(ev.Fingerprint, "no module name in fingerprint")
	}

	dir, ok := s.serviceDirs[ev.Service]
	if !ok {
		return event.Declined(ev.Fingerprint, fmt.Sprintf("unknown service %q", ev.Service))
	}
	appDir := filepath.Join(s.frontendRoot, dir)

	logging.Fix("installing %s for %s", module, ev.Service)
	result, err := s.exec.Run(ctx, tactile.Command{
		Binary:           "npm",
		Arguments:        []string{"install", module},
		WorkingDirectory: appDir,
		Timeout:          s.timeout,
	})
	if err != nil {
		logging.FixWarn("npm install %s: %v", module, err)
		return event.Declined(ev.Fingerprint, err.Error())
	}
	if !result.Succeeded() {
		logging.FixWarn("npm install %s exited %d", module, result.ExitCode)
		return event.Declined(ev.Fingerprint, fmt.Sprintf("npm install exited %d", result.ExitCode))
	}

	return event.FixOutcome{
		Fingerprint:     ev.Fingerprint,
		Applied:         true,
		RequiresRestart: true,
		Detail:          fmt.Sprintf("installed %s in %s", module, ev.Service),
	}
}
