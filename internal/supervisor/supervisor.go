// Package supervisor restarts the dev-server processes that serve the
// platform's frontends. A restart is kill-then-relaunch: matching
// processes are terminated best-effort, and after a short grace period
// the service's start command is relaunched detached with its build
// log truncated, so the next scan reads only post-restart output.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"fixloop/internal/config"
	"fixloop/internal/logging"
	"fixloop/internal/tactile"
)

type Supervisor struct {
	exec        *tactile.Executor
	projectRoot string
	grace       time.Duration
}

func New(exec *tactile.Executor, projectRoot string, grace time.Duration) *Supervisor {
	return &Supervisor{exec: exec, projectRoot: projectRoot, grace: grace}
}

// Restart bounces one service. Kill failures are ignored: the process
// may have already crashed, which is exactly when a restart is most
// needed. Only a failed relaunch is an error.
func (s *Supervisor) Restart(ctx context.Context, svc config.Service) error {
	logging.Supervisor("restarting %s", svc.Name)

	// pkill exits 1 when nothing matched; either way the relaunch
	// proceeds.
	if _, err := s.exec.Run(ctx, tactile.Command{
		Binary:    "pkill",
		Arguments: []string{"-f", svc.Pattern()},
		Timeout:   10 * time.Second,
	}); err != nil {
		logging.SupervisorError("pkill %s: %v", svc.Pattern(), err)
	}

	select {
	case <-time.After(s.grace):
	case <-ctx.Done():
		return ctx.Err()
	}

	command := svc.Command()
	cmd := tactile.Command{
		Binary:           command[0],
		Arguments:        command[1:],
		WorkingDirectory: svc.AppDir(s.projectRoot),
	}
	if err := s.exec.StartDetached(cmd, svc.LogFile(s.projectRoot)); err != nil {
		logging.SupervisorError("relaunch %s: %v", svc.Name, err)
		return fmt.Errorf("restart %s: %w", svc.Name, err)
	}

	logging.Supervisor("%s relaunched, log truncated", svc.Name)
	return nil
}

// RestartAll bounces the named services in order, one at a time.
// Restarts are deliberately sequential: bouncing several webpack dev
// servers at once starves the machine the platform is demoed on.
func (s *Supervisor) RestartAll(ctx context.Context, cfg *config.Config, names []string) []error {
	var errs []error
	for _, name := range names {
		svc, ok := cfg.ServiceByName(name)
		if !ok {
			logging.SupervisorError("unknown service %q", name)
			errs = append(errs, fmt.Errorf("unknown service %q", name))
			continue
		}
		if err := s.Restart(ctx, svc); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
