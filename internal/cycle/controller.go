// Package cycle drives the scan/classify/fix/restart loop. There is a
// single logical worker: adapters run sequentially, fixes apply one at
// a time, and the only suspension points are the inter-cycle sleep and
// the per-call timeouts inside adapters and the supervisor. The
// cross-cycle state (seen fingerprints, fixed fingerprints, stability
// counter) is owned here and mutated only between those points, so the
// loop needs no locks.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fixloop/internal/config"
	"fixloop/internal/event"
	"fixloop/internal/logging"
	"fixloop/internal/source"
	"fixloop/internal/strategy"
)

// State names the controller's phase.
type State string

const (
	StateInitialHealthCheck State = "INITIAL_HEALTH_CHECK"
	StateRunning            State = "RUNNING"
	StateStable             State = "STABLE"
	StateDone               State = "DONE"
)

// Fixer applies remediation to classified events.
type Fixer interface {
	Apply(ctx context.Context, events []event.Event) strategy.ApplyResult
	FixedCount() int
}

// HealthChecker gates the loop before the first cycle.
type HealthChecker interface {
	Check(ctx context.Context) source.HealthReport
}

// Restarter bounces the named services after fixes that need it.
type Restarter interface {
	RestartAll(ctx context.Context, cfg *config.Config, names []string) []error
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Cycles       int
	FixesApplied int
	EventsSeen   int
	Stable       bool
}

// ExitCode maps the run outcome onto the process exit status: success
// means at least one fix landed.
func (r Result) ExitCode() int {
	if r.FixesApplied > 0 {
		return 0
	}
	return 1
}

type Controller struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	adapters   []source.Adapter
	classifier *event.Classifier
	fixer      Fixer
	health     HealthChecker
	restarter  Restarter
	sleeper    Sleeper

	state State
	runID string
}

func NewController(
	cfg *config.Config,
	log *zap.SugaredLogger,
	adapters []source.Adapter,
	fixer Fixer,
	health HealthChecker,
	restarter Restarter,
	sleeper Sleeper,
) *Controller {
	return &Controller{
		cfg:        cfg,
		log:        log,
		adapters:   adapters,
		classifier: event.NewClassifier(),
		fixer:      fixer,
		health:     health,
		restarter:  restarter,
		sleeper:    sleeper,
		state:      StateInitialHealthCheck,
		runID:      uuid.NewString(),
	}
}

// State returns the controller's current phase.
func (c *Controller) State() State {
	return c.state
}

// Run executes the loop to completion. The returned error is non-nil
// only for the pre-flight health failure; everything after that point
// is absorbed cycle-locally.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	result := Result{RunID: c.runID}
	c.log.Infow("starting remediation run", "run_id", c.runID,
		"interval", c.cfg.Interval(), "max_iterations", c.cfg.MaxIterations)

	if err := c.preflight(ctx); err != nil {
		c.state = StateDone
		result.EventsSeen = c.classifier.SeenCount()
		return result, err
	}

	c.state = StateRunning
	stableCount := 0

	for iteration := 1; iteration <= c.cfg.MaxIterations; iteration++ {
		result.Cycles = iteration
		c.log.Infow("cycle start", "run_id", c.runID, "iteration", iteration)
		logging.Cycle("[%s] cycle %d begin", c.runID, iteration)

		applied := c.runCycle(ctx, iteration)
		result.FixesApplied = c.fixer.FixedCount()

		if applied > 0 {
			stableCount = 0
		} else {
			stableCount++
		}
		c.log.Infow("cycle done", "iteration", iteration,
			"fixes", applied, "stable_count", stableCount)
		logging.Cycle("[%s] cycle %d end: %d fixes, stable=%d", c.runID, iteration, applied, stableCount)

		// the fixed point: enough consecutive cycles with zero fixes
		// means there is nothing left to do
		if stableCount >= c.cfg.StabilityThreshold {
			c.state = StateStable
			c.log.Infow("stable, stopping early", "cycles", iteration)
			result.Stable = true
			break
		}
		if ctx.Err() != nil {
			break
		}
		if iteration < c.cfg.MaxIterations {
			c.sleeper.Sleep(ctx, c.cfg.Interval())
			if ctx.Err() != nil {
				break
			}
		}
	}

	c.state = StateDone
	result.EventsSeen = c.classifier.SeenCount()
	c.summarize(result)
	return result, nil
}

// preflight refuses to start against an unhealthy platform. This is
// the only fatal path.
func (c *Controller) preflight(ctx context.Context) error {
	report := c.health.Check(ctx)
	if report.AllHealthy() {
		c.log.Infow("pre-flight health check passed", "endpoints", len(report.Results))
		return nil
	}
	for _, svc := range report.Unhealthy() {
		c.log.Errorw("service unhealthy", "service", svc.Name, "detail", svc.Detail)
	}
	return fmt.Errorf("pre-flight health check failed: %d service(s) unhealthy", len(report.Unhealthy()))
}

// runCycle performs one scan/classify/fix/restart pass and returns the
// number of fixes applied in it.
func (c *Controller) runCycle(ctx context.Context, iteration int) int {
	var candidates []event.Event
	for _, adapter := range c.adapters {
		candidates = append(candidates, c.collect(ctx, adapter, iteration)...)
	}

	fresh := c.classifier.Classify(candidates, iteration)
	if len(fresh) > 0 {
		c.log.Infow("new events", "count", len(fresh), "candidates", len(candidates))
	}

	applyResult := c.fixer.Apply(ctx, fresh)
	for _, outcome := range applyResult.Outcomes {
		if outcome.Applied {
			c.log.Infow("fix applied", "fingerprint", outcome.Fingerprint, "detail", outcome.Detail)
		} else {
			c.log.Warnw("fix declined", "fingerprint", outcome.Fingerprint, "detail", outcome.Detail)
		}
	}

	// each service restarts at most once per cycle, however many fixes
	// targeted it
	for _, err := range c.restarter.RestartAll(ctx, c.cfg, applyResult.RestartServices) {
		c.log.Errorw("restart failed", "error", err)
	}

	return applyResult.Applied
}

// collect isolates one adapter invocation: a panicking adapter costs
// its own results for this cycle, never the loop.
func (c *Controller) collect(ctx context.Context, adapter source.Adapter, iteration int) (events []event.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("adapter panic", "adapter", adapter.Name(), "panic", r)
			events = nil
		}
	}()
	start := time.Now()
	events = adapter.Collect(ctx, iteration)
	logging.Cycle("adapter %s: %d candidates in %s", adapter.Name(), len(events), time.Since(start))
	return events
}

func (c *Controller) summarize(r Result) {
	c.log.Infow("run complete",
		"run_id", r.RunID,
		"cycles", r.Cycles,
		"fixes_applied", r.FixesApplied,
		"events_seen", r.EventsSeen,
		"stable", r.Stable,
	)
	switch {
	case r.FixesApplied > 0:
		c.log.Infof("applied %d fix(es) across %d cycle(s)", r.FixesApplied, r.Cycles)
	case r.Stable:
		c.log.Info("platform stable, nothing to do")
	default:
		c.log.Info("no fixes applied")
	}
}
