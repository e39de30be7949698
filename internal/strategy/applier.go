package strategy

import (
	"context"
	"fmt"
	"sort"

	"fixloop/internal/event"
	"fixloop/internal/logging"
)

// ApplyResult summarizes one remediation pass.
type ApplyResult struct {
	Outcomes []event.FixOutcome
	Applied  int
	// RestartServices names the services whose fixes only take effect
	// after a process restart.
	RestartServices []string
}

// Applier runs events through the registry one at a time, remembering
// which fingerprints have already been repaired so no event is ever
// fixed twice within a run.
type Applier struct {
	registry *Registry
	fixed    map[string]struct{}
}

func NewApplier(registry *Registry) *Applier {
	return &Applier{
		registry: registry,
		fixed:    make(map[string]struct{}),
	}
}

// Apply attempts to fix each event in order. Events whose fingerprint
// was already repaired are skipped; events with no registered strategy
// are surfaced in the log and left alone.
func (a *Applier) Apply(ctx context.Context, events []event.Event) ApplyResult {
	var result ApplyResult
	restarts := make(map[string]struct{})

	for _, ev := range events {
		if _, done := a.fixed[ev.Fingerprint]; done {
			logging.Fix("skipping %s: already fixed", ev.Fingerprint)
			continue
		}

		strat, ok := a.registry.Lookup(ev.Kind)
		if !ok {
			logging.FixWarn("no fix for %s event %s: %s", ev.Kind, ev.Fingerprint, ev.Message)
			continue
		}

		outcome := a.run(ctx, strat, ev)
		result.Outcomes = append(result.Outcomes, outcome)
		if !outcome.Applied {
			continue
		}

		a.fixed[ev.Fingerprint] = struct{}{}
		result.Applied++
		if outcome.RequiresRestart && ev.Service != "" {
			restarts[ev.Service] = struct{}{}
		}
	}

	for svc := range restarts {
		result.RestartServices = append(result.RestartServices, svc)
	}
	sort.Strings(result.RestartServices)
	return result
}

// run isolates a single strategy call so a panicking strategy costs
// one declined outcome instead of the whole loop.
func (a *Applier) run(ctx context.Context, strat Strategy, ev event.Event) (outcome event.FixOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.FixWarn("strategy panic on %s: %v", ev.Fingerprint, r)
			outcome = event.Declined(ev.Fingerprint, fmt.Sprintf("strategy panic: %v", r))
		}
	}()
	return strat.Fix(ctx, ev)
}

// IsFixed reports whether the fingerprint was repaired earlier in the
// run.
func (a *Applier) IsFixed(fingerprint string) bool {
	_, ok := a.fixed[fingerprint]
	return ok
}

// FixedCount returns how many distinct fingerprints have been repaired.
func (a *Applier) FixedCount() int {
	return len(a.fixed)
}
