package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"fixloop/internal/config"
	"fixloop/internal/event"
	"fixloop/internal/source"
	"fixloop/internal/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.IntervalSeconds = 0
	cfg.MaxIterations = 10
	return cfg
}

// fakeAdapter replays one batch of candidates per cycle.
type fakeAdapter struct {
	name    string
	batches [][]event.Event
	calls   int
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Collect(ctx context.Context, cycle int) []event.Event {
	defer func() { a.calls++ }()
	if a.calls < len(a.batches) {
		return a.batches[a.calls]
	}
	if len(a.batches) > 0 {
		return a.batches[len(a.batches)-1] // keep reporting the last state
	}
	return nil
}

type panicAdapter struct{}

func (panicAdapter) Name() string { return "broken" }
func (panicAdapter) Collect(ctx context.Context, cycle int) []event.Event {
	panic("adapter exploded")
}

// fakeFixer marks every event it sees as fixed.
type fakeFixer struct {
	fixed    map[string]struct{}
	restarts []string
}

func newFakeFixer() *fakeFixer {
	return &fakeFixer{fixed: make(map[string]struct{})}
}

func (f *fakeFixer) Apply(ctx context.Context, events []event.Event) strategy.ApplyResult {
	var result strategy.ApplyResult
	for _, ev := range events {
		if _, done := f.fixed[ev.Fingerprint]; done {
			continue
		}
		f.fixed[ev.Fingerprint] = struct{}{}
		result.Applied++
		result.Outcomes = append(result.Outcomes, event.FixOutcome{
			Fingerprint: ev.Fingerprint, Applied: true, RequiresRestart: true,
		})
		result.RestartServices = append(result.RestartServices, ev.Service)
	}
	return result
}

func (f *fakeFixer) FixedCount() int { return len(f.fixed) }

type fakeHealth struct{ report source.HealthReport }

func (h fakeHealth) Check(ctx context.Context) source.HealthReport { return h.report }

func healthyReport() source.HealthReport {
	return source.HealthReport{Results: []source.ServiceHealth{
		{Name: "container", Healthy: true},
		{Name: "backend", Healthy: true},
	}}
}

func unhealthyReport() source.HealthReport {
	return source.HealthReport{Results: []source.ServiceHealth{
		{Name: "container", Healthy: true},
		{Name: "settings", Healthy: false, Detail: "not responding"},
	}}
}

type fakeRestarter struct{ restarted []string }

func (r *fakeRestarter) RestartAll(ctx context.Context, cfg *config.Config, names []string) []error {
	r.restarted = append(r.restarted, names...)
	return nil
}

type countingSleeper struct{ sleeps int }

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) { s.sleeps++ }

func newTestController(adapters []source.Adapter, fixer Fixer, health HealthChecker, restarter Restarter) (*Controller, *countingSleeper) {
	sleeper := &countingSleeper{}
	c := NewController(testConfig(), zap.NewNop().Sugar(), adapters, fixer, health, restarter, sleeper)
	return c, sleeper
}

func TestPreflightFailureIsFatal(t *testing.T) {
	adapter := &fakeAdapter{name: "buildlog", batches: [][]event.Event{{
		{Fingerprint: "missing:lodash", Kind: event.KindMissingModule, Service: "container"},
	}}}
	fixer := newFakeFixer()
	c, _ := newTestController([]source.Adapter{adapter}, fixer, fakeHealth{unhealthyReport()}, &fakeRestarter{})

	result, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDone, c.State())
	assert.Zero(t, result.Cycles, "loop must never start")
	assert.Zero(t, adapter.calls)
	assert.Equal(t, 1, result.ExitCode())
}

func TestStableAfterThreeQuietCycles(t *testing.T) {
	adapter := &fakeAdapter{name: "buildlog"} // never reports anything
	fixer := newFakeFixer()
	c, sleeper := newTestController([]source.Adapter{adapter}, fixer, fakeHealth{healthyReport()}, &fakeRestarter{})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Stable)
	assert.Equal(t, 3, result.Cycles, "exactly the stability threshold, not max iterations")
	assert.Equal(t, 2, sleeper.sleeps, "no sleep after the stable cycle")
	assert.Equal(t, 1, result.ExitCode(), "nothing fixed")
}

func TestFixResetsStabilityCounter(t *testing.T) {
	ev := func(fp string) event.Event {
		return event.Event{Fingerprint: fp, Kind: event.KindMissingModule, Service: "container"}
	}
	// quiet, quiet, one fix, then quiet until stable
	adapter := &fakeAdapter{name: "buildlog", batches: [][]event.Event{
		nil, nil, {ev("missing:lodash")}, nil, nil, nil,
	}}
	fixer := newFakeFixer()
	c, _ := newTestController([]source.Adapter{adapter}, fixer, fakeHealth{healthyReport()}, &fakeRestarter{})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, result.Cycles)
	assert.True(t, result.Stable)
	assert.Equal(t, 1, result.FixesApplied)
	assert.Zero(t, result.ExitCode())
}

func TestRepeatedFingerprintFixedOnce(t *testing.T) {
	ev := event.Event{Fingerprint: "missing:lodash", Kind: event.KindMissingModule, Service: "container"}
	// stale log keeps reporting the same condition every cycle
	adapter := &fakeAdapter{name: "buildlog", batches: [][]event.Event{{ev}}}
	fixer := newFakeFixer()
	restarter := &fakeRestarter{}
	c, _ := newTestController([]source.Adapter{adapter}, fixer, fakeHealth{healthyReport()}, restarter)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FixesApplied)
	assert.Equal(t, []string{"container"}, restarter.restarted, "exactly one restart")
	assert.Equal(t, 1, result.EventsSeen)
	assert.Zero(t, result.ExitCode())
}

func TestMaxIterationsBoundsTheLoop(t *testing.T) {
	// a new fingerprint every cycle keeps the counter from stabilizing
	adapter := &fakeAdapter{name: "runtime"}
	for i := 0; i < 20; i++ {
		adapter.batches = append(adapter.batches, []event.Event{{
			Fingerprint: event.RuntimeFingerprint(string(rune('a' + i))),
			Kind:        event.KindMissingModule,
			Service:     "container",
		}})
	}
	fixer := newFakeFixer()
	c, _ := newTestController([]source.Adapter{adapter}, fixer, fakeHealth{healthyReport()}, &fakeRestarter{})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, result.Cycles)
	assert.False(t, result.Stable)
	assert.Equal(t, 10, result.FixesApplied)
}

func TestAdapterPanicIsAbsorbed(t *testing.T) {
	good := &fakeAdapter{name: "buildlog", batches: [][]event.Event{{
		{Fingerprint: "missing:moment", Kind: event.KindMissingModule, Service: "analytics"},
	}}}
	fixer := newFakeFixer()
	c, _ := newTestController([]source.Adapter{panicAdapter{}, good}, fixer, fakeHealth{healthyReport()}, &fakeRestarter{})

	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixesApplied, "surviving adapter still contributes")
	assert.True(t, result.Stable)
}

func TestCancellationStopsBetweenCycles(t *testing.T) {
	adapter := &fakeAdapter{name: "runtime"}
	for i := 0; i < 20; i++ {
		adapter.batches = append(adapter.batches, []event.Event{{
			Fingerprint: event.RuntimeFingerprint(string(rune('a' + i))),
			Kind:        event.KindMissingModule,
			Service:     "container",
		}})
	}
	ctx, cancel := context.WithCancel(context.Background())
	fixer := newFakeFixer()
	sleeper := &cancelingSleeper{cancel: cancel}
	c := NewController(testConfig(), zap.NewNop().Sugar(),
		[]source.Adapter{adapter}, fixer, fakeHealth{healthyReport()}, &fakeRestarter{}, sleeper)

	result, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cycles, "canceled during the first sleep")
}

type cancelingSleeper struct{ cancel context.CancelFunc }

func (s *cancelingSleeper) Sleep(ctx context.Context, d time.Duration) { s.cancel() }
