package cycle

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"fixloop/internal/logging"
)

// Sleeper pauses between cycles. Implementations return early when the
// context is canceled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerSleeper is a plain interruptible timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// LogWatchSleeper sleeps for the interval but wakes early when any of
// the watched build logs grows, so a rebuild that finishes ahead of the
// interval is scanned immediately instead of waiting out the timer.
type LogWatchSleeper struct {
	paths []string
}

func NewLogWatchSleeper(paths []string) *LogWatchSleeper {
	return &LogWatchSleeper{paths: paths}
}

func (s *LogWatchSleeper) Sleep(ctx context.Context, d time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Cycle("log watcher unavailable (%v), falling back to timer", err)
		TimerSleeper{}.Sleep(ctx, d)
		return
	}
	defer watcher.Close()

	watching := 0
	for _, p := range s.paths {
		// a log may not exist yet if its service never started
		if err := watcher.Add(p); err == nil {
			watching++
		}
	}
	if watching == 0 {
		TimerSleeper{}.Sleep(ctx, d)
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				TimerSleeper{}.Sleep(ctx, d)
				return
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				logging.Cycle("woken early: %s changed", ev.Name)
				return
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				TimerSleeper{}.Sleep(ctx, d)
				return
			}
			// watch errors are not worth aborting the pause over
		}
	}
}
