package cycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerSleeperCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerSleeper{}.Sleep(ctx, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLogWatchSleeperWakesOnLogGrowth(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "container.log")
	require.NoError(t, os.WriteFile(logPath, []byte("build ok\n"), 0o644))

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		f.WriteString("ERROR in src/App.tsx\n")
		f.Close()
	}()

	start := time.Now()
	NewLogWatchSleeper([]string{logPath}).Sleep(context.Background(), 10*time.Second)
	assert.Less(t, time.Since(start), 5*time.Second, "write should cut the sleep short")
}

func TestLogWatchSleeperFallsBackWithoutLogs(t *testing.T) {
	sleeper := NewLogWatchSleeper([]string{filepath.Join(t.TempDir(), "absent.log")})

	start := time.Now()
	sleeper.Sleep(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLogWatchSleeperHonorsTimer(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "settings.log")
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	start := time.Now()
	NewLogWatchSleeper([]string{logPath}).Sleep(context.Background(), 30*time.Millisecond)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}
