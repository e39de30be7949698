//go:build !windows

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixloop/internal/config"
	"fixloop/internal/tactile"
)

func testService(t *testing.T, root string) config.Service {
	t.Helper()
	svc := config.Service{
		Name:           "container",
		Dir:            "container",
		ProcessPattern: "fixloop-test-pattern-that-matches-nothing",
		StartCommand:   []string{"true"},
	}
	require.NoError(t, os.MkdirAll(svc.AppDir(root), 0o755))
	return svc
}

func TestRestartTruncatesLogAndRelaunches(t *testing.T) {
	root := t.TempDir()
	svc := testService(t, root)

	logPath := svc.LogFile(root)
	require.NoError(t, os.WriteFile(logPath, []byte("stale build output\n"), 0o644))

	sup := New(tactile.NewExecutor(), root, 10*time.Millisecond)
	require.NoError(t, sup.Restart(context.Background(), svc))

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Empty(t, string(content), "relaunch should truncate the build log")
}

func TestRestartSurvivesNoMatchingProcess(t *testing.T) {
	root := t.TempDir()
	svc := testService(t, root)

	sup := New(tactile.NewExecutor(), root, time.Millisecond)
	assert.NoError(t, sup.Restart(context.Background(), svc))
}

func TestRestartFailsWhenRelaunchImpossible(t *testing.T) {
	root := t.TempDir()
	svc := testService(t, root)
	svc.StartCommand = []string{filepath.Join(root, "no-such-binary")}

	sup := New(tactile.NewExecutor(), root, time.Millisecond)
	assert.Error(t, sup.Restart(context.Background(), svc))
}

func TestRestartHonorsContextDuringGrace(t *testing.T) {
	root := t.TempDir()
	svc := testService(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sup := New(tactile.NewExecutor(), root, time.Hour)
	err := sup.Restart(ctx, svc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestartAllReportsUnknownService(t *testing.T) {
	root := t.TempDir()
	svc := testService(t, root)
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = root
	cfg.Services = []config.Service{svc}

	sup := New(tactile.NewExecutor(), root, time.Millisecond)
	errs := sup.RestartAll(context.Background(), cfg, []string{"container", "ghost"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ghost")
}
