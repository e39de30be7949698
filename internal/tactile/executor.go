// Package tactile is fixloop's only surface for touching the outside
// world: running commands, launching detached processes, and editing
// files. Strategies and the supervisor go through it rather than
// calling os/exec directly.
package tactile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"fixloop/internal/logging"
)

// Command describes one process invocation.
type Command struct {
	Binary           string
	Arguments        []string
	WorkingDirectory string
	Environment      []string
	Timeout          time.Duration
}

// CommandString returns a loggable rendering of the command.
func (c Command) CommandString() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Arguments, " "))
}

// ExecutionResult captures the outcome of a completed command.
type ExecutionResult struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	Combined   string
	Killed     bool
	KillReason string
	Duration   time.Duration
	Truncated  bool
}

// Succeeded reports a clean zero exit.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && !r.Killed && r.ExitCode == 0
}

// ExecutorConfig bounds executor behavior.
type ExecutorConfig struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout: 30 * time.Second,
		MaxOutputBytes: 1 << 20,
	}
}

// Executor runs commands directly on the host using os/exec.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates an executor with default config.
func NewExecutor() *Executor {
	return NewExecutorWithConfig(DefaultExecutorConfig())
}

// NewExecutorWithConfig creates an executor with custom config.
func NewExecutorWithConfig(config ExecutorConfig) *Executor {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = 1 << 20
	}
	return &Executor{config: config}
}

// Run executes a command to completion. A non-zero exit or a timeout is
// reported in the result, not as an error; the error return is reserved
// for infrastructure failures (binary missing, start failure).
func (e *Executor) Run(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	if len(cmd.Environment) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Environment...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	logging.FixDebug("exec: %s (dir=%s, timeout=%s)", cmd.CommandString(), cmd.WorkingDirectory, timeout)

	start := time.Now()
	err := execCmd.Run()

	result := &ExecutionResult{
		Duration:  time.Since(start),
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
	}
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case execCtx.Err() == context.DeadlineExceeded:
		result.Killed = true
		result.ExitCode = -1
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
	case execCtx.Err() == context.Canceled:
		result.Killed = true
		result.ExitCode = -1
		result.KillReason = "context canceled"
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("exec %s: %w", cmd.Binary, err)
		}
	}

	logging.FixDebug("exec done: %s -> exit=%d killed=%v (%s)",
		cmd.Binary, result.ExitCode, result.Killed, result.Duration)
	return result, nil
}

// StartDetached launches a long-running process with stdout and stderr
// redirected to logPath, truncating any previous content. The process
// is released rather than waited on; the caller observes it only
// through the log file it writes.
func (e *Executor) StartDetached(cmd Command, logPath string) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create log file %s: %w", logPath, err)
	}

	execCmd := exec.Command(cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	if len(cmd.Environment) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Environment...)
	}
	execCmd.Stdout = logFile
	execCmd.Stderr = logFile

	if err := execCmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start %s: %w", cmd.CommandString(), err)
	}

	// The file descriptor is inherited by the child; closing our copy
	// does not interrupt its writes.
	logFile.Close()

	pid := execCmd.Process.Pid
	go func() {
		// Reap the child so it does not linger as a zombie.
		_ = execCmd.Wait()
	}()

	logging.Supervisor("started detached: %s (pid=%d, log=%s)", cmd.CommandString(), pid, logPath)
	return nil
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
