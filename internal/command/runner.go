// Package command provides shell command execution with timeouts.
//
// Every PM2 interaction in pm2watch goes through a Runner: the monitor's
// periodic `pm2 jlist` fetch, and the on-demand status/restart/logs
// handlers. A Runner never returns a Go error to its caller; spawn
// failures, nonzero exits, and timeouts are all folded into the Result so
// callers decide how to react.
package command

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds command execution when the caller does not
// override it. PM2 CLI calls normally finish in well under a second;
// a hung pm2 daemon must not wedge the poll loop.
const DefaultTimeout = 30 * time.Second

// Result captures the outcome of a single command execution.
type Result struct {
	// Output is the combined stdout/stderr, trimmed of trailing whitespace.
	// Best-effort on failure: whatever was captured before the command
	// died or the timeout fired.
	Output string

	// ExitCode is the process exit status. 124 for timeouts (matching
	// coreutils timeout(1)), 127 when the shell could not be spawned.
	ExitCode int

	// Succeeded is true only for a clean zero exit.
	Succeeded bool

	// Duration is wall-clock time from spawn to exit.
	Duration time.Duration
}

const (
	exitCodeTimeout    = 124
	exitCodeSpawnError = 127
)

// TimedOut reports whether the command was killed by its deadline.
func (r Result) TimedOut() bool {
	return r.ExitCode == exitCodeTimeout
}

// Runner executes a shell command and returns its combined output.
// Implementations must be safe for concurrent use.
type Runner interface {
	// Run executes cmd via the shell, honoring ctx for cancellation.
	Run(ctx context.Context, cmd string) Result

	// RunTimeout executes cmd with an explicit deadline overriding the
	// runner's default.
	RunTimeout(ctx context.Context, cmd string, timeout time.Duration) Result
}

// Callbacks contains optional hooks invoked by a ShellRunner.
type Callbacks struct {
	// OnComplete is called after every execution, success or not.
	// Used to feed metrics and latency tracking.
	OnComplete func(cmd string, res Result)
}

// ShellRunner runs commands through `sh -c`.
//
// Each execution gets its own process group so a timeout can kill the
// whole tree, not just the shell.
type ShellRunner struct {
	shell     string
	timeout   time.Duration
	logger    *slog.Logger
	callbacks Callbacks

	// Guards nothing shared between executions; only the callbacks
	// field against SetCallbacks racing an in-flight Run.
	mu sync.RWMutex
}

// Config holds configuration for creating a ShellRunner.
type Config struct {
	Shell     string        // defaults to "sh"
	Timeout   time.Duration // defaults to DefaultTimeout
	Logger    *slog.Logger
	Callbacks Callbacks
}

// NewShellRunner creates a ShellRunner with the given configuration.
func NewShellRunner(cfg Config) *ShellRunner {
	shell := cfg.Shell
	if shell == "" {
		shell = "sh"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellRunner{
		shell:     shell,
		timeout:   timeout,
		logger:    logger,
		callbacks: cfg.Callbacks,
	}
}

// SetCallbacks replaces the runner's callbacks. Must not be called
// concurrently with itself.
func (r *ShellRunner) SetCallbacks(cb Callbacks) {
	r.mu.Lock()
	r.callbacks = cb
	r.mu.Unlock()
}

// Run executes cmd with the runner's default timeout.
func (r *ShellRunner) Run(ctx context.Context, cmd string) Result {
	return r.RunTimeout(ctx, cmd, r.timeout)
}

// RunTimeout executes cmd with an explicit timeout.
func (r *ShellRunner) RunTimeout(ctx context.Context, cmd string, timeout time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, r.shell, "-c", cmd)

	// Kill the whole process group on cancellation so children spawned
	// by the shell do not outlive the deadline.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		if pgid, err := syscall.Getpgid(c.Process.Pid); err == nil {
			return syscall.Kill(-pgid, syscall.SIGKILL)
		}
		return c.Process.Kill()
	}

	start := time.Now()
	out, err := c.CombinedOutput()
	res := Result{
		Output:   strings.TrimSpace(string(out)),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
		res.Succeeded = true
	case runCtx.Err() == context.DeadlineExceeded:
		res.ExitCode = exitCodeTimeout
		r.logger.Warn("command_timeout",
			"command", cmd,
			"timeout", timeout.String(),
			"captured_bytes", len(res.Output),
		)
	default:
		res.ExitCode = extractExitCode(err)
		r.logger.Debug("command_failed",
			"command", cmd,
			"exit_code", res.ExitCode,
			"duration", res.Duration.String(),
		)
	}

	r.mu.RLock()
	onComplete := r.callbacks.OnComplete
	r.mu.RUnlock()
	if onComplete != nil {
		onComplete(cmd, res)
	}

	return res
}

// extractExitCode extracts the exit code from a CombinedOutput error.
func extractExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Spawn failure or unknown error shape.
	return exitCodeSpawnError
}
