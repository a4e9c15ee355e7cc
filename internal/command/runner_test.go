package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testRunner(t *testing.T) *ShellRunner {
	t.Helper()
	return NewShellRunner(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// =============================================================================
// Table-Driven Tests: Run
// =============================================================================

func TestShellRunner_Run(t *testing.T) {
	tests := []struct {
		name          string
		cmd           string
		wantSucceeded bool
		wantExitCode  int
		wantOutput    string
	}{
		{
			name:          "clean exit",
			cmd:           "echo hello",
			wantSucceeded: true,
			wantExitCode:  0,
			wantOutput:    "hello",
		},
		{
			name:          "nonzero exit keeps output",
			cmd:           "echo partial; exit 3",
			wantSucceeded: false,
			wantExitCode:  3,
			wantOutput:    "partial",
		},
		{
			name:          "stderr is merged",
			cmd:           "echo oops 1>&2; exit 1",
			wantSucceeded: false,
			wantExitCode:  1,
			wantOutput:    "oops",
		},
		{
			name:          "missing binary",
			cmd:           "definitely-not-a-real-binary-pm2watch",
			wantSucceeded: false,
			wantExitCode:  127,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testRunner(t).Run(context.Background(), tt.cmd)

			if res.Succeeded != tt.wantSucceeded {
				t.Errorf("Succeeded = %v, want %v", res.Succeeded, tt.wantSucceeded)
			}
			if res.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExitCode)
			}
			if tt.wantOutput != "" && res.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", res.Output, tt.wantOutput)
			}
			if res.Duration <= 0 {
				t.Errorf("Duration = %v, want > 0", res.Duration)
			}
		})
	}
}

// =============================================================================
// Timeout Behavior
// =============================================================================

func TestShellRunner_Timeout(t *testing.T) {
	r := testRunner(t)

	start := time.Now()
	res := r.RunTimeout(context.Background(), "echo before; sleep 30", 200*time.Millisecond)
	elapsed := time.Since(start)

	if res.Succeeded {
		t.Error("Succeeded = true, want false for timed-out command")
	}
	if res.ExitCode != exitCodeTimeout {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, exitCodeTimeout)
	}
	if !res.TimedOut() {
		t.Error("TimedOut() = false, want true")
	}
	// Bounded grace period: the process group is SIGKILLed, so we should
	// return well before the sleep would finish.
	if elapsed > 5*time.Second {
		t.Errorf("returned after %v, want well under 5s", elapsed)
	}
	if !strings.Contains(res.Output, "before") {
		t.Errorf("Output = %q, want captured pre-timeout output", res.Output)
	}
}

func TestShellRunner_ContextCancelled(t *testing.T) {
	r := testRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := r.Run(ctx, "sleep 30")
	if res.Succeeded {
		t.Error("Succeeded = true, want false after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("returned after %v, want prompt exit on cancel", elapsed)
	}
}

// =============================================================================
// Callbacks
// =============================================================================

func TestShellRunner_OnComplete(t *testing.T) {
	var gotCmd string
	var gotRes Result

	r := NewShellRunner(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Callbacks: Callbacks{
			OnComplete: func(cmd string, res Result) {
				gotCmd = cmd
				gotRes = res
			},
		},
	})

	r.Run(context.Background(), "exit 7")

	if gotCmd != "exit 7" {
		t.Errorf("callback cmd = %q, want %q", gotCmd, "exit 7")
	}
	if gotRes.ExitCode != 7 {
		t.Errorf("callback ExitCode = %d, want 7", gotRes.ExitCode)
	}
	if gotRes.Succeeded {
		t.Error("callback Succeeded = true, want false")
	}
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewShellRunner_Defaults(t *testing.T) {
	r := NewShellRunner(Config{})

	if r.shell != "sh" {
		t.Errorf("shell = %q, want sh", r.shell)
	}
	if r.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", r.timeout, DefaultTimeout)
	}
	if r.logger == nil {
		t.Error("logger is nil")
	}
}
