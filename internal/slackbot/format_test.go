package slackbot

import (
	"strings"
	"testing"
	"time"

	"github.com/oteiza/pm2watch/internal/command"
	"github.com/oteiza/pm2watch/internal/monitor"
	"github.com/oteiza/pm2watch/internal/pm2"
)

// =============================================================================
// FormatChange
// =============================================================================

func TestFormatChange(t *testing.T) {
	tests := []struct {
		name     string
		change   monitor.Change
		wantSubs []string
	}{
		{
			name:     "transition",
			change:   monitor.Change{Kind: monitor.ChangeTransition, Name: "api", Old: "online", New: "errored"},
			wantSubs: []string{"api", "`online`", "`errored`", ":warning:"},
		},
		{
			name:     "removed keeps last known label",
			change:   monitor.Change{Kind: monitor.ChangeRemoved, Name: "worker", Old: "online"},
			wantSubs: []string{"`worker`", "removed", "`online`"},
		},
		{
			name:     "added",
			change:   monitor.Change{Kind: monitor.ChangeAdded, Name: "cron", New: "launching"},
			wantSubs: []string{"`cron`", "New process", "`launching`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatChange(tt.change)
			for _, sub := range tt.wantSubs {
				if !strings.Contains(got, sub) {
					t.Errorf("FormatChange = %q, missing %q", got, sub)
				}
			}
		})
	}
}

// =============================================================================
// FormatProcessTable
// =============================================================================

func TestFormatProcessTable(t *testing.T) {
	procs := []pm2.Process{
		{Name: "api", ID: 0, Status: "online", CPU: 2.5, Memory: 50 << 20, Restarts: 3, Uptime: 36 * time.Hour},
		{Name: "worker", ID: 1, Status: "errored", CPU: 0, Memory: 0, Restarts: 15},
	}

	got := FormatProcessTable(procs)

	for _, sub := range []string{"api", "worker", "online", "errored", "50.0MB", "```"} {
		if !strings.Contains(got, sub) {
			t.Errorf("table missing %q:\n%s", sub, got)
		}
	}
}

func TestFormatProcessTable_Empty(t *testing.T) {
	got := FormatProcessTable(nil)
	if !strings.Contains(got, "no processes") {
		t.Errorf("empty table = %q", got)
	}
	if strings.Contains(got, "```") {
		t.Error("empty table should not contain a code block")
	}
}

// =============================================================================
// FormatCommandResult
// =============================================================================

func TestFormatCommandResult(t *testing.T) {
	res := command.Result{Output: "[PM2] restarted api", Succeeded: true}
	got := FormatCommandResult("*Restart api:*", res)

	if !strings.Contains(got, "[PM2] restarted api") {
		t.Errorf("result missing output: %q", got)
	}
	if strings.Contains(got, "failed") {
		t.Errorf("successful result labelled as failed: %q", got)
	}
}

func TestFormatCommandResult_Failure(t *testing.T) {
	res := command.Result{Output: "Process api not found", ExitCode: 1}
	got := FormatCommandResult("*Restart api:*", res)

	if !strings.Contains(got, "exit 1") {
		t.Errorf("failed result missing exit code: %q", got)
	}
	if !strings.Contains(got, "Process api not found") {
		t.Errorf("failed result missing captured output: %q", got)
	}
}

func TestFormatCommandResult_EmptyAndLong(t *testing.T) {
	if got := FormatCommandResult("t", command.Result{Succeeded: true}); !strings.Contains(got, "(no output)") {
		t.Errorf("empty output = %q", got)
	}

	long := command.Result{Output: strings.Repeat("x", maxMessageLength+500), Succeeded: true}
	got := FormatCommandResult("t", long)
	if !strings.Contains(got, "...(truncated)") {
		t.Error("long output not truncated")
	}
}

// =============================================================================
// Helpers
// =============================================================================

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0B"},
		{512, "512B"},
		{2048, "2.0KB"},
		{50 << 20, "50.0MB"},
		{3 << 30, "3.0GB"},
	}

	for _, tt := range tests {
		if got := formatMemory(tt.bytes); got != tt.want {
			t.Errorf("formatMemory(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{45 * time.Second, "45s"},
		{3*time.Minute + 12*time.Second, "3m12s"},
		{4*time.Hour + 5*time.Minute, "4h05m"},
		{51 * time.Hour, "2d3h"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 20, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-process-name", 10, "a-very-..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.s, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}
