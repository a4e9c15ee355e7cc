package slackbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/oteiza/pm2watch/internal/command"
	"github.com/oteiza/pm2watch/internal/monitor"
	"github.com/oteiza/pm2watch/internal/pm2"
)

// maxMessageLength bounds rendered messages; Slack rejects messages
// over 40000 characters and truncates display well before that.
const maxMessageLength = 12000

// FormatChange renders one change event as Slack mrkdwn.
func FormatChange(c monitor.Change) string {
	switch c.Kind {
	case monitor.ChangeTransition:
		return fmt.Sprintf(":warning: *Status change for %s:*\n`%s` → `%s`", c.Name, c.Old, c.New)
	case monitor.ChangeRemoved:
		return fmt.Sprintf(":octagonal_sign: *Process removed:* `%s` (was `%s`)", c.Name, c.Old)
	case monitor.ChangeAdded:
		return fmt.Sprintf(":large_green_circle: *New process detected:* `%s` (`%s`)", c.Name, c.New)
	default:
		return fmt.Sprintf("*%s*", c.Name)
	}
}

// FormatProcessTable renders the process list as a fixed-width table in
// a code block.
func FormatProcessTable(procs []pm2.Process) string {
	if len(procs) == 0 {
		return ":bar_chart: *PM2 STATUS:* no processes (or PM2 unreachable)"
	}

	var sb strings.Builder
	sb.WriteString(":bar_chart: *PM2 STATUS:*\n```")
	fmt.Fprintf(&sb, "%-4s %-20s %-10s %6s %9s %8s %9s\n",
		"id", "name", "status", "cpu", "mem", "restart", "uptime")
	for _, p := range procs {
		fmt.Fprintf(&sb, "%-4d %-20s %-10s %5.1f%% %9s %8d %9s\n",
			p.ID, truncate(p.Name, 20), p.Status, p.CPU,
			formatMemory(p.Memory), p.Restarts, formatUptime(p.Uptime))
	}
	sb.WriteString("```")
	return sb.String()
}

// FormatCommandResult renders a command result under a title. Failed
// commands are labelled rather than hidden.
func FormatCommandResult(title string, res command.Result) string {
	out := res.Output
	if out == "" {
		out = "(no output)"
	}
	if len(out) > maxMessageLength {
		out = out[:maxMessageLength] + "\n...(truncated)"
	}

	msg := title + "\n```" + out + "```"
	if !res.Succeeded {
		msg += fmt.Sprintf("\n:x: command failed (exit %d)", res.ExitCode)
	}
	return msg
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatMemory renders bytes human-readably.
func formatMemory(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// formatUptime renders a duration compactly (2d3h, 4h05m, 3m12s, 45s).
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	switch {
	case d >= 24*time.Hour:
		days := int(d.Hours()) / 24
		hours := int(d.Hours()) % 24
		return fmt.Sprintf("%dd%dh", days, hours)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
