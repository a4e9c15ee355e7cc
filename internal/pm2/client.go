package pm2

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/oteiza/pm2watch/internal/command"
	"github.com/oteiza/pm2watch/internal/monitor"
)

const (
	// DefaultLogLines is the tail length when the caller does not ask
	// for one.
	DefaultLogLines = 30

	// MaxLogLines caps a requested tail so a handler cannot drag an
	// entire log file through chat.
	MaxLogLines = 500
)

// validName matches process names safe to interpolate into a shell
// command line. PM2 itself accepts a wider alphabet; anything outside
// this set is rejected rather than quoted. A leading '-' is excluded
// so a name can never be parsed as a flag by the pm2 CLI.
var validName = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._-]*$`)

// Callbacks contains optional hooks invoked by a Client.
type Callbacks struct {
	// OnEmptyFetch is called whenever List degrades to an empty result
	// because of an execution or decode failure.
	OnEmptyFetch func(reason string)
}

// Client issues PM2 CLI commands through a command.Runner.
// Safe for concurrent use; it holds no mutable state.
type Client struct {
	runner    command.Runner
	binary    string
	logger    *slog.Logger
	callbacks Callbacks
}

// Config holds configuration for creating a Client.
type Config struct {
	Runner    command.Runner
	Binary    string // defaults to "pm2"
	Logger    *slog.Logger
	Callbacks Callbacks
}

// NewClient creates a PM2 client.
func NewClient(cfg Config) *Client {
	binary := cfg.Binary
	if binary == "" {
		binary = "pm2"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		runner:    cfg.Runner,
		binary:    binary,
		logger:    logger,
		callbacks: cfg.Callbacks,
	}
}

// List returns the current PM2 process list.
//
// Degrade-to-no-data policy: any execution or decode failure returns an
// empty slice, never an error. The monitor's diff then sees the same
// shape as "PM2 has zero processes"; the failure itself is logged and
// counted so operators can tell the two apart.
func (c *Client) List(ctx context.Context) []Process {
	res := c.runner.Run(ctx, c.binary+" jlist")
	if !res.Succeeded {
		c.degraded("jlist_failed", "exit_code", res.ExitCode)
		return nil
	}

	var records []jlistRecord
	if err := json.Unmarshal([]byte(res.Output), &records); err != nil {
		c.degraded("jlist_decode_failed", "error", err)
		return nil
	}

	now := time.Now()
	procs := make([]Process, 0, len(records))
	for _, rec := range records {
		if rec.Name == "" {
			continue
		}
		status := rec.Env.Status
		if status == "" {
			status = StatusUnknown
		}
		var uptime time.Duration
		if rec.Env.PMUptime > 0 {
			started := time.UnixMilli(rec.Env.PMUptime)
			if started.Before(now) {
				uptime = now.Sub(started)
			}
		}
		procs = append(procs, Process{
			Name:     rec.Name,
			ID:       rec.PMID,
			Status:   status,
			CPU:      rec.Monit.CPU,
			Memory:   rec.Monit.Memory,
			Restarts: rec.Env.RestartTime,
			Uptime:   uptime,
		})
	}
	return procs
}

// Snapshot returns the current name→status mapping for diffing.
// Later entries win on duplicate names; PM2 only produces duplicates for
// clustered processes, which share a status anyway.
func (c *Client) Snapshot(ctx context.Context) monitor.Snapshot {
	procs := c.List(ctx)
	snap := make(monitor.Snapshot, len(procs))
	for _, p := range procs {
		snap[p.Name] = p.Status
	}
	return snap
}

// Restart asks PM2 to restart the named process and returns the CLI
// output verbatim.
func (c *Client) Restart(ctx context.Context, name string) command.Result {
	if !validName.MatchString(name) {
		return invalidNameResult(name)
	}
	return c.runner.Run(ctx, fmt.Sprintf("%s restart %s", c.binary, name))
}

// Logs tails the named process's logs. lines is clamped to
// [1, MaxLogLines]; zero or negative selects DefaultLogLines.
func (c *Client) Logs(ctx context.Context, name string, lines int) command.Result {
	if !validName.MatchString(name) {
		return invalidNameResult(name)
	}
	if lines <= 0 {
		lines = DefaultLogLines
	}
	if lines > MaxLogLines {
		lines = MaxLogLines
	}
	return c.runner.Run(ctx,
		fmt.Sprintf("%s logs %s --lines %d --nostream", c.binary, name, lines))
}

// Ping checks that the PM2 daemon answers.
func (c *Client) Ping(ctx context.Context) bool {
	return c.runner.Run(ctx, c.binary+" ping").Succeeded
}

// Binary returns the configured PM2 binary path.
func (c *Client) Binary() string {
	return c.binary
}

func (c *Client) degraded(reason string, args ...any) {
	c.logger.Warn("pm2_fetch_degraded", append([]any{"reason", reason}, args...)...)
	if c.callbacks.OnEmptyFetch != nil {
		c.callbacks.OnEmptyFetch(reason)
	}
}

func invalidNameResult(name string) command.Result {
	return command.Result{
		Output:    fmt.Sprintf("invalid process name: %q", name),
		ExitCode:  2,
		Succeeded: false,
	}
}
