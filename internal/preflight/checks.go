// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oteiza/pm2watch/internal/pm2"
)

// checkTimeout bounds each individual check. PM2's daemon auto-spawns
// on first contact, which can take a few seconds on a cold host.
const checkTimeout = 10 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, client *pm2.Client) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	shCheck := checkShell()
	result.Checks = append(result.Checks, shCheck)
	if !shCheck.Passed {
		result.Passed = false
	}

	binCheck := checkPM2Binary(client.Binary())
	result.Checks = append(result.Checks, binCheck)
	if !binCheck.Passed {
		result.Passed = false
	}

	// Daemon check only makes sense when the binary resolved.
	if binCheck.Passed {
		pingCheck := checkDaemon(ctx, client)
		result.Checks = append(result.Checks, pingCheck)
		// Warning only: the daemon may still come up later, and the
		// monitor degrades to empty snapshots until it does.
	}

	return result
}

// checkShell verifies /bin/sh is available; every PM2 invocation runs
// through it.
func checkShell() Check {
	path, err := exec.LookPath("sh")
	if err != nil {
		return Check{
			Name:    "shell",
			Passed:  false,
			Message: fmt.Sprintf("sh not found: %v", err),
		}
	}
	return Check{
		Name:    "shell",
		Passed:  true,
		Message: "found at " + path,
	}
}

// checkPM2Binary verifies the PM2 CLI is available and working.
func checkPM2Binary(binary string) Check {
	cmd := exec.Command(binary, "--version")
	output, err := cmd.Output()
	if err != nil {
		return Check{
			Name:    "pm2_binary",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", binary, err),
		}
	}

	version := strings.TrimSpace(string(output))
	if version == "" {
		version = "unknown"
	}
	return Check{
		Name:    "pm2_binary",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", binary, version),
	}
}

// checkDaemon verifies the PM2 daemon answers a ping.
func checkDaemon(ctx context.Context, client *pm2.Client) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if !client.Ping(ctx) {
		return Check{
			Name:    "pm2_daemon",
			Passed:  true,
			Warning: true,
			Message: "ping failed (daemon not running yet?)",
		}
	}
	return Check{
		Name:    "pm2_daemon",
		Passed:  true,
		Message: "pong",
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "shell":
		return "install a POSIX shell (busybox sh is enough)"
	case "pm2_binary":
		return "npm install -g pm2 (or set -pm2 / PM2WATCH_PM2_BIN)"
	default:
		return "see documentation"
	}
}
