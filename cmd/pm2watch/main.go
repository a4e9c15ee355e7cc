// Package main provides the pm2watch CLI entry point.
//
// pm2watch watches a PM2 process manager, notifies a Slack channel when
// process statuses change, and answers /pm2 slash commands (status,
// restart, logs) from an allow-listed set of users.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oteiza/pm2watch/internal/command"
	"github.com/oteiza/pm2watch/internal/config"
	"github.com/oteiza/pm2watch/internal/logging"
	"github.com/oteiza/pm2watch/internal/metrics"
	"github.com/oteiza/pm2watch/internal/monitor"
	"github.com/oteiza/pm2watch/internal/pm2"
	"github.com/oteiza/pm2watch/internal/preflight"
	"github.com/oteiza/pm2watch/internal/slackbot"
	"github.com/oteiza/pm2watch/internal/stats"
	"github.com/oteiza/pm2watch/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/pm2watch
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("pm2watch %s\n", version)
			return 0
		}
	}

	// Parse command-line flags (defaults → file → env → flags)
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Command latency percentiles feed both metrics and the TUI.
	commandLatency := stats.NewLatencyTracker()

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:        version,
		PM2Binary:      cfg.PM2Binary,
		PollInterval:   cfg.Interval,
		CommandLatency: commandLatency,
	})

	// Failing PM2 invocations get their output classified and logged
	// line by line; successful ones stay quiet.
	pm2Output := logging.NewOutputHandler("pm2", logger, cfg.Verbose)

	runner := command.NewShellRunner(command.Config{
		Timeout: cfg.CommandTimeout,
		Logger:  logger,
		Callbacks: command.Callbacks{
			OnComplete: func(cmd string, res command.Result) {
				// RecordCommand feeds the latency tracker; recording here
				// as well would double every sample.
				collector.RecordCommand(res.Duration, res.Succeeded, res.TimedOut())
				if !res.Succeeded {
					pm2Output.HandleOutput(res.Output)
				}
			},
		},
	})

	var emptyFetches atomic.Int64
	pm2Client := pm2.NewClient(pm2.Config{
		Runner: runner,
		Binary: cfg.PM2Binary,
		Logger: logger,
		Callbacks: pm2.Callbacks{
			OnEmptyFetch: func(reason string) {
				emptyFetches.Add(1)
				collector.RecordEmptyFetch(reason)
			},
		},
	})

	// Preflight checks
	if !cfg.SkipPreflight {
		result := preflight.RunAll(ctx, pm2Client)
		if !cfg.TUIEnabled {
			preflight.PrintResults(result)
		}
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "Preflight checks failed (use -skip-preflight to override)")
			return 1
		}
	}

	// Metrics server
	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Error("metrics_server_failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.TUIEnabled {
		return runTUI(cfg, pm2Client, &emptyFetches)
	}

	return runBot(ctx, cfg, pm2Client, collector, logger)
}

// runBot starts the Slack bot and the monitor loop, and blocks until
// the context is cancelled or either part fails.
func runBot(ctx context.Context, cfg *config.Config, pm2Client *pm2.Client, collector *metrics.Collector, logger *slog.Logger) int {
	logger.Info("starting",
		"version", version,
		"interval", cfg.Interval.String(),
		"pm2_binary", cfg.PM2Binary,
		"channels", len(cfg.Channels),
		"allowed_users", len(cfg.AllowedUsers),
		"metrics_addr", cfg.MetricsAddr,
	)
	printBanner(cfg)

	bot, err := slackbot.New(slackbot.Config{
		BotToken:     cfg.SlackBotToken,
		AppToken:     cfg.SlackAppToken,
		Debug:        cfg.SlackDebug,
		Channels:     cfg.Channels,
		AllowedUsers: cfg.AllowedUsers,
		LogLines:     cfg.LogLines,
		PM2:          pm2Client,
		Logger:       logger,
		Collector:    collector,
	})
	if err != nil {
		logger.Error("slackbot_create_failed", "error", err)
		return 1
	}

	mon := monitor.New(monitor.Config{
		Source:       pm2Client,
		Notifier:     bot.Sink(),
		Interval:     cfg.Interval,
		AudienceSize: len(cfg.Channels),
		Logger:       logger,
		Callbacks: monitor.Callbacks{
			OnCycle: collector.RecordCycle,
		},
	})

	monErr := make(chan error, 1)
	go func() {
		monErr <- mon.Run(ctx)
	}()

	botErr := make(chan error, 1)
	go func() {
		botErr <- bot.Run(ctx)
	}()

	select {
	case err := <-monErr:
		if err != nil {
			logger.Error("monitor_failed", "error", err)
			return 1
		}
	case err := <-botErr:
		if err != nil && ctx.Err() == nil {
			logger.Error("slackbot_failed", "error", err)
			return 1
		}
	}

	logger.Info("shutdown_complete")
	return 0
}

// runTUI runs the local dashboard. The TUI drives its own polls; the
// Slack bot and monitor loop are not started in this mode.
func runTUI(cfg *config.Config, pm2Client *pm2.Client, emptyFetches *atomic.Int64) int {
	model := tui.New(tui.Config{
		PM2Binary:    cfg.PM2Binary,
		MetricsAddr:  cfg.MetricsAddr,
		Interval:     cfg.Interval,
		Source:       pm2Client,
		EmptyFetches: emptyFetches.Load,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                            pm2watch                               ║")
	fmt.Println("║          PM2 Process Monitoring with Slack Notifications          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Interval:    %s\n", cfg.Interval)
	fmt.Printf("  PM2:         %s\n", cfg.PM2Binary)
	fmt.Printf("  Channels:    %d\n", len(cfg.Channels))
	fmt.Printf("  Users:       %d allow-listed\n", len(cfg.AllowedUsers))
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
