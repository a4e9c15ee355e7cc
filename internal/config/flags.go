package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// stringList is a custom flag type for repeatable flags.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// ParseFlags parses command-line flags and returns the merged Config.
// Returns an error if the config file is unreadable or malformed.
func ParseFlags() (*Config, error) {
	return parseFlags(flag.NewFlagSet("pm2watch", flag.ExitOnError), os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	defaults := DefaultConfig()

	var (
		configFile string
		channels   stringList
		allowed    stringList
	)
	flags := *defaults

	fs.StringVar(&configFile, "config", "", "Path to TOML config file")

	// Polling
	fs.DurationVar(&flags.Interval, "interval", defaults.Interval, "Poll interval")
	fs.DurationVar(&flags.CommandTimeout, "timeout", defaults.CommandTimeout, "Shell command timeout")

	// PM2
	fs.StringVar(&flags.PM2Binary, "pm2", defaults.PM2Binary, "Path to pm2 binary")
	fs.IntVar(&flags.LogLines, "log-lines", defaults.LogLines, "Default log tail length")

	// Slack
	fs.Var(&channels, "channel", "Notification channel ID (can repeat)")
	fs.Var(&allowed, "allow", "Allowed Slack user ID (can repeat)")
	fs.BoolVar(&flags.SlackDebug, "slack-debug", defaults.SlackDebug, "Verbose Slack client logging")

	// Observability
	fs.StringVar(&flags.MetricsAddr, "metrics", defaults.MetricsAddr, "Prometheus metrics address")
	fs.StringVar(&flags.LogFormat, "log-format", defaults.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&flags.Verbose, "v", defaults.Verbose, "Verbose logging")

	// Modes
	fs.BoolVar(&flags.TUIEnabled, "tui", defaults.TUIEnabled, "Run the local dashboard instead of the bot")
	fs.BoolVar(&flags.SkipPreflight, "skip-preflight", defaults.SkipPreflight, "Skip startup checks")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `pm2watch - PM2 fleet watchdog with Slack notifications

Usage:
  pm2watch [flags]

Config sources, later wins: defaults, -config file, environment
(SLACK_BOT_TOKEN, SLACK_APP_TOKEN, PM2WATCH_CHANNELS,
PM2WATCH_ALLOWED_USERS, PM2WATCH_INTERVAL, PM2WATCH_PM2_BIN), flags.

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Examples:
  # Watch the local fleet, notify #ops every 30s
  SLACK_BOT_TOKEN=xoxb-... SLACK_APP_TOKEN=xapp-... \
    pm2watch -interval 30s -channel C0123456789 -allow U0123456789

  # Local dashboard, no Slack needed
  pm2watch -tui

`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Merge: defaults -> file -> env -> explicitly set flags.
	cfg := DefaultConfig()
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	applyIf := func(name string, apply func()) {
		if set[name] {
			apply()
		}
	}
	applyIf("interval", func() { cfg.Interval = flags.Interval })
	applyIf("timeout", func() { cfg.CommandTimeout = flags.CommandTimeout })
	applyIf("pm2", func() { cfg.PM2Binary = flags.PM2Binary })
	applyIf("log-lines", func() { cfg.LogLines = flags.LogLines })
	applyIf("channel", func() { cfg.Channels = channels })
	applyIf("allow", func() { cfg.AllowedUsers = allowed })
	applyIf("slack-debug", func() { cfg.SlackDebug = flags.SlackDebug })
	applyIf("metrics", func() { cfg.MetricsAddr = flags.MetricsAddr })
	applyIf("log-format", func() { cfg.LogFormat = flags.LogFormat })
	applyIf("log-level", func() { cfg.LogLevel = flags.LogLevel })
	applyIf("v", func() { cfg.Verbose = flags.Verbose })
	applyIf("tui", func() { cfg.TUIEnabled = flags.TUIEnabled })
	applyIf("skip-preflight", func() { cfg.SkipPreflight = flags.SkipPreflight })

	return cfg, nil
}
