// Package config provides configuration management for pm2watch.
//
// Sources are merged lowest to highest precedence: built-in defaults,
// optional TOML config file, environment variables, command-line flags.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration options for pm2watch.
type Config struct {
	// Polling
	Interval       time.Duration `json:"interval"`
	CommandTimeout time.Duration `json:"command_timeout"`

	// PM2
	PM2Binary string `json:"pm2_binary"`
	LogLines  int    `json:"log_lines"` // default tail length for /pm2 logs

	// Slack
	SlackBotToken string   `json:"-"` // secrets come from env, never the file
	SlackAppToken string   `json:"-"`
	Channels      []string `json:"channels"`      // notification audience
	AllowedUsers  []string `json:"allowed_users"` // slash-command allow-list
	SlackDebug    bool     `json:"slack_debug"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	LogFormat   string `json:"log_format"` // json, text
	LogLevel    string `json:"log_level"`
	Verbose     bool   `json:"verbose"`

	// Modes
	TUIEnabled    bool `json:"tui"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:       60 * time.Second,
		CommandTimeout: 30 * time.Second,

		PM2Binary: "pm2",
		LogLines:  30,

		MetricsAddr: "0.0.0.0:17092",
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// ApplyEnv overrides cfg from the environment. Variable names keep
// parity with the .env keys older deployments used.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

// applyEnv is the testable form taking a lookup function.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SLACK_BOT_TOKEN"); v != "" {
		c.SlackBotToken = v
	}
	if v := getenv("SLACK_APP_TOKEN"); v != "" {
		c.SlackAppToken = v
	}
	if v := getenv("PM2WATCH_CHANNELS"); v != "" {
		c.Channels = splitList(v)
	}
	if v := getenv("PM2WATCH_ALLOWED_USERS"); v != "" {
		c.AllowedUsers = splitList(v)
	}
	if v := getenv("PM2WATCH_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("PM2WATCH_PM2_BIN"); v != "" {
		c.PM2Binary = v
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
