package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors Config with string durations, which read better in
// TOML ("45s") than nanosecond integers.
type fileConfig struct {
	Interval       string   `toml:"interval"`
	CommandTimeout string   `toml:"command_timeout"`
	PM2Binary      string   `toml:"pm2_binary"`
	LogLines       int      `toml:"log_lines"`
	Channels       []string `toml:"channels"`
	AllowedUsers   []string `toml:"allowed_users"`
	SlackDebug     bool     `toml:"slack_debug"`
	MetricsAddr    string   `toml:"metrics_addr"`
	LogFormat      string   `toml:"log_format"`
	LogLevel       string   `toml:"log_level"`
	Verbose        bool     `toml:"verbose"`
}

// ApplyFile overlays cfg with values from a TOML file. Keys absent from
// the file leave the existing value untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	meta, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("config file %s: interval: %w", path, err)
		}
		c.Interval = d
	}
	if fc.CommandTimeout != "" {
		d, err := time.ParseDuration(fc.CommandTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: command_timeout: %w", path, err)
		}
		c.CommandTimeout = d
	}
	if fc.PM2Binary != "" {
		c.PM2Binary = fc.PM2Binary
	}
	if fc.LogLines > 0 {
		c.LogLines = fc.LogLines
	}
	if len(fc.Channels) > 0 {
		c.Channels = fc.Channels
	}
	if len(fc.AllowedUsers) > 0 {
		c.AllowedUsers = fc.AllowedUsers
	}
	if fc.SlackDebug {
		c.SlackDebug = true
	}
	if fc.MetricsAddr != "" {
		c.MetricsAddr = fc.MetricsAddr
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Verbose {
		c.Verbose = true
	}

	return nil
}
