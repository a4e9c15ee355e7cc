package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Interval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "interval",
			Message: "poll interval must be positive",
		})
	}
	if cfg.CommandTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "command_timeout",
			Message: "must be positive",
		})
	}
	if cfg.PM2Binary == "" {
		errs = append(errs, ValidationError{
			Field:   "pm2_binary",
			Message: "must not be empty",
		})
	}
	if cfg.LogLines < 1 {
		errs = append(errs, ValidationError{
			Field:   "log_lines",
			Message: "must be at least 1",
		})
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf(`must be "json" or "text" (got %q)`, cfg.LogFormat),
		})
	}

	// The bot mode needs Slack credentials and an audience. The local
	// dashboard needs neither.
	if !cfg.TUIEnabled {
		if cfg.SlackBotToken == "" {
			errs = append(errs, ValidationError{
				Field:   "slack_bot_token",
				Message: "SLACK_BOT_TOKEN is required (or run with -tui)",
			})
		}
		if cfg.SlackAppToken == "" {
			errs = append(errs, ValidationError{
				Field:   "slack_app_token",
				Message: "SLACK_APP_TOKEN is required for Socket Mode (or run with -tui)",
			})
		} else if !strings.HasPrefix(cfg.SlackAppToken, "xapp-") {
			errs = append(errs, ValidationError{
				Field:   "slack_app_token",
				Message: "must start with xapp-",
			})
		}
		// Empty audience prevents the monitor from starting; surface it
		// loudly here rather than silently running a mute watchdog.
		if len(cfg.Channels) == 0 {
			errs = append(errs, ValidationError{
				Field:   "channels",
				Message: "at least one notification channel is required",
			})
		}
	}

	return errors.Join(errs...)
}
