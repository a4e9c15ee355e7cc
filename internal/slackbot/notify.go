package slackbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/oteiza/pm2watch/internal/metrics"
	"github.com/oteiza/pm2watch/internal/monitor"
)

// messagePoster is the slice of the Slack client the sink needs.
// Narrowed for testability.
type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Sink delivers change notifications to one Slack channel.
// Fire-and-forget: each delivery may fail independently, and a failure
// never affects the monitor loop.
type Sink struct {
	poster    messagePoster
	channel   string
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewSink creates a Sink posting to the given channel.
func NewSink(poster messagePoster, channel string, logger *slog.Logger, collector *metrics.Collector) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		poster:    poster,
		channel:   channel,
		logger:    logger,
		collector: collector,
	}
}

// NotifyChange renders the change and posts it. Implements
// monitor.Notifier.
func (s *Sink) NotifyChange(ctx context.Context, c monitor.Change) error {
	return s.Deliver(ctx, FormatChange(c))
}

// Deliver posts raw mrkdwn text to the sink's channel.
func (s *Sink) Deliver(ctx context.Context, text string) error {
	if s.channel == "" {
		return fmt.Errorf("slackbot: no notification channel configured")
	}

	_, _, err := s.poster.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
	)
	if s.collector != nil {
		s.collector.RecordNotification(err == nil)
	}
	if err != nil {
		return fmt.Errorf("slackbot: post to %s: %w", s.channel, err)
	}
	return nil
}
