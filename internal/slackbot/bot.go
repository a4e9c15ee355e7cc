// Package slackbot implements the Slack transport for pm2watch.
//
// It uses the slack-go/slack library with Socket Mode for WebSocket-based
// communication: slash commands come in over the socket, notifications
// and replies go out through the Web API. Authorization is enforced here,
// at the dispatcher, so the underlying PM2 operations carry no notion of
// caller identity.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/oteiza/pm2watch/internal/metrics"
	"github.com/oteiza/pm2watch/internal/pm2"
)

// SlashCommand is the single slash command the bot registers.
// Subcommands (status, restart, logs, help) ride in the command text.
const SlashCommand = "/pm2"

// handlerFunc executes one subcommand and returns the reply text.
// args excludes the subcommand word itself.
type handlerFunc func(ctx context.Context, args []string) string

// Bot is the pm2watch Slack bot.
type Bot struct {
	client     *slack.Client
	socketMode *socketmode.Client
	pm2        *pm2.Client
	logger     *slog.Logger
	collector  *metrics.Collector

	channels     []string
	allowedUsers map[string]struct{}
	logLines     int

	handlers map[string]handlerFunc
}

// Config holds configuration for the Slack bot.
type Config struct {
	BotToken string // xoxb-... Slack bot token
	AppToken string // xapp-... Slack app-level token (for Socket Mode)
	Debug    bool

	Channels     []string // notification audience
	AllowedUsers []string // user IDs permitted to run slash commands
	LogLines     int      // default tail length for the logs subcommand

	PM2       *pm2.Client
	Logger    *slog.Logger
	Collector *metrics.Collector // optional
}

// New creates a new Slack bot.
func New(cfg Config) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}
	if cfg.PM2 == nil {
		return nil, fmt.Errorf("pm2 client is required")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.Debug),
	)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logLines := cfg.LogLines
	if logLines <= 0 {
		logLines = pm2.DefaultLogLines
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		allowed[u] = struct{}{}
	}

	b := &Bot{
		client:       client,
		socketMode:   socketClient,
		pm2:          cfg.PM2,
		logger:       logger,
		collector:    cfg.Collector,
		channels:     cfg.Channels,
		allowedUsers: allowed,
		logLines:     logLines,
	}
	b.handlers = map[string]handlerFunc{
		"status":  b.handleStatus,
		"restart": b.handleRestart,
		"logs":    b.handleLogs,
		"help":    b.handleHelp,
	}
	return b, nil
}

// Sink returns a notification sink posting to the bot's first channel.
func (b *Bot) Sink() *Sink {
	channel := ""
	if len(b.channels) > 0 {
		channel = b.channels[0]
	}
	return NewSink(b.client, channel, b.logger, b.collector)
}

// Run starts the bot event loop. Blocks until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		for evt := range b.socketMode.Events {
			b.handleEvent(ctx, evt)
		}
	}()

	return b.socketMode.RunContext(ctx)
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("slack_connecting")

	case socketmode.EventTypeConnected:
		b.logger.Info("slack_connected")

	case socketmode.EventTypeConnectionError:
		b.logger.Warn("slack_connection_error", "data", fmt.Sprintf("%v", evt.Data))

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		// Handlers shell out to pm2; run them off the event loop so a
		// slow command cannot stall socket handling.
		go b.dispatch(ctx, cmd)
	}
}

// dispatch authorizes and routes one slash command. The allow-list
// check lives here so handler funcs never see caller identity.
func (b *Bot) dispatch(ctx context.Context, cmd slack.SlashCommand) {
	if cmd.Command != SlashCommand {
		b.postEphemeral(cmd.ChannelID, cmd.UserID,
			fmt.Sprintf("Unknown command: %s", cmd.Command))
		return
	}

	if !b.authorized(cmd.UserID) {
		b.logger.Warn("slash_command_unauthorized",
			"user_id", cmd.UserID,
			"text", cmd.Text,
		)
		if b.collector != nil {
			b.collector.RecordUnauthorized()
		}
		b.postEphemeral(cmd.ChannelID, cmd.UserID,
			":no_entry: You are not authorized to use this bot.")
		return
	}

	sub, args := splitCommand(cmd.Text)
	handler, ok := b.handlers[sub]
	if !ok {
		handler = b.handlers["help"]
		sub = "help"
	}

	b.logger.Info("slash_command",
		"user_id", cmd.UserID,
		"subcommand", sub,
		"args", args,
	)
	if b.collector != nil {
		b.collector.RecordSlackCommand(sub)
	}

	b.postEphemeral(cmd.ChannelID, cmd.UserID, handler(ctx, args))
}

// authorized reports whether the user is on the allow-list. An empty
// allow-list authorizes nobody.
func (b *Bot) authorized(userID string) bool {
	_, ok := b.allowedUsers[userID]
	return ok
}

// splitCommand splits the slash command text into subcommand and args.
// Empty text maps to "status".
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "status", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (b *Bot) postEphemeral(channelID, userID, text string) {
	_, err := b.client.PostEphemeral(channelID, userID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		b.logger.Warn("slack_post_ephemeral_failed", "error", err)
	}
}

// parseLines parses an optional line-count argument, falling back to
// the bot's default.
func (b *Bot) parseLines(args []string) int {
	if len(args) == 0 {
		return b.logLines
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return b.logLines
	}
	return n
}
