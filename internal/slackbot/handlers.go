package slackbot

import (
	"context"
)

// handleStatus renders the current process table.
func (b *Bot) handleStatus(ctx context.Context, args []string) string {
	procs := b.pm2.List(ctx)
	return FormatProcessTable(procs)
}

// handleRestart restarts one process by name.
func (b *Bot) handleRestart(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: `/pm2 restart <name>`"
	}
	name := args[0]
	res := b.pm2.Restart(ctx, name)
	return FormatCommandResult(":arrows_counterclockwise: *Restart "+name+":*", res)
}

// handleLogs tails one process's logs.
func (b *Bot) handleLogs(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: `/pm2 logs <name> [lines]`"
	}
	name := args[0]
	lines := b.parseLines(args[1:])
	res := b.pm2.Logs(ctx, name, lines)
	return FormatCommandResult(":scroll: *Logs for "+name+":*", res)
}

// handleHelp lists the available subcommands.
func (b *Bot) handleHelp(ctx context.Context, args []string) string {
	return ":robot_face: *Available commands:*\n\n" +
		"`/pm2 status` - Show PM2 processes\n" +
		"`/pm2 restart <name>` - Restart a process\n" +
		"`/pm2 logs <name> [lines]` - Tail process logs\n" +
		"`/pm2 help` - Show this message\n"
}
