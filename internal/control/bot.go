package control

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Commander is what the bot needs from Service.
type Commander interface {
	TickNow(ctx context.Context) (string, error)
	Summary() string
	SetDestination(ctx context.Context, id string) error
	SkipSeed(ctx context.Context) error
}

// textCommander adapts Service to plain-text replies.
type textCommander struct{ svc *Service }

func (c textCommander) TickNow(ctx context.Context) (string, error) {
	rep, err := c.svc.TickNow(ctx)
	if err != nil {
		return "", err
	}
	return FormatReport(rep), nil
}

func (c textCommander) Summary() string { return FormatSummary(c.svc.Summary()) }

func (c textCommander) SetDestination(ctx context.Context, id string) error {
	return c.svc.SetDestination(ctx, id)
}

func (c textCommander) SkipSeed(ctx context.Context) error { return c.svc.SkipSeed(ctx) }

// replier sends a text reply to a chat.
type replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

type telegoReplier struct{ bot *telego.Bot }

func (r telegoReplier) Reply(ctx context.Context, chatID int64, text string) error {
	_, err := r.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

// Bot answers operator commands received over Telegram long polling.
type Bot struct {
	bot     *telego.Bot
	cmd     Commander
	reply   replier
	allowed map[int64]bool
	logger  *slog.Logger
}

// NewBot creates a Bot. When allowedChats is non-empty only those chats may
// issue commands.
func NewBot(bot *telego.Bot, svc *Service, allowedChats []int64, logger *slog.Logger) *Bot {
	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}
	return &Bot{
		bot:     bot,
		cmd:     textCommander{svc: svc},
		reply:   telegoReplier{bot: bot},
		allowed: allowed,
		logger:  logger.With(slog.String("component", "control_bot")),
	}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("control: start long polling: %w", err)
	}
	b.logger.InfoContext(ctx, "command bot started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if upd.Message == nil {
				continue
			}
			b.handle(ctx, upd.Message.Chat.ID, upd.Message.Text)
		}
	}
}

// handle runs one command and replies with its outcome. Errors are sent
// back to the chat rather than returned.
func (b *Bot) handle(ctx context.Context, chatID int64, text string) {
	name, arg := parseCommand(text)
	if name == "" {
		return
	}
	if len(b.allowed) > 0 && !b.allowed[chatID] {
		b.logger.WarnContext(ctx, "command from unauthorised chat",
			slog.Int64("chat_id", chatID), slog.String("command", name))
		return
	}

	reply := b.execute(ctx, chatID, name, arg)
	if reply == "" {
		return
	}
	if err := b.reply.Reply(ctx, chatID, reply); err != nil {
		b.logger.WarnContext(ctx, "reply failed",
			slog.String("command", name),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Bot) execute(ctx context.Context, chatID int64, name, arg string) string {
	switch name {
	case "tick":
		out, err := b.cmd.TickNow(ctx)
		if err != nil {
			return "tick failed: " + err.Error()
		}
		return "tick done: " + out
	case "status":
		return b.cmd.Summary()
	case "setchat":
		if arg == "" {
			return "usage: /setchat <chat id or @channel>"
		}
		if err := b.cmd.SetDestination(ctx, arg); err != nil {
			return "setchat failed: " + err.Error()
		}
		return "announcements will go to " + arg
	case "here":
		id := strconv.FormatInt(chatID, 10)
		if err := b.cmd.SetDestination(ctx, id); err != nil {
			return "here failed: " + err.Error()
		}
		return "announcements will go to this chat"
	case "skipseed":
		if err := b.cmd.SkipSeed(ctx); err != nil {
			return "skipseed failed: " + err.Error()
		}
		return "seeding skipped; the next tick announces new transitions"
	case "help", "start":
		return "commands: /tick /status /setchat <id> /here /skipseed"
	default:
		return ""
	}
}

// parseCommand splits "/cmd@botname arg" into ("cmd", "arg"). Non-command
// text yields an empty name.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, arg, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(arg)
}
