package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// TelegramSender delivers messages through a telego bot to the message's
// destination chat, falling back to the configured default chat.
type TelegramSender struct {
	bot         *telego.Bot
	defaultChat string
}

// NewTelegramSender wraps an existing bot. The bot is shared with the
// command handler in the control package.
func NewTelegramSender(bot *telego.Bot, defaultChat string) *TelegramSender {
	return &TelegramSender{bot: bot, defaultChat: defaultChat}
}

// ParseChatID converts a numeric chat id or an @channel username into a
// telego.ChatID.
func ParseChatID(raw string) (telego.ChatID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return telego.ChatID{}, domain.ErrInvalidDestination
	}
	if strings.HasPrefix(raw, "@") {
		if len(raw) < 2 {
			return telego.ChatID{}, domain.ErrInvalidDestination
		}
		return tu.Username(raw), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("%w: %q", domain.ErrInvalidDestination, raw)
	}
	return tu.ID(id), nil
}

// Send posts the message with Markdown formatting. The title is rendered in
// bold above the body.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	dest := msg.Destination
	if dest == "" {
		dest = t.defaultChat
	}
	chatID, err := ParseChatID(dest)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	text := msg.Body
	if msg.Title != "" {
		text = fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)
	}

	params := tu.Message(chatID, text).WithParseMode(telego.ModeMarkdown)
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
