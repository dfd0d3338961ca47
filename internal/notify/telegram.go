// Package notify delivers user-facing messages over the Telegram Bot API.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// TelegramMessenger sends plain-text messages to individual users through an
// established bot connection.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

// NewTelegramMessenger creates a TelegramMessenger.
func NewTelegramMessenger(bot *tgbotapi.BotAPI, log *slog.Logger) *TelegramMessenger {
	return &TelegramMessenger{
		bot: bot,
		log: log.With("component", "messenger"),
	}
}

// Send delivers one message to one user. Link previews are disabled so the
// auction deep link stays a compact line.
func (t *TelegramMessenger) Send(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send to %d: %w", userID, err)
	}
	t.log.Debug("message delivered", "user_id", userID)
	return nil
}

var _ domain.Messenger = (*TelegramMessenger)(nil)
