// Package bot implements the Telegram command surface: watcher controls,
// preference commands, and the subscription purchase flow.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/platform/cryptobot"
	"github.com/ndmitriev/giftarb/internal/service"
)

// Config tunes the bot.
type Config struct {
	// CryptoPollInterval is how often a pending crypto invoice is re-checked.
	CryptoPollInterval time.Duration
	// CryptoPollTimeout is how long a pending crypto invoice is watched
	// before being abandoned.
	CryptoPollTimeout time.Duration
}

// Bot consumes Telegram updates over long polling and drives the preference
// and subscription services.
type Bot struct {
	cfg      Config
	api      *tgbotapi.BotAPI
	prefs    *service.PrefService
	subs     *service.SubscriptionService
	registry domain.UsernameRegistry
	crypto   *cryptobot.Client
	log      *slog.Logger
}

// New creates a Bot. crypto may be nil when Crypto Pay is not configured; the
// purchase flow then offers Stars only.
func New(cfg Config, api *tgbotapi.BotAPI, prefs *service.PrefService, subs *service.SubscriptionService, registry domain.UsernameRegistry, crypto *cryptobot.Client, log *slog.Logger) *Bot {
	if cfg.CryptoPollInterval <= 0 {
		cfg.CryptoPollInterval = 60 * time.Second
	}
	if cfg.CryptoPollTimeout <= 0 {
		cfg.CryptoPollTimeout = time.Hour
	}
	return &Bot{
		cfg:      cfg,
		api:      api,
		prefs:    prefs,
		subs:     subs,
		registry: registry,
		crypto:   crypto,
		log:      log.With("component", "bot"),
	}
}

// Run consumes updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		b.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if msg.From.UserName != "" {
		if err := b.registry.SaveUsername(ctx, userID, msg.From.UserName); err != nil {
			b.log.Warn("save username failed", "user_id", userID, "error", err)
		}
	}

	var err error
	switch msg.Command() {
	case "start":
		err = b.cmdStart(ctx, userID)
	case "stop":
		err = b.cmdStop(ctx, userID)
	case "settings":
		err = b.cmdSettings(ctx, userID)
	case "setprofit":
		err = b.cmdSetProfit(ctx, userID, msg.CommandArguments())
	case "setinterval":
		err = b.cmdSetInterval(ctx, userID, msg.CommandArguments())
	case "setpricerange":
		err = b.cmdSetPriceRange(ctx, userID, msg.CommandArguments())
	case "subscribe":
		err = b.cmdSubscribe(userID)
	case "give":
		err = b.cmdGive(ctx, userID, msg.CommandArguments())
	default:
		b.reply(userID, "Unknown command. Available: /start /stop /settings /setprofit /setinterval /setpricerange /subscribe")
	}
	if err != nil {
		b.log.Error("command failed", "command", msg.Command(), "user_id", userID, "error", err)
		b.reply(userID, "Something went wrong, try again later.")
	}
}

// reply sends a best-effort text response. Delivery failures are logged only.
func (b *Bot) reply(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply failed", "user_id", userID, "error", err)
	}
}
