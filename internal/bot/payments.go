package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/ndmitriev/giftarb/internal/platform/cryptobot"
)

// Callback data and invoice payload prefixes for the purchase flow.
const (
	cbPlanPrefix   = "sub_"
	cbStarsPrefix  = "stars_"
	cbCryptoPrefix = "crypto_"
	payloadPrefix  = "plan:"
)

func (b *Bot) cmdSubscribe(userID int64) error {
	plans := b.subs.Plans()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s — %d ⭐ / $%.2f", p.Title, p.Stars, p.USD)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbPlanPrefix+p.Key),
		))
	}

	msg := tgbotapi.NewMessage(userID, "💳 Choose a subscription plan:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("bot: send plan keyboard: %w", err)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Warn("answer callback failed", "error", err)
	}

	userID := q.From.ID
	data := q.Data
	var err error
	switch {
	case strings.HasPrefix(data, cbPlanPrefix):
		err = b.sendPaymentChoice(userID, strings.TrimPrefix(data, cbPlanPrefix))
	case strings.HasPrefix(data, cbStarsPrefix):
		err = b.sendStarsInvoice(userID, strings.TrimPrefix(data, cbStarsPrefix))
	case strings.HasPrefix(data, cbCryptoPrefix):
		err = b.sendCryptoInvoice(ctx, userID, strings.TrimPrefix(data, cbCryptoPrefix))
	default:
		b.log.Warn("unknown callback", "data", data)
	}
	if err != nil {
		b.log.Error("callback failed", "data", data, "user_id", userID, "error", err)
		b.reply(userID, "Something went wrong, try again later.")
	}
}

func (b *Bot) sendPaymentChoice(userID int64, planKey string) error {
	plan, ok := b.subs.Plan(planKey)
	if !ok {
		return fmt.Errorf("bot: unknown plan %q", planKey)
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⭐ Telegram Stars (%d)", plan.Stars), cbStarsPrefix+plan.Key),
		),
	}
	if b.crypto != nil && b.crypto.Enabled() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("💎 Crypto ($%.2f)", plan.USD), cbCryptoPrefix+plan.Key),
		))
	}

	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("Plan: %s\nChoose a payment method:", plan.Title))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("bot: send payment keyboard: %w", err)
	}
	return nil
}

// sendStarsInvoice issues a Telegram Stars invoice. Stars invoices use the
// XTR currency with an empty provider token.
func (b *Bot) sendStarsInvoice(userID int64, planKey string) error {
	plan, ok := b.subs.Plan(planKey)
	if !ok {
		return fmt.Errorf("bot: unknown plan %q", planKey)
	}

	invoice := tgbotapi.NewInvoice(
		userID,
		"Gift watcher subscription",
		plan.Title,
		payloadPrefix+plan.Key,
		"",
		"",
		"XTR",
		[]tgbotapi.LabeledPrice{{Label: plan.Title, Amount: plan.Stars}},
	)
	if _, err := b.api.Request(invoice); err != nil {
		return fmt.Errorf("bot: send stars invoice: %w", err)
	}
	return nil
}

func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) {
	ok := strings.HasPrefix(q.InvoicePayload, payloadPrefix)
	if _, ok2 := b.subs.Plan(strings.TrimPrefix(q.InvoicePayload, payloadPrefix)); !ok2 {
		ok = false
	}

	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.ID,
		OK:                 ok,
	}
	if !ok {
		answer.ErrorMessage = "Unknown subscription plan."
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Warn("answer pre-checkout failed", "error", err)
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	planKey := strings.TrimPrefix(msg.SuccessfulPayment.InvoicePayload, payloadPrefix)

	end, err := b.subs.Extend(ctx, userID, planKey)
	if err != nil {
		b.log.Error("apply stars payment failed", "user_id", userID, "plan", planKey, "error", err)
		b.reply(userID, "Payment received but activation failed, contact support.")
		return
	}
	b.log.Info("stars payment applied", "user_id", userID, "plan", planKey)
	b.confirmSubscription(userID, end)
}

// sendCryptoInvoice creates a Crypto Pay invoice and watches it until it is
// paid, expires, or the watch window runs out.
func (b *Bot) sendCryptoInvoice(ctx context.Context, userID int64, planKey string) error {
	plan, ok := b.subs.Plan(planKey)
	if !ok {
		return fmt.Errorf("bot: unknown plan %q", planKey)
	}
	if b.crypto == nil || !b.crypto.Enabled() {
		b.reply(userID, "Crypto payments are not available right now.")
		return nil
	}

	inv, err := b.crypto.CreateInvoice(ctx, plan.USD, "Gift watcher: "+plan.Title, uuid.NewString())
	if err != nil {
		return err
	}

	b.reply(userID, fmt.Sprintf("💎 Pay $%.2f for %s:\n%s\n\nActivation is automatic after payment.", plan.USD, plan.Title, inv.PayURL))
	go b.watchCryptoInvoice(ctx, userID, plan.Key, inv.ID)
	return nil
}

func (b *Bot) watchCryptoInvoice(ctx context.Context, userID int64, planKey string, invoiceID int64) {
	ticker := time.NewTicker(b.cfg.CryptoPollInterval)
	defer ticker.Stop()
	deadline := time.After(b.cfg.CryptoPollTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			b.log.Info("crypto invoice watch expired", "invoice_id", invoiceID, "user_id", userID)
			return
		case <-ticker.C:
		}

		inv, err := b.crypto.GetInvoice(ctx, invoiceID)
		if err != nil {
			b.log.Warn("crypto invoice poll failed", "invoice_id", invoiceID, "error", err)
			continue
		}

		switch inv.Status {
		case cryptobot.StatusPaid:
			end, err := b.subs.Extend(ctx, userID, planKey)
			if err != nil {
				b.log.Error("apply crypto payment failed", "user_id", userID, "plan", planKey, "error", err)
				b.reply(userID, "Payment received but activation failed, contact support.")
				return
			}
			b.log.Info("crypto payment applied", "user_id", userID, "plan", planKey, "invoice_id", invoiceID)
			b.confirmSubscription(userID, end)
			return
		case cryptobot.StatusExpired:
			b.reply(userID, "⌛ The crypto invoice expired. Use /subscribe to create a new one.")
			return
		}
	}
}

func (b *Bot) confirmSubscription(userID int64, end time.Time) {
	b.reply(userID, fmt.Sprintf("✅ Subscription active until %s.\nThe watcher is running; /settings to review your filters.", end.Format("2006-01-02 15:04")))
}
