package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/service"
)

// MinPollInterval is the fastest per-user polling cadence a user may set.
const MinPollInterval = 5

func (b *Bot) cmdStart(ctx context.Context, userID int64) error {
	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if !service.Entitled(prefs, time.Now()) {
		b.reply(userID, "⛔ You need an active subscription to run the watcher.\nUse /subscribe to pick a plan.")
		return nil
	}
	if prefs.Active {
		b.reply(userID, "Watcher is already running. Use /settings to review your filters.")
		return nil
	}

	prefs.Active = true
	if err := b.prefs.Save(ctx, prefs); err != nil {
		return err
	}
	b.reply(userID, "✅ Watcher started.\n\n"+settingsText(prefs))
	return nil
}

func (b *Bot) cmdStop(ctx context.Context, userID int64) error {
	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	prefs.Active = false
	prefs.Notified.Clear()
	if err := b.prefs.Save(ctx, prefs); err != nil {
		return err
	}
	b.reply(userID, "🛑 Watcher stopped. Alert history cleared; /start to resume.")
	return nil
}

func (b *Bot) cmdSettings(ctx context.Context, userID int64) error {
	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	b.reply(userID, settingsText(prefs))
	return nil
}

func (b *Bot) cmdSetProfit(ctx context.Context, userID int64, args string) error {
	value, ok := parseProfit(args)
	if !ok {
		b.reply(userID, "Usage: /setprofit <percent>\nPercent must be 0 or more. Example: /setprofit 10")
		return nil
	}

	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	prefs.MinProfitPercent = value
	if err := b.prefs.Save(ctx, prefs); err != nil {
		return err
	}
	b.reply(userID, fmt.Sprintf("📈 Minimum profit set to %d%%.", value))
	return nil
}

func (b *Bot) cmdSetInterval(ctx context.Context, userID int64, args string) error {
	value, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || value < MinPollInterval {
		b.reply(userID, fmt.Sprintf("Usage: /setinterval <seconds>\nMinimum is %d seconds.", MinPollInterval))
		return nil
	}

	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	prefs.PollInterval = value
	if err := b.prefs.Save(ctx, prefs); err != nil {
		return err
	}
	b.reply(userID, fmt.Sprintf("⏱ Polling interval set to %d seconds.", value))
	return nil
}

func (b *Bot) cmdSetPriceRange(ctx context.Context, userID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(userID, "Usage: /setpricerange <min> <max>\nExample: /setpricerange 5 25")
		return nil
	}
	minPrice, err1 := strconv.ParseFloat(fields[0], 64)
	maxPrice, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || minPrice < 0 || maxPrice < minPrice {
		b.reply(userID, "Price range must be two numbers with 0 <= min <= max.")
		return nil
	}

	prefs, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	prefs.PriceMin = minPrice
	prefs.PriceMax = maxPrice
	if err := b.prefs.Save(ctx, prefs); err != nil {
		return err
	}
	b.reply(userID, fmt.Sprintf("💰 Price range set to %.2f - %.2f TON.", minPrice, maxPrice))
	return nil
}

// cmdGive grants subscription days to a user by username. Admin only.
func (b *Bot) cmdGive(ctx context.Context, userID int64, args string) error {
	admin, release, err := b.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	isAdmin := admin.IsAdmin
	release()
	if !isAdmin {
		b.reply(userID, "This command is for administrators only.")
		return nil
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(userID, "Usage: /give <username> <days>")
		return nil
	}
	username := strings.TrimPrefix(fields[0], "@")
	days, err := strconv.Atoi(fields[1])
	if err != nil || days <= 0 {
		b.reply(userID, "Days must be a positive number.")
		return nil
	}

	targetID, end, err := b.subs.GrantByUsername(ctx, username, days)
	if errors.Is(err, domain.ErrNotFound) {
		b.reply(userID, fmt.Sprintf("@%s has never talked to this bot.", username))
		return nil
	}
	if err != nil {
		return err
	}

	b.reply(userID, fmt.Sprintf("✅ Granted %d day(s) to @%s (until %s).", days, username, end.Format("2006-01-02 15:04")))
	b.reply(targetID, fmt.Sprintf("🎁 You received %d day(s) of subscription (until %s).\nThe watcher starts on the next cycle; /settings to review your filters.", days, end.Format("2006-01-02 15:04")))
	return nil
}

// parseProfit validates a /setprofit argument. The threshold must be a whole
// non-negative percent; anything below zero would alert on losing listings.
func parseProfit(args string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

func settingsText(p *domain.UserPreferences) string {
	var b strings.Builder
	b.WriteString("⚙️ Your settings\n")
	fmt.Fprintf(&b, "Status: %s\n", statusText(p.Active))
	fmt.Fprintf(&b, "Minimum profit: %d%%\n", p.MinProfitPercent)
	fmt.Fprintf(&b, "Polling interval: %ds\n", p.PollInterval)
	fmt.Fprintf(&b, "Price range: %.2f - %.2f TON\n", p.PriceMin, p.PriceMax)
	b.WriteString("Subscription: ")
	switch {
	case p.IsAdmin:
		b.WriteString("admin")
	case p.SubscriptionEndsAt.IsZero():
		b.WriteString("none (/subscribe)")
	case p.SubscriptionEndsAt.Before(time.Now()):
		b.WriteString("expired (/subscribe)")
	default:
		b.WriteString("until " + p.SubscriptionEndsAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func statusText(active bool) string {
	if active {
		return "🟢 running"
	}
	return "🔴 stopped"
}
