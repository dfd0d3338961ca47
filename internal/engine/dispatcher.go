package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// Dispatcher delivers candidate alerts and records them in the user's dedup
// set. A listing is marked notified only after a successful send, so a
// delivery failure leaves it eligible for the next cycle.
type Dispatcher struct {
	messenger domain.Messenger
	log       *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(messenger domain.Messenger, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		log:       log.With("component", "dispatcher"),
	}
}

// Dispatch sends an alert per candidate and returns how many were delivered.
// The dedup set is re-checked here: overlapping cycles for the same user must
// not produce duplicate alerts for one listing.
func (d *Dispatcher) Dispatch(ctx context.Context, prefs *domain.UserPreferences, candidates []Candidate) int {
	sent := 0
	for _, c := range candidates {
		if prefs.Notified.Has(c.Listing.ID) {
			continue
		}
		if err := d.messenger.Send(ctx, prefs.UserID, formatAlert(c)); err != nil {
			d.log.Warn("alert delivery failed",
				"user_id", prefs.UserID,
				"listing_id", c.Listing.ID,
				"error", err)
			continue
		}
		prefs.Notified.Add(c.Listing.ID)
		sent++
	}
	return sent
}

// formatAlert renders one alert message.
func formatAlert(c Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎁 %s (%s)\n", c.Listing.Name, c.Listing.Model)
	if c.Listing.Backdrop != "" {
		fmt.Fprintf(&b, "🎨 Backdrop: %s\n", c.Listing.Backdrop)
	}
	fmt.Fprintf(&b, "💰 Current bid: %.2f TON\n", c.Signal.Bid)
	fmt.Fprintf(&b, "📊 Floor price: %.2f TON\n", c.Signal.Floor)
	fmt.Fprintf(&b, "📈 Potential profit: %.2f TON (%.1f%%)\n", c.Signal.Profit, c.Signal.Percent)
	fmt.Fprintf(&b, "⏰ Auction ends: %s", c.Listing.EndTime)
	if c.Listing.DisplayNumber != 0 {
		fmt.Fprintf(&b, "\n🔗 https://t.me/tonnel_network_bot/gift?startapp=%d", c.Listing.DisplayNumber)
	} else {
		b.WriteString("\n🔗 Link unavailable")
	}
	return b.String()
}
