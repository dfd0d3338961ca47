// Package engine runs the per-user polling cycles: fetching active auctions,
// scoring them against floor prices, and dispatching deduplicated alerts.
package engine

import (
	"context"
	"log/slog"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// Candidate is a listing that cleared a user's filters and profit threshold.
type Candidate struct {
	Listing domain.Listing
	Signal  domain.ProfitSignal
}

// Evaluator scores listings for one user. Checks are ordered by cost: the
// dedup set and price range are consulted before any floor lookup.
type Evaluator struct {
	floors domain.FloorSource
	log    *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(floors domain.FloorSource, log *slog.Logger) *Evaluator {
	return &Evaluator{
		floors: floors,
		log:    log.With("component", "evaluator"),
	}
}

// Evaluate returns the listings worth alerting for this user. Listings
// without an id, already notified this session, out of price range, without
// a known floor, or below the profit threshold are skipped. Floor lookup
// failures skip the listing only.
func (e *Evaluator) Evaluate(ctx context.Context, prefs *domain.UserPreferences, listings []domain.Listing) []Candidate {
	var out []Candidate
	for _, l := range listings {
		if l.ID == 0 {
			continue
		}
		if prefs.Notified.Has(l.ID) {
			continue
		}
		if !prefs.InRange(l.CurrentBid) {
			continue
		}

		quote, err := e.floors.FloorPrice(ctx, l.FloorKey())
		if err != nil {
			e.log.Warn("floor lookup failed", "key", l.FloorKey(), "error", err)
			continue
		}
		if !quote.Found {
			continue
		}

		signal := domain.ComputeProfit(l.CurrentBid, quote.Price)
		if signal.Percent < float64(prefs.MinProfitPercent) {
			continue
		}
		out = append(out, Candidate{Listing: l, Signal: signal})
	}
	return out
}
