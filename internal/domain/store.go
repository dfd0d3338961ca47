package domain

import (
	"context"
	"time"
)

// PreferenceRecord is the durable shape of user preferences. The session-only
// dedup set is deliberately not part of it.
type PreferenceRecord struct {
	UserID           int64
	MinProfitPercent int
	PollInterval     int
	PriceMin         float64
	PriceMax         float64
	Active           bool
}

// PreferenceStore persists per-user watcher preferences.
type PreferenceStore interface {
	// Get returns the stored preferences for a user, creating and persisting
	// a default row when none exists yet.
	Get(ctx context.Context, userID int64) (PreferenceRecord, error)
	Put(ctx context.Context, rec PreferenceRecord) error
	UserIDs(ctx context.Context) ([]int64, error)
}

// SubscriptionLedger persists subscription expiry and admin flags. A user may
// appear here without a preference row and vice versa.
type SubscriptionLedger interface {
	// SubscriptionEnd returns the expiry timestamp for a user, zero when the
	// user never subscribed.
	SubscriptionEnd(ctx context.Context, userID int64) (time.Time, error)
	SetSubscriptionEnd(ctx context.Context, userID int64, end time.Time) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	SetAdmin(ctx context.Context, userID int64, admin bool) error
	UserIDs(ctx context.Context) ([]int64, error)
}

// UsernameRegistry maps Telegram usernames to user IDs for admin commands.
type UsernameRegistry interface {
	SaveUsername(ctx context.Context, userID int64, username string) error
	UserIDByUsername(ctx context.Context, username string) (int64, error)
}

// Messenger delivers a text message to a single user. Implementations must be
// safe for concurrent use; delivery failures must never abort a polling cycle.
type Messenger interface {
	Send(ctx context.Context, userID int64, text string) error
}

// FloorSource resolves the floor price for a name+model pairing.
type FloorSource interface {
	FloorPrice(ctx context.Context, key string) (FloorQuote, error)
}

// ListingSource fetches the current page of active auctions.
type ListingSource interface {
	SearchActiveAuctions(ctx context.Context) ([]Listing, error)
}
