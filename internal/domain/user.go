// Package domain defines the core entities of the gift arbitrage watcher and
// the interfaces its storage, cache, and messaging collaborators implement.
package domain

import "time"

// Default preference values applied when a user is seen for the first time.
const (
	DefaultMinProfitPercent = 5
	DefaultPollInterval     = 30
	DefaultPriceMin         = 5.0
	DefaultPriceMax         = 25.0
)

// DefaultNotifiedCap bounds the per-user dedup set. Long sessions with high
// listing churn evict the oldest entries instead of growing without bound.
const DefaultNotifiedCap = 512

// UserPreferences is the per-user watcher state. It is cached in memory for
// fast cycle access; the preference store is the durable source of truth.
// Notified is session-scoped and is never persisted: it starts empty on every
// load and is cleared again by an explicit /stop.
type UserPreferences struct {
	UserID             int64
	MinProfitPercent   int
	PollInterval       int // seconds, >= 5
	PriceMin           float64
	PriceMax           float64
	Active             bool
	IsAdmin            bool
	SubscriptionEndsAt time.Time // zero = never subscribed

	Notified *NotifiedSet
}

// NewUserPreferences returns preferences populated with defaults and an empty
// dedup set.
func NewUserPreferences(userID int64) *UserPreferences {
	return &UserPreferences{
		UserID:           userID,
		MinProfitPercent: DefaultMinProfitPercent,
		PollInterval:     DefaultPollInterval,
		PriceMin:         DefaultPriceMin,
		PriceMax:         DefaultPriceMax,
		Notified:         NewNotifiedSet(DefaultNotifiedCap),
	}
}

// InRange reports whether a bid falls inside the configured price range,
// inclusive on both ends.
func (p *UserPreferences) InRange(bid float64) bool {
	return bid >= p.PriceMin && bid <= p.PriceMax
}

// NotifiedSet is a bounded set of listing IDs already alerted in the current
// session. When the cap is reached the oldest entry is evicted first.
type NotifiedSet struct {
	cap   int
	ids   map[int64]struct{}
	order []int64
}

// NewNotifiedSet creates an empty set holding at most cap entries. A cap of
// zero or less falls back to DefaultNotifiedCap.
func NewNotifiedSet(cap int) *NotifiedSet {
	if cap <= 0 {
		cap = DefaultNotifiedCap
	}
	return &NotifiedSet{
		cap: cap,
		ids: make(map[int64]struct{}),
	}
}

// Has reports whether the listing ID was already notified this session.
func (s *NotifiedSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records a listing ID, evicting the oldest entry when full.
func (s *NotifiedSet) Add(id int64) {
	if _, ok := s.ids[id]; ok {
		return
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

// Clear empties the set.
func (s *NotifiedSet) Clear() {
	s.ids = make(map[int64]struct{})
	s.order = s.order[:0]
}

// Len returns the number of tracked IDs.
func (s *NotifiedSet) Len() int {
	return len(s.ids)
}
