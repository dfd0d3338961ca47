// Package memory provides an in-memory implementation of the domain store
// interfaces, used in tests and when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

type subscription struct {
	endsAt  time.Time
	isAdmin bool
}

// Store keeps preferences, subscriptions, and usernames in process memory.
// All state is lost on restart.
type Store struct {
	mu        sync.RWMutex
	prefs     map[int64]domain.PreferenceRecord
	subs      map[int64]subscription
	usernames map[string]int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		prefs:     make(map[int64]domain.PreferenceRecord),
		subs:      make(map[int64]subscription),
		usernames: make(map[string]int64),
	}
}

// Get returns the preference record for a user, creating a default row when
// none exists.
func (s *Store) Get(_ context.Context, userID int64) (domain.PreferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.prefs[userID]; ok {
		return rec, nil
	}
	rec := domain.PreferenceRecord{
		UserID:           userID,
		MinProfitPercent: domain.DefaultMinProfitPercent,
		PollInterval:     domain.DefaultPollInterval,
		PriceMin:         domain.DefaultPriceMin,
		PriceMax:         domain.DefaultPriceMax,
	}
	s.prefs[userID] = rec
	return rec, nil
}

// Put stores the preference record for a user.
func (s *Store) Put(_ context.Context, rec domain.PreferenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[rec.UserID] = rec
	return nil
}

// UserIDs returns every user with a preference row.
func (s *Store) UserIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.prefs))
	for id := range s.prefs {
		ids = append(ids, id)
	}
	return ids, nil
}

// SubscriptionEnd returns the expiry for a user, zero when never subscribed.
func (s *Store) SubscriptionEnd(_ context.Context, userID int64) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[userID].endsAt, nil
}

// SetSubscriptionEnd sets the expiry for a user.
func (s *Store) SetSubscriptionEnd(_ context.Context, userID int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[userID]
	sub.endsAt = end
	s.subs[userID] = sub
	return nil
}

// IsAdmin reports the admin flag for a user.
func (s *Store) IsAdmin(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[userID].isAdmin, nil
}

// SetAdmin sets the admin flag for a user.
func (s *Store) SetAdmin(_ context.Context, userID int64, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[userID]
	sub.isAdmin = admin
	s.subs[userID] = sub
	return nil
}

// SubscriberIDs returns every user with a subscription row.
func (s *Store) SubscriberIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveUsername records a username for later lookup.
func (s *Store) SaveUsername(_ context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[username] = userID
	return nil
}

// UserIDByUsername resolves a username, returning domain.ErrNotFound when the
// username was never recorded.
func (s *Store) UserIDByUsername(_ context.Context, username string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.usernames[username]; ok {
		return id, nil
	}
	return 0, domain.ErrNotFound
}

// Ledger adapts the Store to domain.SubscriptionLedger, whose UserIDs method
// must enumerate subscription rows rather than preference rows.
type Ledger struct {
	*Store
}

// UserIDs returns every user with a subscription row.
func (l Ledger) UserIDs(ctx context.Context) ([]int64, error) {
	return l.SubscriberIDs(ctx)
}

// Compile-time interface checks.
var (
	_ domain.PreferenceStore    = (*Store)(nil)
	_ domain.SubscriptionLedger = Ledger{}
	_ domain.UsernameRegistry   = (*Store)(nil)
)
