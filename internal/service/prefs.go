// Package service holds the preference and subscription services sitting
// between the stores and the engine/bot layers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// DefaultPrefCacheSize bounds the in-memory preference cache.
const DefaultPrefCacheSize = 1024

// prefEntry is one cached user. The entry mutex serializes all work on that
// user: a poll cycle and a command handler never mutate the same preferences
// concurrently.
type prefEntry struct {
	mu    sync.Mutex
	prefs *domain.UserPreferences
}

// PrefService loads preferences through a bounded LRU cache and hands out
// exclusive per-user access. Eviction only drops the cache reference; holders
// of a released entry keep a valid pointer, and the next Acquire reloads from
// the store with a fresh dedup set.
type PrefService struct {
	store       domain.PreferenceStore
	ledger      domain.SubscriptionLedger
	notifiedCap int

	mu    sync.Mutex
	cache *lru.Cache

	log *slog.Logger
}

// NewPrefService creates the service. cacheSize and notifiedCap fall back to
// their defaults when zero or negative.
func NewPrefService(store domain.PreferenceStore, ledger domain.SubscriptionLedger, cacheSize, notifiedCap int, log *slog.Logger) (*PrefService, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultPrefCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("service: create pref cache: %w", err)
	}
	return &PrefService{
		store:       store,
		ledger:      ledger,
		notifiedCap: notifiedCap,
		cache:       cache,
		log:         log.With("component", "prefs"),
	}, nil
}

// Acquire returns the user's preferences with an exclusive lock held. The
// caller must invoke release when done. Preferences are loaded from the store
// on a cache miss, with entitlement flags joined in from the ledger.
func (s *PrefService) Acquire(ctx context.Context, userID int64) (*domain.UserPreferences, func(), error) {
	entry := s.entry(userID)
	entry.mu.Lock()

	if entry.prefs == nil {
		prefs, err := s.load(ctx, userID)
		if err != nil {
			entry.mu.Unlock()
			return nil, nil, err
		}
		entry.prefs = prefs
	}
	return entry.prefs, entry.mu.Unlock, nil
}

// Save persists the durable portion of the preferences. The caller must hold
// the entry lock from Acquire.
func (s *PrefService) Save(ctx context.Context, prefs *domain.UserPreferences) error {
	rec := domain.PreferenceRecord{
		UserID:           prefs.UserID,
		MinProfitPercent: prefs.MinProfitPercent,
		PollInterval:     prefs.PollInterval,
		PriceMin:         prefs.PriceMin,
		PriceMax:         prefs.PriceMax,
		Active:           prefs.Active,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("service: save prefs for %d: %w", prefs.UserID, err)
	}
	return nil
}

// RefreshEntitlement re-reads the admin flag and subscription end from the
// ledger into an already-acquired preferences value. Used after a payment
// lands while the user is cached.
func (s *PrefService) RefreshEntitlement(ctx context.Context, prefs *domain.UserPreferences) error {
	admin, err := s.ledger.IsAdmin(ctx, prefs.UserID)
	if err != nil {
		return fmt.Errorf("service: read admin flag for %d: %w", prefs.UserID, err)
	}
	end, err := s.ledger.SubscriptionEnd(ctx, prefs.UserID)
	if err != nil {
		return fmt.Errorf("service: read subscription end for %d: %w", prefs.UserID, err)
	}
	prefs.IsAdmin = admin
	prefs.SubscriptionEndsAt = end
	return nil
}

// UserIDs returns the union of users with a preference row and users with a
// subscription row. A subscriber who never touched their settings still gets
// polled; their preference row is created on first acquire.
func (s *PrefService) UserIDs(ctx context.Context) ([]int64, error) {
	prefIDs, err := s.store.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list users: %w", err)
	}
	subIDs, err := s.ledger.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list subscribers: %w", err)
	}

	seen := make(map[int64]struct{}, len(prefIDs)+len(subIDs))
	ids := make([]int64, 0, len(prefIDs)+len(subIDs))
	for _, id := range prefIDs {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range subIDs {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *PrefService) entry(userID int64) *prefEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(userID); ok {
		return v.(*prefEntry)
	}
	entry := &prefEntry{}
	if evicted := s.cache.Add(userID, entry); evicted {
		s.log.Debug("pref cache evicted oldest entry", "user_id", userID)
	}
	return entry
}

func (s *PrefService) load(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: load prefs for %d: %w", userID, err)
	}
	admin, err := s.ledger.IsAdmin(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: read admin flag for %d: %w", userID, err)
	}
	end, err := s.ledger.SubscriptionEnd(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: read subscription end for %d: %w", userID, err)
	}

	return &domain.UserPreferences{
		UserID:             rec.UserID,
		MinProfitPercent:   rec.MinProfitPercent,
		PollInterval:       rec.PollInterval,
		PriceMin:           rec.PriceMin,
		PriceMax:           rec.PriceMax,
		Active:             rec.Active,
		IsAdmin:            admin,
		SubscriptionEndsAt: end,
		Notified:           domain.NewNotifiedSet(s.notifiedCap),
	}, nil
}
