package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// Plan is a purchasable subscription duration.
type Plan struct {
	Key   string
	Title string
	Days  int
	Stars int
	USD   float64
}

// SubscriptionService grants and extends subscriptions and keeps the cached
// preference entries in sync with the ledger after a grant.
type SubscriptionService struct {
	ledger   domain.SubscriptionLedger
	registry domain.UsernameRegistry
	prefs    *PrefService
	plans    map[string]Plan
	now      func() time.Time
	log      *slog.Logger
}

// NewSubscriptionService creates the service.
func NewSubscriptionService(ledger domain.SubscriptionLedger, registry domain.UsernameRegistry, prefs *PrefService, plans map[string]Plan, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		ledger:   ledger,
		registry: registry,
		prefs:    prefs,
		plans:    plans,
		now:      time.Now,
		log:      log.With("component", "subscription"),
	}
}

// Plan looks up a purchasable plan by key.
func (s *SubscriptionService) Plan(key string) (Plan, bool) {
	p, ok := s.plans[key]
	return p, ok
}

// Plans returns all plans ordered by duration.
func (s *SubscriptionService) Plans() []Plan {
	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}

// Extend adds a plan's duration to the user's subscription after a payment.
// An unexpired subscription is extended from its current end; an expired or
// absent one starts from now. Paying also starts the watcher: the user is
// marked active and their cached entry picks up the new entitlement.
func (s *SubscriptionService) Extend(ctx context.Context, userID int64, planKey string) (time.Time, error) {
	plan, ok := s.plans[planKey]
	if !ok {
		return time.Time{}, fmt.Errorf("service: unknown plan %q", planKey)
	}
	return s.extend(ctx, userID, plan.Days, true)
}

// ExtendDays adds a raw number of days to the user's subscription without
// starting the watcher. Used by admin grants, where the recipient still opts
// in with /start.
func (s *SubscriptionService) ExtendDays(ctx context.Context, userID int64, days int) (time.Time, error) {
	return s.extend(ctx, userID, days, false)
}

func (s *SubscriptionService) extend(ctx context.Context, userID int64, days int, activate bool) (time.Time, error) {
	current, err := s.ledger.SubscriptionEnd(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("service: read subscription end for %d: %w", userID, err)
	}

	base := s.now()
	if current.After(base) {
		base = current
	}
	end := base.Add(time.Duration(days) * 24 * time.Hour)

	if err := s.ledger.SetSubscriptionEnd(ctx, userID, end); err != nil {
		return time.Time{}, fmt.Errorf("service: set subscription end for %d: %w", userID, err)
	}
	s.log.Info("subscription extended", "user_id", userID, "days", days, "ends_at", end)

	if err := s.refresh(ctx, userID, activate); err != nil {
		return time.Time{}, err
	}
	return end, nil
}

// GrantByUsername extends a subscription for a user addressed by Telegram
// username. Returns domain.ErrNotFound when the username was never seen.
func (s *SubscriptionService) GrantByUsername(ctx context.Context, username string, days int) (int64, time.Time, error) {
	userID, err := s.registry.UserIDByUsername(ctx, username)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("service: resolve username %q: %w", username, err)
	}
	end, err := s.ExtendDays(ctx, userID, days)
	if err != nil {
		return 0, time.Time{}, err
	}
	return userID, end, nil
}

// Entitled reports whether the user may run the watcher at the given instant:
// admins always, subscribers until their end timestamp passes.
func Entitled(p *domain.UserPreferences, at time.Time) bool {
	if p.IsAdmin {
		return true
	}
	return !p.SubscriptionEndsAt.IsZero() && p.SubscriptionEndsAt.After(at)
}

// refresh pulls the new ledger state into the cached preferences and, for
// paid extensions, starts the watcher.
func (s *SubscriptionService) refresh(ctx context.Context, userID int64, activate bool) error {
	prefs, release, err := s.prefs.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.prefs.RefreshEntitlement(ctx, prefs); err != nil {
		return err
	}
	if activate && !prefs.Active {
		prefs.Active = true
		if err := s.prefs.Save(ctx, prefs); err != nil {
			return err
		}
	}
	return nil
}
