package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/store/memory"
)

func testPlans() map[string]Plan {
	return map[string]Plan{
		"24h":    {Key: "24h", Title: "24 hours", Days: 1, Stars: 50, USD: 1},
		"7days":  {Key: "7days", Title: "7 days", Days: 7, Stars: 250, USD: 4.5},
		"1month": {Key: "1month", Title: "1 month", Days: 30, Stars: 800, USD: 15},
	}
}

func newTestSubService(t *testing.T, store *memory.Store, now time.Time) *SubscriptionService {
	t.Helper()
	prefs := newTestPrefService(t, store, 0)
	svc := NewSubscriptionService(memory.Ledger{Store: store}, store, prefs, testPlans(), testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestExtendFromNow(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSubService(t, store, now)

	end, err := svc.Extend(context.Background(), 101, "7days")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	want := now.Add(7 * 24 * time.Hour)
	if !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}

func TestExtendStacksOnUnexpired(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSubService(t, store, now)
	ctx := context.Background()

	current := now.Add(48 * time.Hour)
	if err := store.SetSubscriptionEnd(ctx, 101, current); err != nil {
		t.Fatalf("SetSubscriptionEnd: %v", err)
	}

	end, err := svc.Extend(ctx, 101, "24h")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	want := current.Add(24 * time.Hour)
	if !end.Equal(want) {
		t.Errorf("end = %v, want stacked %v", end, want)
	}
}

func TestExtendRestartsAfterExpiry(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSubService(t, store, now)
	ctx := context.Background()

	if err := store.SetSubscriptionEnd(ctx, 101, now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetSubscriptionEnd: %v", err)
	}

	end, err := svc.Extend(ctx, 101, "24h")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	want := now.Add(24 * time.Hour)
	if !end.Equal(want) {
		t.Errorf("end = %v, want restart %v", end, want)
	}
}

func TestExtendUnknownPlan(t *testing.T) {
	store := memory.NewStore()
	svc := newTestSubService(t, store, time.Now())
	if _, err := svc.Extend(context.Background(), 101, "forever"); err == nil {
		t.Fatal("expected error for unknown plan")
	}
}

func TestExtendRefreshesCachedPrefs(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSubService(t, store, now)
	ctx := context.Background()

	// Warm the cache before the grant lands.
	prefs, release, err := svc.prefs.Acquire(ctx, 101)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !prefs.SubscriptionEndsAt.IsZero() {
		t.Fatal("expected no subscription before grant")
	}
	release()

	if _, err := svc.Extend(ctx, 101, "24h"); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	prefs, release, err = svc.prefs.Acquire(ctx, 101)
	if err != nil {
		t.Fatalf("Acquire after grant: %v", err)
	}
	defer release()
	if prefs.SubscriptionEndsAt.IsZero() {
		t.Error("cached prefs not refreshed after grant")
	}
	if !prefs.Active {
		t.Error("paid extension should start the watcher")
	}

	rec, err := store.Get(ctx, 101)
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if !rec.Active {
		t.Error("activation not persisted")
	}
}

func TestGrantByUsername(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSubService(t, store, now)
	ctx := context.Background()

	if err := store.SaveUsername(ctx, 101, "collector"); err != nil {
		t.Fatalf("SaveUsername: %v", err)
	}

	userID, end, err := svc.GrantByUsername(ctx, "collector", 7)
	if err != nil {
		t.Fatalf("GrantByUsername: %v", err)
	}
	if userID != 101 {
		t.Errorf("userID = %d, want 101", userID)
	}
	if !end.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Errorf("end = %v", end)
	}

	// Admin grants leave the Active flag alone here; the scheduler picks
	// the newly entitled user up on its next cycle.
	prefs, release, err := svc.prefs.Acquire(ctx, 101)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if prefs.Active {
		t.Error("grant should leave the watcher stopped")
	}
	release()

	if _, _, err := svc.GrantByUsername(ctx, "ghost", 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEntitled(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		prefs domain.UserPreferences
		want  bool
	}{
		{"admin always", domain.UserPreferences{IsAdmin: true}, true},
		{"never subscribed", domain.UserPreferences{}, false},
		{"active subscription", domain.UserPreferences{SubscriptionEndsAt: now.Add(time.Hour)}, true},
		{"expired subscription", domain.UserPreferences{SubscriptionEndsAt: now.Add(-time.Hour)}, false},
		{"admin with expired subscription", domain.UserPreferences{IsAdmin: true, SubscriptionEndsAt: now.Add(-time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Entitled(&tt.prefs, now); got != tt.want {
				t.Errorf("Entitled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlansOrdered(t *testing.T) {
	store := memory.NewStore()
	svc := newTestSubService(t, store, time.Now())
	plans := svc.Plans()
	if len(plans) != 3 {
		t.Fatalf("len(plans) = %d, want 3", len(plans))
	}
	for i := 1; i < len(plans); i++ {
		if plans[i].Days < plans[i-1].Days {
			t.Errorf("plans not ordered by duration: %v", plans)
		}
	}
}
