package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

func TestCycleSleepIsMaxEligibleInterval(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: 60 * time.Second})

	fast := basicRecord()
	fast.PollInterval = 10
	h.addAdmin(t, 101, fast)

	slow := basicRecord()
	slow.PollInterval = 60
	h.addAdmin(t, 202, slow)

	wait, err := h.engine.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if wait != 60*time.Second {
		t.Errorf("wait = %v, want 60s (max of 10s and 60s)", wait)
	}
}

func TestCycleSleepDefaultsWhenNobodyEligible(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: 45 * time.Second})

	// A user exists but is inactive.
	rec := basicRecord()
	rec.UserID = 101
	if err := h.store.Put(context.Background(), rec); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}

	wait, err := h.engine.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if wait != 45*time.Second {
		t.Errorf("wait = %v, want default 45s", wait)
	}
	if h.listings.callCount() != 0 {
		t.Errorf("inactive user was polled %d times", h.listings.callCount())
	}
}

func TestCycleSendsAlert(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute})
	h.addAdmin(t, 101, basicRecord())
	h.listings.listings = []domain.Listing{listing(1, 80)}
	h.floors.quotes["Plush Pepe_Cosmic"] = domain.FloorQuote{Price: 100, Found: true}

	if _, err := h.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("messages = %d, want 1", h.messenger.sentCount())
	}

	// Second cycle with the same listing stays quiet.
	if _, err := h.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("second runCycle: %v", err)
	}
	if h.messenger.sentCount() != 1 {
		t.Errorf("messages after second cycle = %d, want 1", h.messenger.sentCount())
	}
}

func TestCycleMarketplaceFailureDegrades(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute})
	h.addAdmin(t, 101, basicRecord())
	h.listings.err = context.DeadlineExceeded

	wait, err := h.engine.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle should tolerate marketplace failure, got %v", err)
	}
	if wait != 30*time.Second {
		t.Errorf("wait = %v, want the polled user's 30s interval", wait)
	}
}

func TestExpiryDeactivatesAndNotifiesOnce(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute})
	h.engine.now = fixedTime
	ctx := context.Background()

	rec := basicRecord()
	rec.UserID = 101
	rec.Active = true
	if err := h.store.Put(ctx, rec); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}
	if err := h.store.SetSubscriptionEnd(ctx, 101, fixedTime().Add(-time.Hour)); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	if _, err := h.engine.runCycle(ctx); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("expiry notices = %d, want 1", h.messenger.sentCount())
	}
	if !strings.Contains(h.messenger.sent[0].text, "expired") {
		t.Errorf("unexpected notice text: %s", h.messenger.sent[0].text)
	}

	stored, err := h.store.Get(ctx, 101)
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if stored.Active {
		t.Error("expired user still active in store")
	}

	// Further cycles stay silent.
	for i := 0; i < 3; i++ {
		if _, err := h.engine.runCycle(ctx); err != nil {
			t.Fatalf("runCycle %d: %v", i, err)
		}
	}
	if h.messenger.sentCount() != 1 {
		t.Errorf("expiry notices after repeat cycles = %d, want 1", h.messenger.sentCount())
	}
	if h.listings.callCount() != 0 {
		t.Errorf("expired user was polled %d times", h.listings.callCount())
	}
}

func TestExpiredUserReactivatesAfterGrant(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute})
	h.engine.now = fixedTime
	ctx := context.Background()

	rec := basicRecord()
	rec.UserID = 101
	rec.Active = true
	if err := h.store.Put(ctx, rec); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}
	if err := h.store.SetSubscriptionEnd(ctx, 101, fixedTime().Add(-time.Hour)); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	if _, err := h.engine.runCycle(ctx); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	// A new subscription alone brings the watcher back, no /start needed.
	if err := h.store.SetSubscriptionEnd(ctx, 101, fixedTime().Add(time.Hour)); err != nil {
		t.Fatalf("extend subscription: %v", err)
	}
	prefs, release := h.acquire(t, 101)
	if err := h.prefs.RefreshEntitlement(ctx, prefs); err != nil {
		t.Fatalf("RefreshEntitlement: %v", err)
	}
	release()

	if _, err := h.engine.runCycle(ctx); err != nil {
		t.Fatalf("runCycle after grant: %v", err)
	}
	if h.listings.callCount() != 1 {
		t.Errorf("reactivated user polls = %d, want 1", h.listings.callCount())
	}
	stored, err := h.store.Get(ctx, 101)
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if !stored.Active {
		t.Error("reactivated user not active in store")
	}
}

func TestInactiveAdminIsPolled(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute})
	ctx := context.Background()

	rec := basicRecord()
	rec.UserID = 101
	rec.Active = false
	if err := h.store.Put(ctx, rec); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}
	if err := h.store.SetAdmin(ctx, 101, true); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	if _, err := h.engine.runCycle(ctx); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if h.listings.callCount() != 1 {
		t.Errorf("admin polls = %d, want 1", h.listings.callCount())
	}
	stored, err := h.store.Get(ctx, 101)
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if !stored.Active {
		t.Error("admin not re-activated in store")
	}
}

func TestCycleConcurrentPool(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Minute, MaxConcurrentPolls: 4})
	for id := int64(1); id <= 6; id++ {
		rec := basicRecord()
		rec.PollInterval = 10 * int(id)
		h.addAdmin(t, id, rec)
	}

	wait, err := h.engine.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if wait != 60*time.Second {
		t.Errorf("wait = %v, want 60s", wait)
	}
	if h.listings.callCount() != 6 {
		t.Errorf("marketplace calls = %d, want 6", h.listings.callCount())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, Config{DefaultInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
