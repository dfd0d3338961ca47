package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

func TestGetCreatesDefaults(t *testing.T) {
	s := NewStore()
	rec, err := s.Get(context.Background(), 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.MinProfitPercent != domain.DefaultMinProfitPercent ||
		rec.PollInterval != domain.DefaultPollInterval ||
		rec.PriceMin != domain.DefaultPriceMin ||
		rec.PriceMax != domain.DefaultPriceMax ||
		rec.Active {
		t.Fatalf("unexpected defaults: %+v", rec)
	}

	ids, err := s.UserIDs(context.Background())
	if err != nil {
		t.Fatalf("UserIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 10 {
		t.Fatalf("Get should persist the default row, ids=%v", ids)
	}
}

func TestPutRoundTrip(t *testing.T) {
	s := NewStore()
	want := domain.PreferenceRecord{
		UserID: 7, MinProfitPercent: 12, PollInterval: 45,
		PriceMin: 1, PriceMax: 99, Active: true,
	}
	if err := s.Put(context.Background(), want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSubscriptionAndAdmin(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	end, err := s.SubscriptionEnd(ctx, 5)
	if err != nil || !end.IsZero() {
		t.Fatalf("never-subscribed user should have zero expiry, got %v err=%v", end, err)
	}

	want := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	if err := s.SetSubscriptionEnd(ctx, 5, want); err != nil {
		t.Fatalf("SetSubscriptionEnd: %v", err)
	}
	if err := s.SetAdmin(ctx, 5, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}

	end, _ = s.SubscriptionEnd(ctx, 5)
	if !end.Equal(want) {
		t.Errorf("expiry = %v, want %v (SetAdmin must not clobber it)", end, want)
	}
	admin, _ := s.IsAdmin(ctx, 5)
	if !admin {
		t.Error("expected admin flag")
	}

	ids, _ := Ledger{s}.UserIDs(ctx)
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("ledger ids = %v", ids)
	}
}

func TestUsernameLookup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.UserIDByUsername(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveUsername(ctx, 3, "alice"); err != nil {
		t.Fatalf("SaveUsername: %v", err)
	}
	id, err := s.UserIDByUsername(ctx, "alice")
	if err != nil || id != 3 {
		t.Fatalf("lookup = (%d, %v), want (3, nil)", id, err)
	}
}
