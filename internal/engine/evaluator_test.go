package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ndmitriev/giftarb/internal/domain"
)

func evalPrefs(minProfit int, priceMin, priceMax float64) *domain.UserPreferences {
	p := domain.NewUserPreferences(101)
	p.MinProfitPercent = minProfit
	p.PriceMin = priceMin
	p.PriceMax = priceMax
	return p
}

func TestEvaluateProfitThreshold(t *testing.T) {
	// Bid 80 against floor 100 yields 15.40 TON, 19.25%.
	floors := &fakeFloors{quotes: map[string]domain.FloorQuote{
		"Plush Pepe_Cosmic": {Price: 100, Found: true},
	}}
	ev := NewEvaluator(floors, testLogger())
	ctx := context.Background()
	listings := []domain.Listing{listing(1, 80)}

	got := ev.Evaluate(ctx, evalPrefs(19, 1, 1000), listings)
	if len(got) != 1 {
		t.Fatalf("threshold 19: got %d candidates, want 1", len(got))
	}
	if got[0].Signal.Percent < 19.24 || got[0].Signal.Percent > 19.26 {
		t.Errorf("Percent = %v, want 19.25", got[0].Signal.Percent)
	}

	if got := ev.Evaluate(ctx, evalPrefs(20, 1, 1000), listings); len(got) != 0 {
		t.Fatalf("threshold 20: got %d candidates, want 0", len(got))
	}
}

func TestEvaluatePriceRangeInclusive(t *testing.T) {
	floors := &fakeFloors{quotes: map[string]domain.FloorQuote{
		"Plush Pepe_Cosmic": {Price: 1000, Found: true},
	}}
	ev := NewEvaluator(floors, testLogger())
	prefs := evalPrefs(0, 5, 25)

	tests := []struct {
		bid  float64
		want int
	}{
		{4.99, 0},
		{5, 1},
		{25, 1},
		{25.01, 0},
	}
	for _, tt := range tests {
		prefs.Notified.Clear()
		got := ev.Evaluate(context.Background(), prefs, []domain.Listing{listing(1, tt.bid)})
		if len(got) != tt.want {
			t.Errorf("bid %v: got %d candidates, want %d", tt.bid, len(got), tt.want)
		}
	}
}

func TestEvaluateSkipsNotified(t *testing.T) {
	floors := &fakeFloors{quotes: map[string]domain.FloorQuote{
		"Plush Pepe_Cosmic": {Price: 100, Found: true},
	}}
	ev := NewEvaluator(floors, testLogger())
	prefs := evalPrefs(0, 1, 1000)
	prefs.Notified.Add(1)

	got := ev.Evaluate(context.Background(), prefs, []domain.Listing{listing(1, 50), listing(2, 50)})
	if len(got) != 1 || got[0].Listing.ID != 2 {
		t.Fatalf("got %v, want only listing 2", got)
	}
	if floors.calls != 1 {
		t.Errorf("floor lookups = %d, want 1 (notified listing skipped before lookup)", floors.calls)
	}
}

func TestEvaluateSkipsListingWithoutID(t *testing.T) {
	floors := &fakeFloors{quotes: map[string]domain.FloorQuote{
		"Plush Pepe_Cosmic": {Price: 100, Found: true},
	}}
	ev := NewEvaluator(floors, testLogger())
	prefs := evalPrefs(0, 1, 1000)

	got := ev.Evaluate(context.Background(), prefs, []domain.Listing{listing(0, 50), listing(2, 50)})
	if len(got) != 1 || got[0].Listing.ID != 2 {
		t.Fatalf("got %v, want only listing 2 (id 0 must never become a candidate)", got)
	}
}

func TestEvaluateNoFloor(t *testing.T) {
	ev := NewEvaluator(&fakeFloors{quotes: map[string]domain.FloorQuote{}}, testLogger())
	got := ev.Evaluate(context.Background(), evalPrefs(0, 1, 1000), []domain.Listing{listing(1, 50)})
	if len(got) != 0 {
		t.Fatalf("got %d candidates for floorless model, want 0", len(got))
	}
}

func TestEvaluateFloorErrorSkipsListingOnly(t *testing.T) {
	floors := &fakeFloors{err: errors.New("marketplace down")}
	ev := NewEvaluator(floors, testLogger())
	got := ev.Evaluate(context.Background(), evalPrefs(0, 1, 1000), []domain.Listing{listing(1, 50), listing(2, 60)})
	if len(got) != 0 {
		t.Fatalf("got %d candidates, want 0", len(got))
	}
	if floors.calls != 2 {
		t.Errorf("floor lookups = %d, want 2 (error must not abort the pass)", floors.calls)
	}
}
