package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/service"
	"github.com/ndmitriev/giftarb/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeListings struct {
	mu       sync.Mutex
	listings []domain.Listing
	err      error
	calls    int
}

func (f *fakeListings) SearchActiveAuctions(context.Context) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.listings, f.err
}

func (f *fakeListings) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFloors struct {
	quotes map[string]domain.FloorQuote
	err    error
	calls  int
}

func (f *fakeFloors) FloorPrice(_ context.Context, key string) (domain.FloorQuote, error) {
	f.calls++
	if f.err != nil {
		return domain.FloorQuote{}, f.err
	}
	return f.quotes[key], nil
}

type sentMessage struct {
	userID int64
	text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	failNext int
}

func (f *fakeMessenger) Send(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// testHarness wires an Engine over the in-memory store with fake
// marketplace collaborators.
type testHarness struct {
	store     *memory.Store
	prefs     *service.PrefService
	listings  *fakeListings
	floors    *fakeFloors
	messenger *fakeMessenger
	engine    *Engine
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	store := memory.NewStore()
	prefs, err := service.NewPrefService(store, memory.Ledger{Store: store}, 0, 0, testLogger())
	if err != nil {
		t.Fatalf("NewPrefService: %v", err)
	}
	h := &testHarness{
		store:     store,
		prefs:     prefs,
		listings:  &fakeListings{},
		floors:    &fakeFloors{quotes: map[string]domain.FloorQuote{}},
		messenger: &fakeMessenger{},
	}
	h.engine = New(cfg, prefs, h.listings, h.floors, h.messenger, testLogger())
	return h
}

// addAdmin seeds an active admin user so entitlement never blocks the test.
func (h *testHarness) addAdmin(t *testing.T, userID int64, rec domain.PreferenceRecord) {
	t.Helper()
	ctx := context.Background()
	rec.UserID = userID
	rec.Active = true
	if err := h.store.Put(ctx, rec); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}
	if err := h.store.SetAdmin(ctx, userID, true); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func (h *testHarness) acquire(t *testing.T, userID int64) (*domain.UserPreferences, func()) {
	t.Helper()
	prefs, release, err := h.prefs.Acquire(context.Background(), userID)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	return prefs, release
}

func basicRecord() domain.PreferenceRecord {
	return domain.PreferenceRecord{
		MinProfitPercent: 5,
		PollInterval:     30,
		PriceMin:         1,
		PriceMax:         1000,
	}
}

func listing(id int64, bid float64) domain.Listing {
	return domain.Listing{
		ID:         id,
		Name:       "Plush Pepe",
		Model:      "Cosmic",
		CurrentBid: bid,
		EndTime:    "2026-09-02 18:30:00",
	}
}

func fixedTime() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}
