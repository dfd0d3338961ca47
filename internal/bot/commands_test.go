package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

func TestSettingsText(t *testing.T) {
	p := domain.NewUserPreferences(101)
	p.Active = true
	p.MinProfitPercent = 12
	p.PollInterval = 15
	p.PriceMin = 2.5
	p.PriceMax = 40
	p.SubscriptionEndsAt = time.Now().Add(48 * time.Hour)

	text := settingsText(p)
	for _, want := range []string{
		"🟢 running",
		"Minimum profit: 12%",
		"Polling interval: 15s",
		"2.50 - 40.00 TON",
		"until ",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("settings missing %q in:\n%s", want, text)
		}
	}
}

func TestSettingsTextStates(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*domain.UserPreferences)
		want string
	}{
		{"stopped", func(p *domain.UserPreferences) {}, "🔴 stopped"},
		{"admin", func(p *domain.UserPreferences) { p.IsAdmin = true }, "Subscription: admin"},
		{"never subscribed", func(p *domain.UserPreferences) {}, "none (/subscribe)"},
		{"expired", func(p *domain.UserPreferences) {
			p.SubscriptionEndsAt = time.Now().Add(-time.Hour)
		}, "expired (/subscribe)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.NewUserPreferences(101)
			tt.mut(p)
			if got := settingsText(p); !strings.Contains(got, tt.want) {
				t.Errorf("settings missing %q in:\n%s", tt.want, got)
			}
		})
	}
}

func TestParseProfit(t *testing.T) {
	tests := []struct {
		args string
		want int
		ok   bool
	}{
		{"10", 10, true},
		{"0", 0, true},
		{" 7 ", 7, true},
		{"-5", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"2.5", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProfit(tt.args)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseProfit(%q) = (%d, %v), want (%d, %v)", tt.args, got, ok, tt.want, tt.ok)
		}
	}
}
