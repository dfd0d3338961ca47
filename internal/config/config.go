// Package config defines the top-level configuration for the gift arbitrage
// watcher and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by GIFTARB_* environment variables.
type Config struct {
	Telegram     TelegramConfig     `toml:"telegram"`
	Tonnel       TonnelConfig       `toml:"tonnel"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	CryptoBot    CryptoBotConfig    `toml:"cryptobot"`
	Engine       EngineConfig       `toml:"engine"`
	Subscription SubscriptionConfig `toml:"subscription"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// TelegramConfig holds the bot credentials and the bootstrap admin.
type TelegramConfig struct {
	Token   string `toml:"token"`
	AdminID int64  `toml:"admin_id"`
}

// TonnelConfig holds the marketplace API parameters.
type TonnelConfig struct {
	BaseURL  string `toml:"base_url"`
	AuthData string `toml:"auth_data"`
	// InsecureSkipVerify disables TLS certificate validation for marketplace
	// calls. The upstream endpoint presents a certificate some resolvers
	// reject; keep this off unless it actually fails.
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
	// FloorCacheTTL enables the redis floor-price cache when positive. Zero
	// keeps every lookup fresh, one request per listing per cycle.
	FloorCacheTTL duration `toml:"floor_cache_ttl"`
	Timeout       duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty DSN with an
// empty host selects the in-memory store.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// floor-price cache entirely.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// CryptoBotConfig holds Crypto Pay API credentials for invoice payments.
type CryptoBotConfig struct {
	APIURL       string   `toml:"api_url"`
	Token        string   `toml:"token"`
	PollInterval duration `toml:"poll_interval"`
}

// EngineConfig holds polling-cycle parameters.
type EngineConfig struct {
	// DefaultInterval is the inter-cycle wait used when no user interval
	// exceeds it, and the idle wait when there is nobody to poll.
	DefaultInterval duration `toml:"default_interval"`
	// MaxConcurrentPolls bounds how many users are polled at once within one
	// pass. 1 preserves the strictly sequential behavior.
	MaxConcurrentPolls int `toml:"max_concurrent_polls"`
	// NotifiedCap bounds the per-user session dedup set.
	NotifiedCap int `toml:"notified_cap"`
	// PrefCacheSize bounds the in-memory preference cache.
	PrefCacheSize int `toml:"pref_cache_size"`
}

// Plan is one purchasable subscription period.
type Plan struct {
	Days  int     `toml:"days"`
	Stars int     `toml:"stars"`
	USD   float64 `toml:"usd"`
	Title string  `toml:"title"`
}

// SubscriptionConfig maps plan keys ("24h", "7days", "1month") to prices.
type SubscriptionConfig struct {
	Plans map[string]Plan `toml:"plans"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Tonnel: TonnelConfig{
			BaseURL: "https://gifts3.tonnel.network",
			Timeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "giftarb",
			User:          "giftarb",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		CryptoBot: CryptoBotConfig{
			APIURL:       "https://pay.crypt.bot/api",
			PollInterval: duration{time.Minute},
		},
		Engine: EngineConfig{
			DefaultInterval:    duration{60 * time.Second},
			MaxConcurrentPolls: 1,
			NotifiedCap:        512,
			PrefCacheSize:      4096,
		},
		Subscription: SubscriptionConfig{
			Plans: map[string]Plan{
				"24h":    {Days: 1, Stars: 50, USD: 0.99, Title: "24 hours"},
				"7days":  {Days: 7, Stars: 250, USD: 3.99, Title: "7 days"},
				"1month": {Days: 30, Stars: 750, USD: 9.99, Title: "1 month"},
			},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"bot":   true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, bot, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Telegram.Token == "" {
		errs = append(errs, "telegram: token must not be empty")
	}

	if c.Tonnel.BaseURL == "" {
		errs = append(errs, "tonnel: base_url must not be empty")
	}
	if c.Tonnel.Timeout.Duration <= 0 {
		errs = append(errs, "tonnel: timeout must be positive")
	}
	if c.Tonnel.FloorCacheTTL.Duration > 0 && c.Redis.Addr == "" {
		errs = append(errs, "tonnel: floor_cache_ttl requires redis.addr")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host != "" {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Engine.DefaultInterval.Duration < 5*time.Second {
		errs = append(errs, "engine: default_interval must be at least 5s")
	}
	if c.Engine.MaxConcurrentPolls < 1 {
		errs = append(errs, "engine: max_concurrent_polls must be >= 1")
	}
	if c.Engine.NotifiedCap < 1 {
		errs = append(errs, "engine: notified_cap must be >= 1")
	}
	if c.Engine.PrefCacheSize < 1 {
		errs = append(errs, "engine: pref_cache_size must be >= 1")
	}

	for key, plan := range c.Subscription.Plans {
		if plan.Days < 1 {
			errs = append(errs, fmt.Sprintf("subscription: plan %q days must be >= 1", key))
		}
		if plan.Stars < 1 {
			errs = append(errs, fmt.Sprintf("subscription: plan %q stars must be >= 1", key))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
