package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GIFTARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GIFTARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Telegram.Token, "GIFTARB_TELEGRAM_TOKEN")
	setInt64(&cfg.Telegram.AdminID, "GIFTARB_TELEGRAM_ADMIN_ID")

	setStr(&cfg.Tonnel.BaseURL, "GIFTARB_TONNEL_BASE_URL")
	setStr(&cfg.Tonnel.AuthData, "GIFTARB_TONNEL_AUTH_DATA")
	setBool(&cfg.Tonnel.InsecureSkipVerify, "GIFTARB_TONNEL_INSECURE_SKIP_VERIFY")
	setDuration(&cfg.Tonnel.FloorCacheTTL, "GIFTARB_TONNEL_FLOOR_CACHE_TTL")
	setDuration(&cfg.Tonnel.Timeout, "GIFTARB_TONNEL_TIMEOUT")

	setStr(&cfg.Postgres.DSN, "GIFTARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GIFTARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GIFTARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GIFTARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GIFTARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GIFTARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GIFTARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GIFTARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GIFTARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GIFTARB_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "GIFTARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GIFTARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GIFTARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GIFTARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GIFTARB_REDIS_MAX_RETRIES")

	setStr(&cfg.CryptoBot.APIURL, "GIFTARB_CRYPTOBOT_API_URL")
	setStr(&cfg.CryptoBot.Token, "GIFTARB_CRYPTOBOT_TOKEN")
	setDuration(&cfg.CryptoBot.PollInterval, "GIFTARB_CRYPTOBOT_POLL_INTERVAL")

	setDuration(&cfg.Engine.DefaultInterval, "GIFTARB_ENGINE_DEFAULT_INTERVAL")
	setInt(&cfg.Engine.MaxConcurrentPolls, "GIFTARB_ENGINE_MAX_CONCURRENT_POLLS")
	setInt(&cfg.Engine.NotifiedCap, "GIFTARB_ENGINE_NOTIFIED_CAP")
	setInt(&cfg.Engine.PrefCacheSize, "GIFTARB_ENGINE_PREF_CACHE_SIZE")

	setStr(&cfg.Mode, "GIFTARB_MODE")
	setStr(&cfg.LogLevel, "GIFTARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
