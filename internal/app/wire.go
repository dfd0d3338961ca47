package app

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ndmitriev/giftarb/internal/bot"
	"github.com/ndmitriev/giftarb/internal/cache/redis"
	"github.com/ndmitriev/giftarb/internal/config"
	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/engine"
	"github.com/ndmitriev/giftarb/internal/notify"
	"github.com/ndmitriev/giftarb/internal/platform/cryptobot"
	"github.com/ndmitriev/giftarb/internal/platform/tonnel"
	"github.com/ndmitriev/giftarb/internal/service"
	"github.com/ndmitriev/giftarb/internal/store/memory"
	"github.com/ndmitriev/giftarb/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Prefs     *service.PrefService
	Subs      *service.SubscriptionService
	Registry  domain.UsernameRegistry
	Messenger domain.Messenger
	Engine    *engine.Engine
	Bot       *bot.Bot
}

// Wire constructs every concrete dependency from the configuration and
// returns them with a cleanup function to call on shutdown. Postgres is used
// when configured, otherwise state lives in process memory. Redis, when
// configured together with a floor cache TTL, caches floor-price lookups.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Stores ---
	var (
		prefStore domain.PreferenceStore
		ledger    domain.SubscriptionLedger
		registry  domain.UsernameRegistry
	)
	if cfg.Postgres.DSN != "" || cfg.Postgres.Host != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		prefStore = postgres.NewPrefStore(pool)
		subStore := postgres.NewSubscriptionStore(pool)
		ledger = subStore
		registry = subStore
	} else {
		logger.Warn("postgres not configured, state is in-memory and lost on restart")
		mem := memory.NewStore()
		prefStore = mem
		ledger = memory.Ledger{Store: mem}
		registry = mem
	}

	// Bootstrap admin so /give works from the first run.
	if cfg.Telegram.AdminID != 0 {
		if err := ledger.SetAdmin(ctx, cfg.Telegram.AdminID, true); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bootstrap admin: %w", err)
		}
	}

	// --- Marketplace client, optionally behind the redis floor cache ---
	tonnelClient := tonnel.NewClient(tonnel.ClientConfig{
		BaseURL:            cfg.Tonnel.BaseURL,
		AuthData:           cfg.Tonnel.AuthData,
		Timeout:            cfg.Tonnel.Timeout.Duration,
		InsecureSkipVerify: cfg.Tonnel.InsecureSkipVerify,
	})

	var floors domain.FloorSource = tonnelClient
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if ttl := cfg.Tonnel.FloorCacheTTL.Duration; ttl > 0 {
			floors = redis.NewFloorCache(redisClient, tonnelClient, ttl, logger)
		}
	}

	// --- Telegram ---
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: telegram: %w", err)
	}
	messenger := notify.NewTelegramMessenger(api, logger)

	// --- Services ---
	prefs, err := service.NewPrefService(prefStore, ledger, cfg.Engine.PrefCacheSize, cfg.Engine.NotifiedCap, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	plans := make(map[string]service.Plan, len(cfg.Subscription.Plans))
	for key, p := range cfg.Subscription.Plans {
		plans[key] = service.Plan{
			Key:   key,
			Title: p.Title,
			Days:  p.Days,
			Stars: p.Stars,
			USD:   p.USD,
		}
	}
	subs := service.NewSubscriptionService(ledger, registry, prefs, plans, logger)

	var crypto *cryptobot.Client
	if cfg.CryptoBot.Token != "" {
		crypto = cryptobot.NewClient(cfg.CryptoBot.APIURL, cfg.CryptoBot.Token)
	}

	deps := &Dependencies{
		Prefs:     prefs,
		Subs:      subs,
		Registry:  registry,
		Messenger: messenger,
		Engine: engine.New(engine.Config{
			DefaultInterval:    cfg.Engine.DefaultInterval.Duration,
			MaxConcurrentPolls: cfg.Engine.MaxConcurrentPolls,
		}, prefs, tonnelClient, floors, messenger, logger),
		Bot: bot.New(bot.Config{
			CryptoPollInterval: cfg.CryptoBot.PollInterval.Duration,
		}, api, prefs, subs, registry, crypto, logger),
	}
	return deps, cleanup, nil
}
