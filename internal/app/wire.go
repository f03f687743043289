package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/cache/redis"
	"github.com/cuongdcdev/shade-trader/internal/config"
	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/intents"
	"github.com/cuongdcdev/shade-trader/internal/notify"
	"github.com/cuongdcdev/shade-trader/internal/platform/coingecko"
	"github.com/cuongdcdev/shade-trader/internal/platform/near"
	"github.com/cuongdcdev/shade-trader/internal/service"
	"github.com/cuongdcdev/shade-trader/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	OrderStore domain.OrderStore
	UserStore  domain.UserStore

	// Caches. Nil when Redis is disabled.
	SnapshotCache domain.SnapshotCache
	LockManager   domain.LockManager
	RateLimiter   domain.RateLimiter

	// Settlement
	Registry *intents.Registry
	Engine   *intents.Engine

	// Market data, cache-fronted.
	Market *service.MarketService

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.UserStore = postgres.NewUserStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		if cfg.Scheduler.DistributedLock {
			deps.LockManager = redis.NewLockManager(redisClient)
		}
	}

	// --- Token registry ---
	deps.Registry = loadRegistry(ctx, cfg.Intents.TokenListURL, logger)

	// --- Market data ---
	cg := coingecko.NewClient(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Market.ExtraCoins, logger)
	deps.Market = service.NewMarketService(deps.SnapshotCache, cg, cfg.Market.SnapshotTTL.Duration, logger)

	// --- Settlement engine ---
	relay := intents.NewRelayClient(cfg.Intents.RelayURL, logger)
	chain := near.NewClient(cfg.Near.RPCURL, storeKeySource(deps.UserStore), logger)
	deps.Engine = intents.NewEngine(deps.Registry, relay, chain, logger).WithContract(cfg.Intents.Contract)

	// Seed the operator wallet so its orders resolve a signing key like
	// any other registered user.
	if cfg.Wallet.AccountID != "" && cfg.Wallet.PrivateKey != "" {
		if _, err := intents.NewSigner(cfg.Wallet.AccountID, cfg.Wallet.PrivateKey); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: operator wallet: %w", err)
		}
		if err := deps.UserStore.Upsert(ctx, domain.User{
			Address:        cfg.Wallet.AccountID,
			PrivateKey:     cfg.Wallet.PrivateKey,
			TelegramChatID: cfg.Notify.TelegramChatID,
			NotifyDefault:  true,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: seed operator wallet: %w", err)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// loadRegistry fetches the live token list when a URL is configured and
// falls back to the built-in registry when the fetch fails, so a flaky
// list endpoint never blocks startup.
func loadRegistry(ctx context.Context, url string, logger *slog.Logger) *intents.Registry {
	if url == "" {
		return intents.DefaultRegistry()
	}
	reg, err := intents.FetchRegistry(ctx, nil, url)
	if err != nil {
		logger.Warn("wire: token list fetch failed, using built-in registry",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return intents.DefaultRegistry()
	}
	return reg
}

// storeKeySource resolves signing keys from registered users.
func storeKeySource(users domain.UserStore) near.KeySource {
	return func(ctx context.Context, accountID string) (*intents.Signer, error) {
		user, err := users.GetByAddress(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", accountID, err)
		}
		return intents.NewSigner(user.Address, user.PrivateKey)
	}
}
