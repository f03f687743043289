package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SHADE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SHADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.AccountID, "SHADE_WALLET_ACCOUNT_ID")
	setStr(&cfg.Wallet.PrivateKey, "SHADE_WALLET_PRIVATE_KEY")

	// ── Intents ──
	setStr(&cfg.Intents.RelayURL, "SHADE_INTENTS_RELAY_URL")
	setStr(&cfg.Intents.Contract, "SHADE_INTENTS_CONTRACT")
	setStr(&cfg.Intents.TokenListURL, "SHADE_INTENTS_TOKEN_LIST_URL")
	setStr(&cfg.Intents.BaseToken, "SHADE_INTENTS_BASE_TOKEN")

	// ── NEAR ──
	setStr(&cfg.Near.RPCURL, "SHADE_NEAR_RPC_URL")

	// ── Market ──
	setStr(&cfg.Market.BaseURL, "SHADE_MARKET_BASE_URL")
	setStr(&cfg.Market.APIKey, "SHADE_MARKET_API_KEY")
	setDuration(&cfg.Market.SnapshotTTL, "SHADE_MARKET_SNAPSHOT_TTL")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.Interval, "SHADE_SCHEDULER_INTERVAL")
	setDuration(&cfg.Scheduler.LockTTL, "SHADE_SCHEDULER_LOCK_TTL")
	setBool(&cfg.Scheduler.DistributedLock, "SHADE_SCHEDULER_DISTRIBUTED_LOCK")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SHADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SHADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SHADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SHADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SHADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SHADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SHADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SHADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SHADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SHADE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SHADE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SHADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SHADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SHADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SHADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SHADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SHADE_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SHADE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SHADE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SHADE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "SHADE_SERVER_RATE_LIMIT_PER_MIN")
	setStringSlice(&cfg.Server.CORSOrigins, "SHADE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SHADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SHADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SHADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SHADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SHADE_MODE")
	setStr(&cfg.LogLevel, "SHADE_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
