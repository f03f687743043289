// Package config defines the top-level configuration for the trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by SHADE_* environment
// variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Intents   IntentsConfig   `toml:"intents"`
	Near      NearConfig      `toml:"near"`
	Market    MarketConfig    `toml:"market"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the operator's NEAR account credentials. Orders
// placed through the API carry their own per-user keys; this wallet is
// the default signing identity for single-user deployments.
type WalletConfig struct {
	AccountID  string `toml:"account_id"`
	PrivateKey string `toml:"private_key"`
}

// IntentsConfig holds settlement-network endpoints and trade defaults.
type IntentsConfig struct {
	RelayURL     string `toml:"relay_url"`
	Contract     string `toml:"contract"`
	TokenListURL string `toml:"token_list_url"`
	BaseToken    string `toml:"base_token"`
}

// NearConfig holds NEAR JSON-RPC parameters.
type NearConfig struct {
	RPCURL string `toml:"rpc_url"`
}

// MarketConfig holds market-data provider parameters.
type MarketConfig struct {
	BaseURL     string            `toml:"base_url"`
	APIKey      string            `toml:"api_key"`
	ExtraCoins  map[string]string `toml:"extra_coins"`
	SnapshotTTL duration          `toml:"snapshot_ttl"`
}

// SchedulerConfig holds the evaluation loop parameters.
type SchedulerConfig struct {
	Interval        duration `toml:"interval"`
	LockTTL         duration `toml:"lock_ttl"`
	DistributedLock bool     `toml:"distributed_lock"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// RedisConfig holds Redis connection parameters. Redis is optional;
// when disabled the bot runs without the snapshot cache and without
// distributed locking.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
	// RateLimitPerMin bounds requests per client per minute. Zero
	// disables limiting; it also requires Redis.
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
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
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Intents: IntentsConfig{
			RelayURL:     "https://solver-relay-v2.chaindefuser.com/rpc",
			Contract:     "intents.near",
			TokenListURL: "",
			BaseToken:    "USDC",
		},
		Near: NearConfig{
			RPCURL: "https://rpc.mainnet.near.org",
		},
		Market: MarketConfig{
			BaseURL:     "https://api.coingecko.com/api/v3",
			ExtraCoins:  map[string]string{},
			SnapshotTTL: duration{60 * time.Second},
		},
		Scheduler: SchedulerConfig{
			Interval:        duration{30 * time.Second},
			LockTTL:         duration{2 * time.Minute},
			DistributedLock: false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "shadetrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"order_executed", "order_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are needed whenever orders can execute.
	needsWallet := c.Mode == "trade" || c.Mode == "full"
	if needsWallet {
		if c.Wallet.AccountID == "" {
			errs = append(errs, "wallet: account_id must be set for mode "+c.Mode)
		}
		if c.Wallet.PrivateKey == "" {
			errs = append(errs, "wallet: private_key must be set for mode "+c.Mode)
		}
	}

	if c.Intents.RelayURL == "" {
		errs = append(errs, "intents: relay_url must not be empty")
	}
	if c.Intents.Contract == "" {
		errs = append(errs, "intents: contract must not be empty")
	}
	if c.Intents.BaseToken == "" {
		errs = append(errs, "intents: base_token must not be empty")
	}

	if c.Near.RPCURL == "" {
		errs = append(errs, "near: rpc_url must not be empty")
	}

	if c.Market.BaseURL == "" {
		errs = append(errs, "market: base_url must not be empty")
	}
	if c.Market.SnapshotTTL.Duration < 0 {
		errs = append(errs, "market: snapshot_ttl must not be negative")
	}

	if c.Scheduler.Interval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("scheduler: interval must be >= 1s, got %s", c.Scheduler.Interval))
	}
	if c.Scheduler.DistributedLock && !c.Redis.Enabled {
		errs = append(errs, "scheduler: distributed_lock requires redis.enabled")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
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

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must be >= 0")
		}
		if c.Server.RateLimitPerMin > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit_per_min requires redis.enabled")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
