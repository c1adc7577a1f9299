// Package config defines the top-level configuration for the trading bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MAWBOT_* environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	Hyperliquid HyperliquidConfig `toml:"hyperliquid"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Feed        FeedConfig        `toml:"feed"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds the trading account credentials. WatchAddress lets
// monitor mode stream a third-party account without any key material.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	WatchAddress     string `toml:"watch_address"`
}

// HyperliquidConfig holds the exchange endpoints.
type HyperliquidConfig struct {
	APIURL  string `toml:"api_url"`
	WSURL   string `toml:"ws_url"`
	Mainnet bool   `toml:"mainnet"`
}

// StrategyConfig holds the grid and trailing take-profit parameters.
type StrategyConfig struct {
	// Symbols are the coins launched at startup.
	Symbols []string `toml:"symbols"`

	// Leverage is the cross leverage set before the initial buy.
	Leverage int `toml:"leverage"`

	// BuySize is the dollar size of the initial and reopen market buys.
	BuySize float64 `toml:"buy_size"`

	// TakeProfit is the pnl percent at which trailing tracking arms.
	TakeProfit float64 `toml:"take_profit"`

	// TrailingRetrace is how far pnl may fall from its peak before the
	// position is closed and reopened.
	TrailingRetrace float64 `toml:"trailing_retrace"`

	// DcaBaseSize is the dollar size of the first ladder rung.
	DcaBaseSize float64 `toml:"dca_base_size"`

	// DcaMultiplier scales each subsequent rung.
	DcaMultiplier float64 `toml:"dca_multiplier"`

	// DcaDeviations are the percentage offsets below the reference price.
	DcaDeviations []float64 `toml:"dca_deviations"`

	// ActionTimeout bounds each close-and-reopen sequence.
	ActionTimeout duration `toml:"action_timeout"`
}

// FeedConfig holds the account stream retry policy.
type FeedConfig struct {
	RetryDelay        duration `toml:"retry_delay"`
	MaxRetries        int      `toml:"max_retries"`
	LongRetryDelay    duration `toml:"long_retry_delay"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
}

// PostgresConfig holds the trade cycle journal connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds the live position mirror connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the cycle archive object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds the status HTTP API parameters.
type ServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Port     int    `toml:"port"`
	APIToken string `toml:"api_token"`
}

// NotifyConfig holds operator alert channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML decoding.
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

var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration a TOML file is merged onto.
func Defaults() Config {
	return Config{
		Hyperliquid: HyperliquidConfig{
			APIURL:  "https://api.hyperliquid.xyz",
			WSURL:   "wss://api.hyperliquid.xyz/ws",
			Mainnet: true,
		},
		Strategy: StrategyConfig{
			Leverage:        5,
			BuySize:         100,
			TakeProfit:      1.0,
			TrailingRetrace: 0.5,
			DcaBaseSize:     11,
			DcaMultiplier:   2,
			DcaDeviations:   []float64{1, 1.6, 6, 13},
			ActionTimeout:   duration{30 * time.Second},
		},
		Feed: FeedConfig{
			RetryDelay:        duration{5 * time.Second},
			MaxRetries:        10,
			LongRetryDelay:    duration{time.Minute},
			HeartbeatInterval: duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "mawbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mawbot-data",
			ForcePathStyle: true,
			RetentionDays:  30,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies and returns an error
// listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading needs a key; monitor mode can run without one.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Hyperliquid.APIURL == "" {
		errs = append(errs, "hyperliquid: api_url must not be empty")
	}
	if c.Hyperliquid.WSURL == "" {
		errs = append(errs, "hyperliquid: ws_url must not be empty")
	}

	if c.Strategy.BuySize <= 0 {
		errs = append(errs, "strategy: buy_size must be positive")
	}
	if c.Strategy.Leverage <= 0 {
		errs = append(errs, "strategy: leverage must be positive")
	}
	if c.Strategy.TakeProfit <= 0 {
		errs = append(errs, "strategy: take_profit must be positive")
	}
	if c.Strategy.TrailingRetrace <= 0 {
		errs = append(errs, "strategy: trailing_retrace must be positive")
	}
	if c.Strategy.DcaBaseSize <= 0 {
		errs = append(errs, "strategy: dca_base_size must be positive")
	}
	if c.Strategy.DcaMultiplier <= 0 {
		errs = append(errs, "strategy: dca_multiplier must be positive")
	}
	for i, dev := range c.Strategy.DcaDeviations {
		if dev <= 0 || dev >= 100 {
			errs = append(errs, fmt.Sprintf("strategy: dca_deviations[%d] must be in (0, 100), got %v", i, dev))
		}
	}

	if c.Feed.MaxRetries < 0 {
		errs = append(errs, "feed: max_retries must not be negative")
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
			errs = append(errs, "postgres: either dsn or host/database/user must be set")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays <= 0 {
			errs = append(errs, "s3: retention_days must be positive")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConnString assembles a PostgreSQL connection string from the discrete
// fields when no explicit DSN was configured.
func (p PostgresConfig) ConnString() string {
	if strings.TrimSpace(p.DSN) != "" {
		return p.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}
