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
// built-in defaults, applies MAWBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known MAWBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// --- Wallet ---
	setStr(&cfg.Wallet.PrivateKey, "MAWBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "MAWBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "MAWBOT_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.WatchAddress, "MAWBOT_WALLET_WATCH_ADDRESS")

	// --- Hyperliquid ---
	setStr(&cfg.Hyperliquid.APIURL, "MAWBOT_HYPERLIQUID_API_URL")
	setStr(&cfg.Hyperliquid.WSURL, "MAWBOT_HYPERLIQUID_WS_URL")
	setBool(&cfg.Hyperliquid.Mainnet, "MAWBOT_HYPERLIQUID_MAINNET")

	// --- Strategy ---
	setStringSlice(&cfg.Strategy.Symbols, "MAWBOT_STRATEGY_SYMBOLS")
	setInt(&cfg.Strategy.Leverage, "MAWBOT_STRATEGY_LEVERAGE")
	setFloat64(&cfg.Strategy.BuySize, "MAWBOT_STRATEGY_BUY_SIZE")
	setFloat64(&cfg.Strategy.TakeProfit, "MAWBOT_STRATEGY_TAKE_PROFIT")
	setFloat64(&cfg.Strategy.TrailingRetrace, "MAWBOT_STRATEGY_TRAILING_RETRACE")
	setFloat64(&cfg.Strategy.DcaBaseSize, "MAWBOT_STRATEGY_DCA_BASE_SIZE")
	setFloat64(&cfg.Strategy.DcaMultiplier, "MAWBOT_STRATEGY_DCA_MULTIPLIER")
	setFloatSlice(&cfg.Strategy.DcaDeviations, "MAWBOT_STRATEGY_DCA_DEVIATIONS")
	setDuration(&cfg.Strategy.ActionTimeout, "MAWBOT_STRATEGY_ACTION_TIMEOUT")

	// --- Feed ---
	setDuration(&cfg.Feed.RetryDelay, "MAWBOT_FEED_RETRY_DELAY")
	setInt(&cfg.Feed.MaxRetries, "MAWBOT_FEED_MAX_RETRIES")
	setDuration(&cfg.Feed.LongRetryDelay, "MAWBOT_FEED_LONG_RETRY_DELAY")
	setDuration(&cfg.Feed.HeartbeatInterval, "MAWBOT_FEED_HEARTBEAT_INTERVAL")

	// --- Postgres ---
	setBool(&cfg.Postgres.Enabled, "MAWBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MAWBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MAWBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MAWBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MAWBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MAWBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MAWBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MAWBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MAWBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MAWBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MAWBOT_POSTGRES_RUN_MIGRATIONS")

	// --- Redis ---
	setBool(&cfg.Redis.Enabled, "MAWBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MAWBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MAWBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MAWBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MAWBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MAWBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MAWBOT_REDIS_TLS_ENABLED")

	// --- S3 ---
	setBool(&cfg.S3.Enabled, "MAWBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MAWBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MAWBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "MAWBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MAWBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MAWBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MAWBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MAWBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "MAWBOT_S3_RETENTION_DAYS")

	// --- Server ---
	setBool(&cfg.Server.Enabled, "MAWBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MAWBOT_SERVER_PORT")
	setStr(&cfg.Server.APIToken, "MAWBOT_SERVER_API_TOKEN")

	// --- Notify ---
	setStr(&cfg.Notify.TelegramToken, "MAWBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MAWBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MAWBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MAWBOT_NOTIFY_EVENTS")

	// --- Top-level ---
	setStr(&cfg.Mode, "MAWBOT_MODE")
	setStr(&cfg.LogLevel, "MAWBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setFloatSlice(dst *[]float64, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		parsed := make([]float64, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return
			}
			parsed = append(parsed, f)
		}
		if len(parsed) > 0 {
			*dst = parsed
		}
	}
}
