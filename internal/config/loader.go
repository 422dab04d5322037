package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is where Load looks when no -config flag is given. A missing
// file at this path is not an error.
const DefaultPath = "config.toml"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEPTHVIEW_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !(path == DefaultPath && errors.Is(err, fs.ErrNotExist)) {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Instrument.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Instrument.Symbol))
	cfg.Instrument.Category = strings.ToLower(cfg.Instrument.Category)
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEPTHVIEW_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Instrument ──
	setStr(&cfg.Instrument.Symbol, "COIN") // .env compatibility alias
	setStr(&cfg.Instrument.Symbol, "DEPTHVIEW_INSTRUMENT_SYMBOL")
	setStr(&cfg.Instrument.Category, "DEPTHVIEW_INSTRUMENT_CATEGORY")
	setInt(&cfg.Instrument.Depth, "DEPTHVIEW_INSTRUMENT_DEPTH")
	setInt(&cfg.Instrument.BookLevels, "DEPTHVIEW_INSTRUMENT_BOOK_LEVELS")

	// ── Bybit ──
	setStr(&cfg.Bybit.WsHost, "DEPTHVIEW_BYBIT_WS_HOST")
	setDuration(&cfg.Bybit.PingInterval, "DEPTHVIEW_BYBIT_PING_INTERVAL")
	setDuration(&cfg.Bybit.ReconnectDelay, "DEPTHVIEW_BYBIT_RECONNECT_DELAY")
	setDuration(&cfg.Bybit.MaxReconnectDelay, "DEPTHVIEW_BYBIT_MAX_RECONNECT_DELAY")
	setInt(&cfg.Bybit.MaxReconnects, "DEPTHVIEW_BYBIT_MAX_RECONNECTS")

	// ── Render ──
	setBool(&cfg.Render.ClearScreen, "DEPTHVIEW_RENDER_CLEAR_SCREEN")
	setInt(&cfg.Render.PendingLimit, "DEPTHVIEW_RENDER_PENDING_LIMIT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DEPTHVIEW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEPTHVIEW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEPTHVIEW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEPTHVIEW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEPTHVIEW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEPTHVIEW_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "DEPTHVIEW_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.OpTimeout, "DEPTHVIEW_REDIS_OP_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEPTHVIEW_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform convention
	setStr(&cfg.Postgres.Host, "DEPTHVIEW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEPTHVIEW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEPTHVIEW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEPTHVIEW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEPTHVIEW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEPTHVIEW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEPTHVIEW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEPTHVIEW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEPTHVIEW_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DEPTHVIEW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEPTHVIEW_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEPTHVIEW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEPTHVIEW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEPTHVIEW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEPTHVIEW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEPTHVIEW_S3_FORCE_PATH_STYLE")

	// ── Tape / Archive ──
	setInt(&cfg.Tape.BatchSize, "DEPTHVIEW_TAPE_BATCH_SIZE")
	setDuration(&cfg.Tape.FlushInterval, "DEPTHVIEW_TAPE_FLUSH_INTERVAL")
	setInt64(&cfg.Tape.StreamMaxLen, "DEPTHVIEW_TAPE_STREAM_MAX_LEN")
	setBool(&cfg.Archive.Enabled, "DEPTHVIEW_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "DEPTHVIEW_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "DEPTHVIEW_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "DEPTHVIEW_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "DEPTHVIEW_SERVER_API_KEY")
	if v := os.Getenv("DEPTHVIEW_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEPTHVIEW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEPTHVIEW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEPTHVIEW_NOTIFY_DISCORD_WEBHOOK_URL")
	if v := os.Getenv("DEPTHVIEW_NOTIFY_EVENTS"); v != "" {
		cfg.Notify.Events = splitList(v)
	}

	// ── Top-level ──
	setStr(&cfg.Mode, "DEPTHVIEW_MODE")
	setStr(&cfg.LogLevel, "DEPTHVIEW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

// splitList parses a comma-separated env value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

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
