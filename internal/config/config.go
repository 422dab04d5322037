// Package config defines the top-level configuration for depthview and
// provides validation helpers.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from an
// optional TOML file and then overridden by DEPTHVIEW_* environment
// variables.
type Config struct {
	Instrument InstrumentConfig `toml:"instrument"`
	Bybit      BybitConfig      `toml:"bybit"`
	Render     RenderConfig     `toml:"render"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Tape       TapeConfig       `toml:"tape"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// InstrumentConfig selects the single instrument watched for a session.
type InstrumentConfig struct {
	Symbol   string `toml:"symbol"`
	Category string `toml:"category"`
	// Depth is the number of levels rendered per side.
	Depth int `toml:"depth"`
	// BookLevels is the depth of the subscribed order-book stream.
	BookLevels int `toml:"book_levels"`
}

// BybitConfig holds the public stream endpoint and connection tuning.
type BybitConfig struct {
	WsHost            string   `toml:"ws_host"`
	PingInterval      duration `toml:"ping_interval"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	MaxReconnectDelay duration `toml:"max_reconnect_delay"`
	// MaxReconnects is the number of consecutive failed connections after
	// which the feed gives up. Zero retries forever.
	MaxReconnects int `toml:"max_reconnects"`
}

// RenderConfig controls the terminal output.
type RenderConfig struct {
	ClearScreen  bool `toml:"clear_screen"`
	PendingLimit int  `toml:"pending_limit"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`

	// KeyPrefix namespaces book keys, the frame channel and the trade stream.
	KeyPrefix string   `toml:"key_prefix"`
	OpTimeout duration `toml:"op_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN wins over the
// discrete fields when set.
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

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TapeConfig controls how observed trades are batched into Postgres and the
// Redis trade stream.
type TapeConfig struct {
	BatchSize     int      `toml:"batch_size"`
	FlushInterval duration `toml:"flush_interval"`
	StreamMaxLen  int64    `toml:"stream_max_len"`
}

// ArchiveConfig controls moving old trades from Postgres to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters. The server only runs in full
// mode.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on every request except the health check.
	APIKey string `toml:"api_key"`
}

// NotifyConfig configures operator alerts. Leaving every sender empty
// disables notifications.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"` // empty allows every event
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Instrument: InstrumentConfig{
			Symbol:     "BTCUSDT",
			Category:   "spot",
			Depth:      10,
			BookLevels: 50,
		},
		Bybit: BybitConfig{
			WsHost:            "wss://stream.bybit.com",
			PingInterval:      duration{20 * time.Second},
			ReconnectDelay:    duration{2 * time.Second},
			MaxReconnectDelay: duration{60 * time.Second},
		},
		Render: RenderConfig{
			PendingLimit: 1024,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "depthview",
			OpTimeout:  duration{500 * time.Millisecond},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "depthview-data",
			ForcePathStyle: true,
		},
		Tape: TapeConfig{
			BatchSize:     200,
			FlushInterval: duration{2 * time.Second},
			StreamMaxLen:  10_000,
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			Interval:      duration{time.Hour},
			RetentionDays: 7,
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Mode:     ModeWatch,
		LogLevel: "info",
	}
}

// Operating modes.
const (
	ModeWatch  = "watch"  // feed, processor and terminal only
	ModeRecord = "record" // watch plus Redis, Postgres and S3 mirrors
	ModeFull   = "full"   // record plus the HTTP server
)

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeWatch:  true,
	ModeRecord: true,
	ModeFull:   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validBookLevels lists the order-book depths Bybit publishes per category.
var validBookLevels = map[string][]int{
	"spot":    {1, 50, 200, 1000},
	"linear":  {1, 50, 200, 500, 1000},
	"inverse": {1, 50, 200, 500, 1000},
}

// Records reports whether the mode persists data to Redis, Postgres and S3.
func (c *Config) Records() bool {
	m := strings.ToLower(c.Mode)
	return m == ModeRecord || m == ModeFull
}

// Serves reports whether the mode runs the HTTP server.
func (c *Config) Serves() bool {
	return strings.ToLower(c.Mode) == ModeFull
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, record, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Instrument
	if strings.TrimSpace(c.Instrument.Symbol) == "" {
		errs = append(errs, "instrument: symbol must not be empty (set instrument.symbol or COIN)")
	}
	if c.Instrument.Depth < 1 {
		errs = append(errs, fmt.Sprintf("instrument: depth must be >= 1, got %d", c.Instrument.Depth))
	}
	levels, ok := validBookLevels[c.Instrument.Category]
	if !ok {
		errs = append(errs, fmt.Sprintf("instrument: unknown category %q (valid: spot, linear, inverse)", c.Instrument.Category))
	} else if !slices.Contains(levels, c.Instrument.BookLevels) {
		errs = append(errs, fmt.Sprintf("instrument: book_levels %d not published for %s (valid: %v)", c.Instrument.BookLevels, c.Instrument.Category, levels))
	} else if c.Instrument.Depth > c.Instrument.BookLevels {
		errs = append(errs, fmt.Sprintf("instrument: depth %d exceeds book_levels %d", c.Instrument.Depth, c.Instrument.BookLevels))
	}

	// Bybit
	if c.Bybit.WsHost == "" {
		errs = append(errs, "bybit: ws_host must not be empty")
	}
	if c.Bybit.PingInterval.Duration <= 0 {
		errs = append(errs, "bybit: ping_interval must be > 0")
	}
	if c.Bybit.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "bybit: reconnect_delay must be > 0")
	}
	if c.Bybit.MaxReconnectDelay.Duration < c.Bybit.ReconnectDelay.Duration {
		errs = append(errs, "bybit: max_reconnect_delay must not be below reconnect_delay")
	}
	if c.Bybit.MaxReconnects < 0 {
		errs = append(errs, "bybit: max_reconnects must be >= 0")
	}

	// Render
	if c.Render.PendingLimit < 1 {
		errs = append(errs, "render: pending_limit must be >= 1")
	}

	if c.Records() {
		errs = append(errs, c.validateStorage()...)
	}

	if c.Serves() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateStorage() []string {
	var errs []string

	// Postgres
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.OpTimeout.Duration <= 0 {
		errs = append(errs, "redis: op_timeout must be > 0")
	}

	// Tape
	if c.Tape.BatchSize < 1 {
		errs = append(errs, "tape: batch_size must be >= 1")
	}
	if c.Tape.FlushInterval.Duration <= 0 {
		errs = append(errs, "tape: flush_interval must be > 0")
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}
	return errs
}
