// Package redis mirrors the live book and trade tape into Redis using
// go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds a single round trip. Mirrors write once per book
// update, so a stalled server must fail fast instead of holding up the
// processor.
const DefaultOpTimeout = 500 * time.Millisecond

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool

	// KeyPrefix namespaces every key and channel, so several sessions can
	// share one database. Empty writes bare keys.
	KeyPrefix string
	// OpTimeout is the read and write timeout per command.
	OpTimeout time.Duration
	// Symbol names the connection in CLIENT LIST.
	Symbol string
}

// Keyspace builds the key, channel and stream names for one prefix.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns the keyspace for prefix. Trailing colons are ignored.
func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.TrimRight(prefix, ":")}
}

func (k Keyspace) key(parts ...string) string {
	name := strings.Join(parts, ":")
	if k.prefix == "" {
		return name
	}
	return k.prefix + ":" + name
}

// Book returns the name of one part of the cached book for symbol, e.g.
// "asks" or "ask:size".
func (k Keyspace) Book(symbol, part string) string { return k.key("book", symbol, part) }

// BookChannel is the Pub/Sub channel carrying book frames for symbol.
func (k Keyspace) BookChannel(symbol string) string { return k.key("ch", "book", symbol) }

// TradeStream is the stream holding the observed trades for symbol.
func (k Keyspace) TradeStream(symbol string) string { return k.key("stream", "trades", symbol) }

// Client is a connected go-redis client plus the keyspace it writes under.
type Client struct {
	rdb  *redis.Client
	keys Keyspace
}

// New connects and pings. The ping uses ctx, not OpTimeout, so a slow first
// connection can still succeed.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is empty")
	}
	rdb := redis.NewClient(options(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, keys: NewKeyspace(cfg.KeyPrefix)}, nil
}

func options(cfg ClientConfig) *redis.Options {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		ClientName:   clientName(cfg.Symbol),
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func clientName(symbol string) string {
	if symbol == "" {
		return "depthview"
	}
	return "depthview-" + strings.ToLower(symbol)
}

// Keys returns the keyspace the mirrors write under.
func (c *Client) Keys() Keyspace { return c.keys }

// Ping is the health check registered for /api/health.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
