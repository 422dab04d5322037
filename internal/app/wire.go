package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/depthview/internal/blob/s3"
	"github.com/alanyoungcy/depthview/internal/cache/redis"
	"github.com/alanyoungcy/depthview/internal/config"
	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/server/handler"
	"github.com/alanyoungcy/depthview/internal/store/postgres"
)

// bookTTL lets cached books expire once the process stops refreshing them.
const bookTTL = time.Minute

// Dependencies bundles the storage backends the recording modes need. In
// watch mode every field stays nil.
type Dependencies struct {
	BookCache  domain.OrderbookCache
	SignalBus  domain.SignalBus
	TradeStore domain.TradeStore
	Archiver   domain.Archiver

	// Checks probes each connected backend for /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}
	if !cfg.Records() {
		return deps, cleanup, nil
	}

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
	tradeStore := postgres.NewTradeStore(pgClient.Pool())
	deps.TradeStore = tradeStore
	deps.Checks["postgres"] = pgClient.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
		OpTimeout:  cfg.Redis.OpTimeout.Duration,
		Symbol:     cfg.Instrument.Symbol,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.BookCache = redis.NewOrderbookCache(redisClient, bookTTL)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Tape.StreamMaxLen)
	deps.Checks["redis"] = redisClient.Ping

	// --- S3 blob storage (only when archival is on) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), tradeStore, logger)
		deps.Checks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}
