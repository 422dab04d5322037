// Package feed delivers decoded market-data events from an exchange stream
// into a single-consumer channel.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/platform/bybit"
)

// BybitConfig holds the stream parameters for one instrument.
type BybitConfig struct {
	URL               string
	Symbol            string
	BookLevels        int
	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// MaxReconnects stops the feed after this many consecutive failed
	// connections. Zero retries forever.
	MaxReconnects int
	// OnReconnect, when set, is called before each reconnect wait with
	// "dropped" for a connection that delivered events and "failed" otherwise.
	OnReconnect func(reason string)
}

// BybitFeed subscribes to the order-book and public-trade topics of one
// symbol and forwards every decoded event to a channel. It reconnects with
// exponential backoff; each new connection starts with a fresh snapshot.
type BybitFeed struct {
	cfg    BybitConfig
	logger *slog.Logger

	// dial is swapped in tests.
	dial func(url string, ping time.Duration) wsConn
}

type wsConn interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topics ...string) error
	OnEvent(bybit.EventHandler)
	OnDecodeError(bybit.ErrorHandler)
	Done() <-chan struct{}
	Err() error
	Close() error
}

// NewBybitFeed creates a feed. Zero delays fall back to 2s and 60s.
func NewBybitFeed(cfg BybitConfig, logger *slog.Logger) *BybitFeed {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = 60 * time.Second
	}
	if cfg.BookLevels <= 0 {
		cfg.BookLevels = 50
	}
	return &BybitFeed{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "bybit_ws_feed")),
		dial: func(url string, ping time.Duration) wsConn {
			return bybit.NewWSClient(url, ping)
		},
	}
}

// Run streams events into out until ctx is cancelled, the reconnect budget
// is exhausted or the exchange rejects the subscription. It never closes
// out; the caller owns the channel.
func (f *BybitFeed) Run(ctx context.Context, out chan<- domain.Event) error {
	delay := f.cfg.ReconnectDelay
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delivered, err := f.runConnection(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrSubscribeRejected) {
			f.logger.Error("bybit ws subscription rejected",
				slog.String("symbol", f.cfg.Symbol),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("feed: %w", err)
		}
		if delivered {
			delay = f.cfg.ReconnectDelay
			failures = 0
		} else {
			failures++
		}
		if f.cfg.MaxReconnects > 0 && failures >= f.cfg.MaxReconnects {
			return fmt.Errorf("feed: giving up after %d attempts: %w: %w", failures, domain.ErrFeedClosed, err)
		}

		if f.cfg.OnReconnect != nil {
			reason := "failed"
			if delivered {
				reason = "dropped"
			}
			f.cfg.OnReconnect(reason)
		}
		f.logger.Warn("bybit ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if !delivered {
			delay *= 2
			if delay > f.cfg.MaxReconnectDelay {
				delay = f.cfg.MaxReconnectDelay
			}
		}
	}
}

// runConnection holds one connection open. It reports whether any event made
// it through, which resets the backoff.
func (f *BybitFeed) runConnection(ctx context.Context, out chan<- domain.Event) (bool, error) {
	client := f.dial(f.cfg.URL, f.cfg.PingInterval)
	defer client.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var delivered atomic.Bool
	client.OnEvent(func(ev domain.Event) {
		select {
		case out <- ev:
			delivered.Store(true)
		case <-connCtx.Done():
		}
	})
	client.OnDecodeError(func(raw []byte, err error) {
		f.logger.Warn("dropping undecodable frame",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(raw)),
		)
	})

	dialCtx, dialCancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(dialCtx)
	dialCancel()
	if err != nil {
		return false, err
	}

	topics := []string{
		bybit.OrderbookTopic(f.cfg.BookLevels, f.cfg.Symbol),
		bybit.TradeTopic(f.cfg.Symbol),
	}
	if err := client.Subscribe(ctx, topics...); err != nil {
		return false, err
	}
	f.logger.Info("bybit ws subscribed",
		slog.String("symbol", f.cfg.Symbol),
		slog.Any("topics", topics),
	)

	select {
	case <-ctx.Done():
		return delivered.Load(), ctx.Err()
	case <-client.Done():
		return delivered.Load(), client.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
