package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/depthview/internal/cache/redis"
	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/feed"
	"github.com/alanyoungcy/depthview/internal/metrics"
	"github.com/alanyoungcy/depthview/internal/notify"
	"github.com/alanyoungcy/depthview/internal/pipeline"
	"github.com/alanyoungcy/depthview/internal/platform/bybit"
	"github.com/alanyoungcy/depthview/internal/processor"
	"github.com/alanyoungcy/depthview/internal/render"
	"github.com/alanyoungcy/depthview/internal/server"
	"github.com/alanyoungcy/depthview/internal/server/handler"
	"github.com/alanyoungcy/depthview/internal/server/ws"
	"github.com/alanyoungcy/depthview/internal/service"
)

// eventBuffer bounds the queue between the socket reader and the processor.
const eventBuffer = 256

// runner is a long-lived goroutine of the group.
type runner struct {
	name string
	run  func(ctx context.Context) error
}

// components is everything a mode runs besides the feed and processor.
type components struct {
	mirrors []processor.Mirror
	runners []runner
	metrics *metrics.Metrics
}

// runMode starts the feed, the processor and the mode's extra components in
// one errgroup. The first failure cancels the rest.
func (a *App) runMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting mode", slog.String("mode", a.cfg.Mode))

	c := a.buildComponents(deps)

	feedCfg := feed.BybitConfig{
		URL:               bybit.PublicURL(a.cfg.Bybit.WsHost, a.cfg.Instrument.Category),
		Symbol:            a.cfg.Instrument.Symbol,
		BookLevels:        a.cfg.Instrument.BookLevels,
		PingInterval:      a.cfg.Bybit.PingInterval.Duration,
		ReconnectDelay:    a.cfg.Bybit.ReconnectDelay.Duration,
		MaxReconnectDelay: a.cfg.Bybit.MaxReconnectDelay.Duration,
		MaxReconnects:     a.cfg.Bybit.MaxReconnects,
	}
	feedCfg.OnReconnect = func(reason string) {
		if c.metrics != nil {
			c.metrics.Reconnect(reason)
		}
		if reason == "dropped" {
			a.alert(ctx, notify.EventStreamDropped, "stream dropped, reconnecting")
		}
	}
	var opts []processor.Option
	if c.metrics != nil {
		opts = append(opts, processor.WithCounters(c.metrics))
	}
	opts = append(opts, processor.WithMirrors(c.mirrors...))

	src := feed.NewBybitFeed(feedCfg, a.logger)
	proc := processor.New(processor.Config{
		Symbol:       a.cfg.Instrument.Symbol,
		SessionID:    a.sessionID,
		Depth:        a.cfg.Instrument.Depth,
		PendingLimit: a.cfg.Render.PendingLimit,
	}, render.New(a.out, render.Options{ClearScreen: a.cfg.Render.ClearScreen}), a.logger, opts...)

	g, ctx := errgroup.WithContext(ctx)
	events := make(chan domain.Event, eventBuffer)

	g.Go(func() error {
		defer close(events)
		return src.Run(ctx, events)
	})
	g.Go(func() error {
		return proc.Run(ctx, events)
	})
	for _, r := range c.runners {
		g.Go(func() error {
			a.logger.DebugContext(ctx, "starting component", slog.String("component", r.name))
			return r.run(ctx)
		})
	}

	return g.Wait()
}

// buildComponents assembles the mirrors and background jobs for the mode.
// Mirrors run in order after every rendered event.
func (a *App) buildComponents(deps *Dependencies) components {
	var c components

	if a.cfg.Records() {
		symbol := a.cfg.Instrument.Symbol
		keys := redis.NewKeyspace(a.cfg.Redis.KeyPrefix)
		if deps.BookCache != nil {
			c.mirrors = append(c.mirrors,
				service.NewBookPublisher(deps.BookCache, deps.SignalBus, keys.BookChannel(symbol), a.logger))
		}
		if deps.TradeStore != nil {
			tape := service.NewTapeRecorder(deps.TradeStore, deps.SignalBus, service.TapeConfig{
				BatchSize:     a.cfg.Tape.BatchSize,
				FlushInterval: a.cfg.Tape.FlushInterval.Duration,
				Stream:        keys.TradeStream(symbol),
			}, a.logger)
			c.mirrors = append(c.mirrors, tape)
			c.runners = append(c.runners, runner{name: "tape_recorder", run: tape.Run})
		}
		if deps.Archiver != nil {
			archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
			interval := a.cfg.Archive.Interval.Duration
			c.runners = append(c.runners, runner{name: "archiver", run: func(ctx context.Context) error {
				return archiver.Run(ctx, interval)
			}})
		}
	}

	if a.cfg.Serves() {
		m := metrics.New()
		live := service.NewLiveBook()
		hub := ws.NewHub(ws.Config{
			Symbol:         a.cfg.Instrument.Symbol,
			Mode:           a.cfg.Mode,
			StartedAt:      a.startedAt,
			AllowedOrigins: a.cfg.Server.CORSOrigins,
		}, a.logger)
		c.metrics = m
		c.mirrors = append(c.mirrors, m, live, hub)

		handlers := server.Handlers{
			Health: handler.NewHealthHandler(deps.Checks, a.logger),
			Status: &handler.StatusHandler{
				Mode:      a.cfg.Mode,
				Symbol:    a.cfg.Instrument.Symbol,
				SessionID: a.sessionID,
				StartedAt: a.startedAt,
			},
			Book:    handler.NewBookHandler(live, a.logger),
			Metrics: m.Handler(),
		}
		if deps.TradeStore != nil {
			handlers.Trades = handler.NewTradeHandler(deps.TradeStore, a.cfg.Instrument.Symbol, a.logger)
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, handlers, hub, a.logger)

		c.runners = append(c.runners,
			runner{name: "ws_hub", run: hub.Run},
			runner{name: "server", run: srv.Run},
		)
	}

	return c
}
