// Package app provides the top-level application lifecycle. It wires the
// optional storage backends, builds the feed, processor and mirrors for the
// configured mode, and runs them as one goroutine group.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/depthview/internal/config"
	"github.com/alanyoungcy/depthview/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	notifier  *notify.Notifier
	sessionID string
	startedAt time.Time
	closers   []func()
}

// New creates a new App that renders to stdout.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app")),
		out:       os.Stdout,
		notifier:  newNotifier(cfg, logger),
		sessionID: uuid.New().String(),
		startedAt: time.Now().UTC(),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// goroutines of the configured mode, and blocks until the context is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("symbol", a.cfg.Instrument.Symbol),
		slog.String("session_id", a.sessionID),
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch a.cfg.Mode {
	case config.ModeWatch, config.ModeRecord, config.ModeFull:
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.alert(ctx, notify.EventSessionStarted, fmt.Sprintf("session %s started in %s mode", a.sessionID, a.cfg.Mode))
	err = a.runMode(ctx, deps)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.alert(context.WithoutCancel(ctx), notify.EventSessionFailed, err.Error())
	}
	return err
}

// alert sends an operator notification. Delivery failures are only logged.
func (a *App) alert(ctx context.Context, event, message string) {
	if err := a.notifier.Notify(ctx, event, message); err != nil {
		a.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func newNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, cfg.Instrument.Symbol, logger)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
