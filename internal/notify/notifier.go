// Package notify sends operator alerts about the watch session to chat
// services. Alerts are filtered by event type so operators receive only the
// ones they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Event types an operator can filter on.
const (
	EventSessionStarted = "session_started"
	EventStreamDropped  = "stream_dropped"
	EventSessionFailed  = "session_failed"
)

// sendTimeout bounds one dispatch so a slow chat API cannot stall the caller.
const sendTimeout = 5 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	symbol  string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given symbol. Only events whose type
// appears in events are forwarded; an empty list allows every event.
func NewNotifier(senders []Sender, events []string, symbol string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		symbol:  symbol,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify sends message to every sender if event passes the filter. The title
// is prefixed with the watched symbol.
func (n *Notifier) Notify(ctx context.Context, event, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return n.dispatch(ctx, fmt.Sprintf("depthview %s: %s", n.symbol, event), message)
}

// dispatch delivers to every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
