package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// BookPublisher mirrors every rendered book state into the orderbook cache and
// broadcasts it as a JSON frame on the signal bus.
type BookPublisher struct {
	bookCache domain.OrderbookCache
	bus       domain.SignalBus
	channel   string
	logger    *slog.Logger
}

// NewBookPublisher creates a BookPublisher. bus may be nil, in which case only
// the cache is written.
func NewBookPublisher(
	bookCache domain.OrderbookCache,
	bus domain.SignalBus,
	channel string,
	logger *slog.Logger,
) *BookPublisher {
	return &BookPublisher{
		bookCache: bookCache,
		bus:       bus,
		channel:   channel,
		logger:    logger.With(slog.String("component", "book_publisher")),
	}
}

// BookFrame is the JSON shape of one book state, shared by the signal bus
// and the HTTP API.
type BookFrame struct {
	Event     string              `json:"event"`
	SessionID string              `json:"session_id"`
	Symbol    string              `json:"symbol"`
	UpdateID  int64               `json:"update_id,omitempty"`
	Asks      []domain.PriceLevel `json:"asks"`
	Bids      []domain.PriceLevel `json:"bids"`
	LastPrice *decimal.Decimal    `json:"last_price,omitempty"`
	Direction domain.Direction    `json:"direction"`
	Timestamp string              `json:"timestamp"`
}

// Observe writes the top-of-book to the cache when the book changed and then
// publishes the frame. A failed publish is logged and does not fail the call.
func (p *BookPublisher) Observe(ctx context.Context, u domain.BookUpdate) error {
	if u.Kind == domain.EventSnapshot || u.Kind == domain.EventDelta {
		if err := p.bookCache.SetTop(ctx, u.Symbol, u.View, u.Timestamp); err != nil {
			return fmt.Errorf("book_publisher: set top for %q: %w", u.Symbol, err)
		}
	}
	if p.bus == nil {
		return nil
	}

	payload, err := json.Marshal(NewBookFrame(u))
	if err != nil {
		return fmt.Errorf("book_publisher: marshal frame: %w", err)
	}
	if pubErr := p.bus.Publish(ctx, p.channel, payload); pubErr != nil {
		p.logger.WarnContext(ctx, "book_publisher: publish frame failed",
			slog.String("symbol", u.Symbol),
			slog.String("channel", p.channel),
			slog.String("error", pubErr.Error()),
		)
	}
	return nil
}

// NewBookFrame converts an update into its wire form. Empty sides encode as
// [] rather than null.
func NewBookFrame(u domain.BookUpdate) BookFrame {
	f := BookFrame{
		Event:     u.Kind.String(),
		SessionID: u.SessionID,
		Symbol:    u.Symbol,
		UpdateID:  u.UpdateID,
		Asks:      nonNil(u.View.Asks),
		Bids:      nonNil(u.View.Bids),
		Direction: u.Direction,
		Timestamp: u.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if u.HasPrice {
		price := u.LastPrice
		f.LastPrice = &price
	}
	return f
}

func nonNil(levels []domain.PriceLevel) []domain.PriceLevel {
	if levels == nil {
		return []domain.PriceLevel{}
	}
	return levels
}
