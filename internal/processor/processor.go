// Package processor routes decoded feed events into the order book and the
// trade tracker and renders the result after every state change.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/book"
	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/render"
	"github.com/alanyoungcy/depthview/internal/tracker"
)

// DefaultPendingLimit bounds the number of deltas held while waiting for the
// first snapshot.
const DefaultPendingLimit = 1024

// Outcomes reported to Counters.
const (
	OutcomeApplied   = "applied"
	OutcomeBuffered  = "buffered"
	OutcomeStale     = "stale"
	OutcomeMalformed = "malformed"
	OutcomeIgnored   = "ignored"
	OutcomeDropped   = "dropped"
)

// Renderer draws one frame.
type Renderer interface {
	Render(render.Frame) error
}

// Mirror observes the state after every rendered event. Errors are logged
// and never stop processing.
type Mirror interface {
	Observe(ctx context.Context, u domain.BookUpdate) error
}

// Counters records per-event outcomes.
type Counters interface {
	CountEvent(kind domain.EventKind, outcome string)
}

// Config holds the session parameters fixed at construction.
type Config struct {
	Symbol       string
	SessionID    string
	Depth        int
	PendingLimit int
}

// Processor is the single consumer of the event channel. It owns the order
// book and tracker; nothing else touches them.
type Processor struct {
	cfg      Config
	book     *book.OrderBook
	tracker  *tracker.Tracker
	renderer Renderer
	mirrors  []Mirror
	counters Counters
	logger   *slog.Logger

	lastUpdateID int64
	pending      []domain.Event
}

// Option configures optional collaborators.
type Option func(*Processor)

// WithMirrors registers state observers.
func WithMirrors(m ...Mirror) Option {
	return func(p *Processor) { p.mirrors = append(p.mirrors, m...) }
}

// WithCounters registers an outcome counter.
func WithCounters(c Counters) Option {
	return func(p *Processor) { p.counters = c }
}

// New creates a Processor rendering through r.
func New(cfg Config, r Renderer, logger *slog.Logger, opts ...Option) *Processor {
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = DefaultPendingLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		cfg:      cfg,
		book:     book.New(),
		tracker:  tracker.New(),
		renderer: r,
		logger:   logger.With(slog.String("component", "processor")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes events until the channel closes (returns nil), ctx is
// cancelled (returns ctx.Err()), or rendering fails (returns an error
// wrapping domain.ErrRenderFailed).
func (p *Processor) Run(ctx context.Context, events <-chan domain.Event) error {
	p.logger.Info("processor started",
		slog.String("symbol", p.cfg.Symbol),
		slog.Int("depth", p.cfg.Depth),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				p.logger.Info("event stream closed")
				return nil
			}
			if err := p.Handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// Handle processes a single event. Only render failures are returned;
// malformed input is logged and skipped.
func (p *Processor) Handle(ctx context.Context, ev domain.Event) error {
	var (
		changed bool
		trade   *domain.Trade
		err     error
	)

	switch ev.Kind {
	case domain.EventSnapshot:
		changed, err = p.handleSnapshot(ev)
	case domain.EventDelta:
		changed, err = p.handleDelta(ev)
	case domain.EventTrade:
		trade, err = p.handleTrade(ev)
		changed = trade != nil
	default:
		p.count(ev.Kind, OutcomeIgnored)
		return nil
	}

	if err != nil {
		p.count(ev.Kind, OutcomeMalformed)
		p.logger.Warn("skipping malformed event",
			slog.String("kind", ev.Kind.String()),
			slog.Int64("update_id", ev.UpdateID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !changed {
		return nil
	}

	update := p.state(ev, trade)
	if err := p.renderer.Render(render.FrameFromUpdate(update)); err != nil {
		return fmt.Errorf("processor: %w: %w", domain.ErrRenderFailed, err)
	}
	p.notify(ctx, update)
	return nil
}

func (p *Processor) handleSnapshot(ev domain.Event) (bool, error) {
	asks, err := book.ParseQuotes(ev.Asks)
	if err != nil {
		return false, fmt.Errorf("asks: %w", err)
	}
	bids, err := book.ParseQuotes(ev.Bids)
	if err != nil {
		return false, fmt.Errorf("bids: %w", err)
	}

	p.book.ApplySnapshot(asks, bids)
	p.lastUpdateID = ev.UpdateID
	p.count(ev.Kind, OutcomeApplied)

	if len(p.pending) > 0 {
		pending := p.pending
		p.pending = nil
		replayed := 0
		for _, d := range pending {
			if ev.UpdateID != 0 && d.UpdateID != 0 && d.UpdateID <= ev.UpdateID {
				continue
			}
			if _, err := p.applyDelta(d); err != nil {
				p.count(d.Kind, OutcomeMalformed)
				p.logger.Warn("skipping malformed buffered delta",
					slog.Int64("update_id", d.UpdateID),
					slog.String("error", err.Error()),
				)
				continue
			}
			replayed++
		}
		p.logger.Debug("replayed buffered deltas",
			slog.Int("buffered", len(pending)),
			slog.Int("replayed", replayed),
		)
	}
	return true, nil
}

func (p *Processor) handleDelta(ev domain.Event) (bool, error) {
	if !p.book.Ready() {
		if len(p.pending) >= p.cfg.PendingLimit {
			p.pending = p.pending[1:]
			p.count(ev.Kind, OutcomeDropped)
			p.logger.Warn("pending delta buffer full, dropping oldest",
				slog.Int("limit", p.cfg.PendingLimit),
			)
		}
		p.pending = append(p.pending, ev)
		p.count(ev.Kind, OutcomeBuffered)
		return false, nil
	}

	if ev.UpdateID != 0 && p.lastUpdateID != 0 && ev.UpdateID <= p.lastUpdateID {
		p.count(ev.Kind, OutcomeStale)
		p.logger.Debug("dropping stale delta",
			slog.Int64("update_id", ev.UpdateID),
			slog.Int64("last_update_id", p.lastUpdateID),
		)
		return false, nil
	}
	return p.applyDelta(ev)
}

// applyDelta parses both sides before touching the book so a malformed
// entry leaves the book unchanged.
func (p *Processor) applyDelta(ev domain.Event) (bool, error) {
	asks, err := book.ParseQuotes(ev.Asks)
	if err != nil {
		return false, fmt.Errorf("asks: %w", err)
	}
	bids, err := book.ParseQuotes(ev.Bids)
	if err != nil {
		return false, fmt.Errorf("bids: %w", err)
	}
	p.book.ApplyDelta(asks, bids)
	if ev.UpdateID != 0 {
		p.lastUpdateID = ev.UpdateID
	}
	p.count(domain.EventDelta, OutcomeApplied)
	return true, nil
}

func (p *Processor) handleTrade(ev domain.Event) (*domain.Trade, error) {
	price, err := book.ParseDecimal(ev.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", domain.ErrMalformedTrade, ev.Price)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive price %s", domain.ErrMalformedTrade, price)
	}
	size := decimal.Zero
	if strings.TrimSpace(ev.Size) != "" {
		size, err = book.ParseDecimal(ev.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: size %q", domain.ErrMalformedTrade, ev.Size)
		}
	}

	dir := p.tracker.Observe(price)
	p.count(ev.Kind, OutcomeApplied)

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &domain.Trade{
		SessionID: p.cfg.SessionID,
		Symbol:    p.symbol(ev),
		TradeID:   ev.TradeID,
		Side:      ev.Side,
		Price:     price,
		Size:      size,
		Direction: dir,
		Timestamp: ts,
	}, nil
}

func (p *Processor) state(ev domain.Event, trade *domain.Trade) domain.BookUpdate {
	last, has := p.tracker.LastPrice()
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return domain.BookUpdate{
		SessionID: p.cfg.SessionID,
		Symbol:    p.symbol(ev),
		Kind:      ev.Kind,
		UpdateID:  p.lastUpdateID,
		View:      p.book.Top(p.cfg.Depth),
		LastPrice: last,
		HasPrice:  has,
		Direction: p.tracker.Direction(),
		Trade:     trade,
		Timestamp: ts,
	}
}

func (p *Processor) notify(ctx context.Context, u domain.BookUpdate) {
	for _, m := range p.mirrors {
		if err := m.Observe(ctx, u); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warn("mirror failed",
				slog.String("kind", u.Kind.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Processor) count(kind domain.EventKind, outcome string) {
	if p.counters != nil {
		p.counters.CountEvent(kind, outcome)
	}
}

func (p *Processor) symbol(ev domain.Event) string {
	if p.cfg.Symbol != "" {
		return p.cfg.Symbol
	}
	return ev.Symbol
}

// Pending returns the number of deltas waiting for a snapshot.
func (p *Processor) Pending() int { return len(p.pending) }
