package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

type memCache struct {
	mu   sync.Mutex
	tops map[string]domain.BookView
	err  error
}

func (c *memCache) SetTop(_ context.Context, symbol string, view domain.BookView, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.tops == nil {
		c.tops = make(map[string]domain.BookView)
	}
	c.tops[symbol] = view
	return nil
}

func (c *memCache) GetTop(_ context.Context, symbol string) (domain.BookView, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tops[symbol]
	if !ok {
		return domain.BookView{}, time.Time{}, domain.ErrNotFound
	}
	return v, time.Time{}, nil
}

type busMessage struct {
	name    string
	payload []byte
}

type memBus struct {
	mu        sync.Mutex
	published []busMessage
	appended  []busMessage
	err       error
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, busMessage{channel, payload})
	return nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.appended = append(b.appended, busMessage{stream, payload})
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) appendedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.appended)
}

type memTrades struct {
	mu      sync.Mutex
	batches [][]domain.Trade
	err     error
}

func (s *memTrades) InsertBatch(_ context.Context, trades []domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]domain.Trade(nil), trades...))
	return nil
}

func (s *memTrades) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *memTrades) inserted() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *memTrades) GetLastTimestamp(context.Context, string) (time.Time, error) {
	return time.Time{}, domain.ErrNotFound
}

func (s *memTrades) ListBySymbol(context.Context, string, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memTrades) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memTrades) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func level(p, q string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
}

func tradeUpdate(id, price string) domain.BookUpdate {
	return domain.BookUpdate{
		Symbol:    "BTCUSDT",
		Kind:      domain.EventTrade,
		LastPrice: decimal.RequireFromString(price),
		HasPrice:  true,
		Trade: &domain.Trade{
			Symbol:  "BTCUSDT",
			TradeID: id,
			Price:   decimal.RequireFromString(price),
		},
	}
}
