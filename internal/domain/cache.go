package domain

import (
	"context"
	"time"
)

// OrderbookCache mirrors the top-of-book view for other processes to read.
type OrderbookCache interface {
	SetTop(ctx context.Context, symbol string, view BookView, ts time.Time) error
	GetTop(ctx context.Context, symbol string) (BookView, time.Time, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
