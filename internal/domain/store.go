package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists the observed trade tape.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	GetLastTimestamp(ctx context.Context, symbol string) (time.Time, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
