package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single public trade print for the watched instrument.
type Trade struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Symbol    string          `json:"symbol"`
	TradeID   string          `json:"trade_id"`
	Side      string          `json:"side"` // aggressor: "Buy" or "Sell"
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Direction Direction       `json:"direction"`
	Timestamp time.Time       `json:"timestamp"`
}
