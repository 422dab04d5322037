package domain

import "time"

// EventKind classifies a decoded feed event.
type EventKind int

const (
	EventOther EventKind = iota
	EventSnapshot
	EventDelta
	EventTrade
)

// String returns the kind name used in logs and metric labels.
func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventDelta:
		return "delta"
	case EventTrade:
		return "trade"
	default:
		return "other"
	}
}

// Quote is a raw (price, quantity) pair exactly as decoded from the wire.
// Parsing into decimals is left to the book so that malformed entries are
// rejected in one place.
type Quote struct {
	Price    string
	Quantity string
}

// Event is a decoded market-data event delivered by a feed.
//
// Snapshot and Delta events carry Asks/Bids. Trade events carry Price, Size,
// Side and TradeID. UpdateID is the exchange sequence for book events, or 0
// when the venue does not provide one.
type Event struct {
	Kind      EventKind
	Symbol    string
	Topic     string
	UpdateID  int64
	Asks      []Quote
	Bids      []Quote
	TradeID   string
	Price     string
	Size      string
	Side      string
	Timestamp time.Time
}
