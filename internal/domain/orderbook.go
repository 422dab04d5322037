package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+quantity entry on one side of the book.
// Stored levels always carry a strictly positive quantity; a zero quantity
// only ever appears in a delta, where it means "remove this price".
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookView is a read-only copy of the best levels of each side, best first.
type BookView struct {
	Asks []PriceLevel `json:"asks"`
	Bids []PriceLevel `json:"bids"`
}

// Direction is the last-trade tick indicator.
type Direction int

const (
	// DirectionUnknown is the neutral state before a second print arrives.
	DirectionUnknown Direction = iota
	DirectionUp
	DirectionDown
	DirectionUnchanged
)

// String returns the lower-case name used in logs and JSON payloads.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of String. Unrecognized names map to
// DirectionUnknown.
func ParseDirection(s string) Direction {
	switch s {
	case "up":
		return DirectionUp
	case "down":
		return DirectionDown
	case "unchanged":
		return DirectionUnchanged
	default:
		return DirectionUnknown
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// BookUpdate is the state published after every processed snapshot, delta or
// trade event. View holds copies, so observers may keep it.
type BookUpdate struct {
	SessionID string
	Symbol    string
	Kind      EventKind
	UpdateID  int64
	View      BookView
	LastPrice decimal.Decimal
	HasPrice  bool
	Direction Direction
	Trade     *Trade // set only for EventTrade
	Timestamp time.Time
}
