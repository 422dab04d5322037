package book

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// OrderBook owns the ask and bid sides of a single instrument. It is not safe
// for concurrent use; one goroutine owns it and hands out copies via Top.
type OrderBook struct {
	asks  *Side
	bids  *Side
	ready bool
}

// New returns an empty order book.
func New() *OrderBook {
	return &OrderBook{
		asks: NewSide(Ascending),
		bids: NewSide(Descending),
	}
}

// ApplySnapshot replaces both sides wholesale.
func (ob *OrderBook) ApplySnapshot(asks, bids []Level) {
	ob.asks.Replace(asks)
	ob.bids.Replace(bids)
	ob.ready = true
}

// ApplyDelta merges a delta batch into each side independently.
func (ob *OrderBook) ApplyDelta(asks, bids []Level) {
	ob.asks.Apply(asks)
	ob.bids.Apply(bids)
}

// Top returns up to n best levels per side. It never mutates the book and is
// safe to call before any snapshot has been applied.
func (ob *OrderBook) Top(n int) domain.BookView {
	return domain.BookView{
		Asks: ob.asks.Top(n),
		Bids: ob.bids.Top(n),
	}
}

// Ready reports whether a snapshot has defined the book's base.
func (ob *OrderBook) Ready() bool { return ob.ready }

// Reset empties both sides and marks the book as awaiting a snapshot.
func (ob *OrderBook) Reset() {
	ob.asks.Clear()
	ob.bids.Clear()
	ob.ready = false
}

// Depth returns the number of stored levels on each side.
func (ob *OrderBook) Depth() (asks, bids int) {
	return ob.asks.Len(), ob.bids.Len()
}

// BestAsk returns the lowest ask.
func (ob *OrderBook) BestAsk() (Level, bool) { return ob.asks.Best() }

// BestBid returns the highest bid.
func (ob *OrderBook) BestBid() (Level, bool) { return ob.bids.Best() }

// Spread returns best ask minus best bid when both sides are populated.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	ask, okA := ob.asks.Best()
	bid, okB := ob.bids.Best()
	if !okA || !okB {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}
