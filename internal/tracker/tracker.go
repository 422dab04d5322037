// Package tracker follows the last trade price and its tick direction.
package tracker

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// Tracker holds the last observed trade price.
//
// Direction is the display indicator: it moves to Up or Down on a higher or
// lower print and is retained on an equal print. LastTick is the comparison
// of the most recent print alone, so an equal print reports Unchanged there.
// Both stay Unknown until a second print can be compared with the first.
type Tracker struct {
	last      decimal.Decimal
	hasLast   bool
	direction domain.Direction
	tick      domain.Direction
	trades    int
}

// New returns a tracker in the neutral Unknown state.
func New() *Tracker {
	return &Tracker{}
}

// Observe records a trade print and returns the resulting display direction.
func (t *Tracker) Observe(price decimal.Decimal) domain.Direction {
	t.trades++
	if !t.hasLast {
		t.last = price
		t.hasLast = true
		return t.direction
	}

	switch price.Cmp(t.last) {
	case -1:
		t.direction = domain.DirectionDown
		t.tick = domain.DirectionDown
	case 1:
		t.direction = domain.DirectionUp
		t.tick = domain.DirectionUp
	default:
		t.tick = domain.DirectionUnchanged
	}
	t.last = price
	return t.direction
}

// LastPrice returns the last observed price and whether any trade was seen.
func (t *Tracker) LastPrice() (decimal.Decimal, bool) {
	return t.last, t.hasLast
}

// Direction returns the display direction.
func (t *Tracker) Direction() domain.Direction { return t.direction }

// LastTick returns the direction of the most recent print alone.
func (t *Tracker) LastTick() domain.Direction { return t.tick }

// Trades returns the number of prints observed.
func (t *Tracker) Trades() int { return t.trades }
