// Package book maintains a single-instrument limit order book from a snapshot
// followed by incremental delta batches.
package book

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// Level is one price level. Stored quantities are always positive.
type Level = domain.PriceLevel

// Order is the sort direction of a Side.
type Order int

const (
	// Ascending sorts lowest price first (asks).
	Ascending Order = iota
	// Descending sorts highest price first (bids).
	Descending
)

// Side is one half of the book: a price-unique sequence of levels kept fully
// sorted by the side's order after every Apply.
type Side struct {
	order   Order
	levels  []Level
	scratch []Level
}

// NewSide returns an empty side sorted by order.
func NewSide(order Order) *Side {
	return &Side{order: order}
}

// ahead reports whether price a sorts strictly before price b on this side.
func (s *Side) ahead(a, b decimal.Decimal) bool {
	if s.order == Ascending {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}

func (s *Side) compare(a, b Level) int {
	c := a.Price.Cmp(b.Price)
	if s.order == Descending {
		return -c
	}
	return c
}

// Len returns the number of stored levels.
func (s *Side) Len() int { return len(s.levels) }

// Best returns the best-ranked level, if any.
func (s *Side) Best() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	return s.levels[0], true
}

// Top returns a copy of up to n best levels.
func (s *Side) Top(n int) []Level {
	if n <= 0 {
		return []Level{}
	}
	n = min(n, len(s.levels))
	out := make([]Level, n)
	copy(out, s.levels[:n])
	return out
}

// Replace discards the current levels and loads levels as a fresh base.
// The input is de-duplicated by price (the last entry wins), zero quantities
// are dropped and the result is sorted by the side's order.
func (s *Side) Replace(levels []Level) {
	batch := s.sortedBatch(levels)

	out := s.levels[:0]
	for i, lvl := range batch {
		// The batch is stable-sorted, so the last entry for a price is the
		// last of its run.
		if i+1 < len(batch) && batch[i+1].Price.Equal(lvl.Price) {
			continue
		}
		if lvl.Quantity.IsZero() {
			continue
		}
		out = append(out, lvl)
	}
	s.levels = out
}

// Apply merges a delta batch received in a single message.
//
// For each entry, in received order: a zero quantity removes the level at that
// price (no-op if absent), a non-zero quantity at an existing price replaces
// its quantity, and a non-zero quantity at a new price is inserted at its
// sorted position.
//
// The batch is stable-sorted by side order, then merged against the existing
// levels with two cursors into a reused scratch slice, so one message costs
// O(depth + k log k) and the book itself is never re-sorted.
func (s *Side) Apply(deltas []Level) {
	if len(deltas) == 0 {
		return
	}
	batch := s.sortedBatch(deltas)

	merged := s.scratch[:0]
	j := 0
	for _, d := range batch {
		for j < len(s.levels) && s.ahead(s.levels[j].Price, d.Price) {
			merged = append(merged, s.levels[j])
			j++
		}

		// An earlier entry of this batch already placed the same price.
		if n := len(merged); n > 0 && merged[n-1].Price.Equal(d.Price) {
			if d.Quantity.IsZero() {
				merged = merged[:n-1]
			} else {
				merged[n-1].Quantity = d.Quantity
			}
			continue
		}

		if j < len(s.levels) && s.levels[j].Price.Equal(d.Price) {
			j++
			if !d.Quantity.IsZero() {
				merged = append(merged, Level{Price: s.levels[j-1].Price, Quantity: d.Quantity})
			}
			continue
		}

		if !d.Quantity.IsZero() {
			merged = append(merged, d)
		}
	}
	merged = append(merged, s.levels[j:]...)

	s.scratch = s.levels
	s.levels = merged
}

// Clear removes every level.
func (s *Side) Clear() {
	s.levels = s.levels[:0]
}

// sortedBatch returns a stable-sorted copy of levels in side order, reusing
// no storage owned by the caller.
func (s *Side) sortedBatch(levels []Level) []Level {
	batch := slices.Clone(levels)
	slices.SortStableFunc(batch, s.compare)
	return batch
}
