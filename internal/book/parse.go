package book

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// ParseQuotes converts raw wire quotes into levels. It fails on the first
// entry whose price or quantity is not a decimal number, whose price is not
// positive, or whose quantity is negative. Nothing is coerced: a batch is
// either fully valid or rejected.
func ParseQuotes(quotes []domain.Quote) ([]Level, error) {
	levels := make([]Level, 0, len(quotes))
	for i, q := range quotes {
		lvl, err := ParseQuote(q)
		if err != nil {
			return nil, fmt.Errorf("book: entry %d: %w", i, err)
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// ParseDecimal parses a wire number, ignoring surrounding whitespace. Book
// quotes and trade prints both go through it.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

// ParseQuote converts a single raw quote into a level.
func ParseQuote(q domain.Quote) (Level, error) {
	price, err := ParseDecimal(q.Price)
	if err != nil {
		return Level{}, fmt.Errorf("%w: price %q: %v", domain.ErrMalformedLevel, q.Price, err)
	}
	if !price.IsPositive() {
		return Level{}, fmt.Errorf("%w: price %q is not positive", domain.ErrMalformedLevel, q.Price)
	}
	qty, err := ParseDecimal(q.Quantity)
	if err != nil {
		return Level{}, fmt.Errorf("%w: quantity %q: %v", domain.ErrMalformedLevel, q.Quantity, err)
	}
	if qty.IsNegative() {
		return Level{}, fmt.Errorf("%w: quantity %q is negative", domain.ErrMalformedLevel, q.Quantity)
	}
	return Level{Price: price, Quantity: qty}, nil
}
