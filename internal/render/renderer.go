// Package render draws the top-of-book ladder and last trade as text.
package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

const (
	indicatorUp      = "🔺"
	indicatorDown    = "🔻"
	indicatorNeutral = "▪️"

	// clearScreen moves the cursor home and clears the terminal.
	clearScreen = "\x1b[H\x1b[2J"
)

// Frame is everything one render needs.
type Frame struct {
	Symbol    string
	View      domain.BookView
	LastPrice decimal.Decimal
	HasPrice  bool
	Direction domain.Direction
}

// FrameFromUpdate builds a Frame from a processed book update.
func FrameFromUpdate(u domain.BookUpdate) Frame {
	return Frame{
		Symbol:    u.Symbol,
		View:      u.View,
		LastPrice: u.LastPrice,
		HasPrice:  u.HasPrice,
		Direction: u.Direction,
	}
}

// Options tweak the output.
type Options struct {
	ClearScreen bool
}

// Renderer writes frames to a sink. Each Render call is written through a
// buffer and flushed before returning, so frames never interleave.
type Renderer struct {
	out  *bufio.Writer
	opts Options
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	return &Renderer{
		out:  bufio.NewWriterSize(w, 8192),
		opts: opts,
	}
}

// Render writes f and flushes the sink.
func (r *Renderer) Render(f Frame) error {
	if r.opts.ClearScreen {
		if _, err := r.out.WriteString(clearScreen); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	if err := WriteFrame(r.out, f); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("render: flush: %w", err)
	}
	return nil
}

// WriteFrame formats f into w. Asks are printed worst to best so the ladder
// reads high to low toward the spread, then the last trade, then bids best
// first.
func WriteFrame(w io.Writer, f Frame) error {
	if _, err := fmt.Fprintf(w, "\n✨🐊%s orderbook\n\n", f.Symbol); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-20s %-20s\n", "💰 price", "🛍 quantity"); err != nil {
		return err
	}
	for i := len(f.View.Asks) - 1; i >= 0; i-- {
		if err := writeLevel(w, f.View.Asks[i]); err != nil {
			return err
		}
	}

	last := "-"
	if f.HasPrice {
		last = f.LastPrice.String()
	}
	if _, err := fmt.Fprintf(w, "\n%s %s\n\n", indicator(f.Direction), last); err != nil {
		return err
	}

	for _, lvl := range f.View.Bids {
		if err := writeLevel(w, lvl); err != nil {
			return err
		}
	}
	return nil
}

func writeLevel(w io.Writer, lvl domain.PriceLevel) error {
	_, err := fmt.Fprintf(w, "%-20s %-20s\n", lvl.Price.String(), lvl.Quantity.String())
	return err
}

func indicator(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return indicatorUp
	case domain.DirectionDown:
		return indicatorDown
	default:
		return indicatorNeutral
	}
}
