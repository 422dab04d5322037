package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

func lvl(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestRenderLayout(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	err := r.Render(Frame{
		Symbol: "BTCUSDT",
		View: domain.BookView{
			Asks: []domain.PriceLevel{lvl("102", "3"), lvl("103", "4")},
			Bids: []domain.PriceLevel{lvl("100", "7"), lvl("99", "1")},
		},
		LastPrice: decimal.RequireFromString("101.5"),
		HasPrice:  true,
		Direction: domain.DirectionUp,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := "\n✨🐊BTCUSDT orderbook\n\n" +
		"💰 price" + strings.Repeat(" ", 13) + " " + "🛍 quantity" + strings.Repeat(" ", 10) + "\n" +
		"103                  4                   \n" +
		"102                  3                   \n" +
		"\n🔺 101.5\n\n" +
		"100                  7                   \n" +
		"99                   1                   \n"
	if got := buf.String(); got != want {
		t.Fatalf("unexpected frame:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderNeutralWithoutTrades(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, Options{}).Render(Frame{Symbol: "ETHUSDT"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "\n"+indicatorNeutral+" -\n") {
		t.Fatalf("expected neutral indicator and placeholder price, got %q", buf.String())
	}
}

func TestRenderDownIndicator(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Symbol: "X", HasPrice: true, LastPrice: decimal.NewFromInt(95), Direction: domain.DirectionDown}
	if err := New(&buf, Options{}).Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), indicatorDown+" 95") {
		t.Fatalf("expected down indicator, got %q", buf.String())
	}
}

func TestRenderClearScreen(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, Options{ClearScreen: true}).Render(Frame{Symbol: "X"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(buf.String(), clearScreen) {
		t.Fatalf("frame does not start with clear sequence: %q", buf.String())
	}
}

func TestRenderFlushesEveryFrame(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})
	for i := 0; i < 3; i++ {
		if err := r.Render(Frame{Symbol: "X"}); err != nil {
			t.Fatalf("Render %d: %v", i, err)
		}
		if n := strings.Count(buf.String(), "orderbook"); n != i+1 {
			t.Fatalf("after render %d sink holds %d frames", i+1, n)
		}
	}
}

type brokenPipe struct{}

var errBrokenPipe = errors.New("broken pipe")

func (brokenPipe) Write([]byte) (int, error) { return 0, errBrokenPipe }

func TestRenderPropagatesSinkErrors(t *testing.T) {
	err := New(brokenPipe{}, Options{}).Render(Frame{Symbol: "X"})
	if !errors.Is(err, errBrokenPipe) {
		t.Fatalf("err = %v, want broken pipe", err)
	}
}
