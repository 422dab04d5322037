package book

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderBookEndToEnd(t *testing.T) {
	ob := New()
	ob.ApplySnapshot(
		levels("101", "2", "102", "3"),
		levels("100", "5", "99", "1"),
	)
	ob.ApplyDelta(
		levels("101", "0", "103", "4"),
		levels("100", "7"),
	)

	view := ob.Top(10)
	assertLevels(t, view.Asks, levels("102", "3", "103", "4"))
	assertLevels(t, view.Bids, levels("100", "7", "99", "1"))
}

func TestOrderBookSnapshotResetsState(t *testing.T) {
	ob := New()
	ob.ApplySnapshot(levels("101", "1"), levels("100", "1"))
	ob.ApplyDelta(levels("150", "2", "160", "3"), levels("50", "2", "40", "1"))

	ob.ApplySnapshot(levels("201", "1", "202", "2"), levels("200", "4"))

	view := ob.Top(100)
	assertLevels(t, view.Asks, levels("201", "1", "202", "2"))
	assertLevels(t, view.Bids, levels("200", "4"))
}

func TestOrderBookTopBeforeSnapshot(t *testing.T) {
	ob := New()
	if ob.Ready() {
		t.Fatal("new book reports ready")
	}
	view := ob.Top(10)
	if len(view.Asks) != 0 || len(view.Bids) != 0 {
		t.Fatalf("expected empty view, got %d asks and %d bids", len(view.Asks), len(view.Bids))
	}
}

func TestOrderBookTopTruncates(t *testing.T) {
	asks := make([]Level, 0, 500)
	bids := make([]Level, 0, 500)
	// Insert in an order unrelated to rank so Top cannot rely on input order.
	for i := 0; i < 500; i++ {
		p := (i*7)%500 + 1
		asks = append(asks, lv(strconv.Itoa(1000+p), "1"))
		bids = append(bids, lv(strconv.Itoa(p), "1"))
	}
	ob := New()
	ob.ApplySnapshot(asks, bids)

	view := ob.Top(10)
	if len(view.Asks) != 10 || len(view.Bids) != 10 {
		t.Fatalf("Top(10) returned %d asks and %d bids", len(view.Asks), len(view.Bids))
	}
	for i := 0; i < 10; i++ {
		if want := decimal.NewFromInt(int64(1001 + i)); !view.Asks[i].Price.Equal(want) {
			t.Fatalf("ask %d = %s, want %s", i, view.Asks[i].Price, want)
		}
		if want := decimal.NewFromInt(int64(500 - i)); !view.Bids[i].Price.Equal(want) {
			t.Fatalf("bid %d = %s, want %s", i, view.Bids[i].Price, want)
		}
	}
	if a, b := ob.Depth(); a != 500 || b != 500 {
		t.Fatalf("depth = %d/%d, want 500/500", a, b)
	}
}

func TestOrderBookSpread(t *testing.T) {
	ob := New()
	if _, ok := ob.Spread(); ok {
		t.Fatal("spread on empty book")
	}
	ob.ApplySnapshot(levels("101.5", "1"), levels("100.25", "1"))
	spread, ok := ob.Spread()
	if !ok || !spread.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("spread = %s (%v), want 1.25", spread, ok)
	}

	ob.Reset()
	if ob.Ready() {
		t.Fatal("book ready after Reset")
	}
	if a, b := ob.Depth(); a != 0 || b != 0 {
		t.Fatalf("depth after Reset = %d/%d", a, b)
	}
}
