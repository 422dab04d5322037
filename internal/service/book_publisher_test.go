package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
)

func TestBookPublisherWritesCacheAndPublishes(t *testing.T) {
	cache, bus := &memCache{}, &memBus{}
	p := NewBookPublisher(cache, bus, "ch:book:BTCUSDT", discard())

	u := domain.BookUpdate{
		SessionID: "s1",
		Symbol:    "BTCUSDT",
		Kind:      domain.EventSnapshot,
		UpdateID:  9,
		View: domain.BookView{
			Asks: []domain.PriceLevel{level("101.5", "2")},
			Bids: []domain.PriceLevel{level("100", "1")},
		},
		Timestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := p.Observe(context.Background(), u); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	view, _, err := cache.GetTop(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetTop: %v", err)
	}
	if len(view.Asks) != 1 || view.Asks[0].Price.String() != "101.5" {
		t.Fatalf("cached asks = %+v", view.Asks)
	}

	if len(bus.published) != 1 || bus.published[0].name != "ch:book:BTCUSDT" {
		t.Fatalf("published = %+v", bus.published)
	}
	var frame map[string]any
	if err := json.Unmarshal(bus.published[0].payload, &frame); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if frame["event"] != "snapshot" || frame["direction"] != "unknown" || frame["update_id"] != float64(9) {
		t.Fatalf("frame = %v", frame)
	}
	if _, ok := frame["last_price"]; ok {
		t.Fatalf("frame carries last_price before any trade: %v", frame)
	}
	asks := frame["asks"].([]any)
	if asks[0].(map[string]any)["price"] != "101.5" {
		t.Fatalf("ask price not an exact decimal string: %v", asks[0])
	}
}

func TestBookPublisherSkipsCacheForTrades(t *testing.T) {
	cache, bus := &memCache{err: errors.New("must not be called")}, &memBus{}
	p := NewBookPublisher(cache, bus, "ch", discard())

	if err := p.Observe(context.Background(), tradeUpdate("t1", "100")); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(bus.published[0].payload, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["last_price"] != "100" {
		t.Fatalf("last_price = %v, want \"100\"", frame["last_price"])
	}
	if frame["bids"] == nil {
		t.Fatal("empty side marshalled as null")
	}
}

func TestBookPublisherErrors(t *testing.T) {
	boom := errors.New("redis down")

	t.Run("cache failure is returned", func(t *testing.T) {
		p := NewBookPublisher(&memCache{err: boom}, nil, "ch", discard())
		err := p.Observe(context.Background(), domain.BookUpdate{Kind: domain.EventDelta})
		if !errors.Is(err, boom) {
			t.Fatalf("Observe = %v, want %v", err, boom)
		}
	})

	t.Run("publish failure is swallowed", func(t *testing.T) {
		p := NewBookPublisher(&memCache{}, &memBus{err: boom}, "ch", discard())
		if err := p.Observe(context.Background(), domain.BookUpdate{Kind: domain.EventDelta}); err != nil {
			t.Fatalf("Observe = %v, want nil", err)
		}
	})
}
