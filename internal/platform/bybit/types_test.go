package bybit

import (
	"errors"
	"strings"
	"testing"

	"github.com/alanyoungcy/depthview/internal/domain"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kinds []domain.EventKind
	}{
		{"snapshot", snapshotFrame, []domain.EventKind{domain.EventSnapshot}},
		{
			"delta",
			`{"topic":"orderbook.50.BTCUSDT","type":"delta","ts":1,"data":{"s":"BTCUSDT","b":[],"a":[["101","0"]],"u":18521289}}`,
			[]domain.EventKind{domain.EventDelta},
		},
		{
			"trades keep exchange order",
			`{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1,"data":[` +
				`{"i":"1","T":1,"p":"100","v":"1","S":"Buy","s":"BTCUSDT"},` +
				`{"i":"2","T":2,"p":"105","v":"1","S":"Sell","s":"BTCUSDT"}]}`,
			[]domain.EventKind{domain.EventTrade, domain.EventTrade},
		},
		{"pong", `{"success":true,"ret_msg":"pong","conn_id":"abc","op":"ping"}`, []domain.EventKind{domain.EventOther}},
		{"subscribe ack", `{"success":true,"ret_msg":"","conn_id":"abc","op":"subscribe"}`, []domain.EventKind{domain.EventOther}},
		{"unknown topic", `{"topic":"tickers.BTCUSDT","type":"snapshot","data":{}}`, []domain.EventKind{domain.EventOther}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := DecodeMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			if len(events) != len(tt.kinds) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.kinds))
			}
			for i, k := range tt.kinds {
				if events[i].Kind != k {
					t.Errorf("event %d kind = %s, want %s", i, events[i].Kind, k)
				}
			}
		})
	}
}

func TestDecodeOrderbookFields(t *testing.T) {
	events, err := DecodeMessage([]byte(snapshotFrame))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	ev := events[0]
	if ev.Symbol != "BTCUSDT" || ev.Topic != "orderbook.50.BTCUSDT" {
		t.Fatalf("identity = %q %q", ev.Symbol, ev.Topic)
	}
	if ev.Bids[0] != (domain.Quote{Price: "100", Quantity: "5"}) {
		t.Fatalf("best bid = %+v", ev.Bids[0])
	}
	if ev.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestDecodeTradeOrder(t *testing.T) {
	raw := `{"topic":"publicTrade.BTCUSDT","ts":1,"data":[` +
		`{"i":"a","T":1,"p":"100","v":"1","S":"Buy","s":"BTCUSDT"},` +
		`{"i":"b","T":2,"p":"95","v":"2","S":"Sell","s":"BTCUSDT"}]}`
	events, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if events[0].TradeID != "a" || events[1].TradeID != "b" || events[1].Price != "95" {
		t.Fatalf("events = %+v", events)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	for _, raw := range []string{
		`{`,
		`{"topic":"orderbook.50.BTCUSDT","type":"delta","data":"oops"}`,
		`{"topic":"orderbook.50.BTCUSDT","type":"weird","data":{"s":"X"}}`,
		`{"topic":"publicTrade.BTCUSDT","data":{"p":"1"}}`,
	} {
		if _, err := DecodeMessage([]byte(raw)); err == nil {
			t.Errorf("DecodeMessage(%s) succeeded", raw)
		}
	}
}

func TestDecodeMessageSubscribeRejected(t *testing.T) {
	raw := `{"success":false,"ret_msg":"Invalid symbol :[orderbook.50.BTCUSDX]","conn_id":"abc","op":"subscribe"}`
	events, err := DecodeMessage([]byte(raw))
	if !errors.Is(err, domain.ErrSubscribeRejected) {
		t.Fatalf("err = %v, want ErrSubscribeRejected", err)
	}
	if !strings.Contains(err.Error(), "Invalid symbol :[orderbook.50.BTCUSDX]") {
		t.Fatalf("err = %q, want ret_msg included", err)
	}
	if events != nil {
		t.Fatalf("events = %+v, want none", events)
	}
}

func TestTopicsAndURL(t *testing.T) {
	if got := OrderbookTopic(50, "ETHUSDT"); got != "orderbook.50.ETHUSDT" {
		t.Fatalf("OrderbookTopic = %s", got)
	}
	if got := PublicURL("wss://stream.bybit.com/", "spot"); got != "wss://stream.bybit.com/v5/public/spot" {
		t.Fatalf("PublicURL = %s", got)
	}
	if !ValidDepth("spot", 50) || ValidDepth("spot", 500) || ValidDepth("option", 50) {
		t.Fatal("ValidDepth mismatch")
	}
}
