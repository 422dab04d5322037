package bybit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// Supported public categories and the order-book depths Bybit publishes for
// them.
var categoryDepths = map[string][]int{
	"spot":    {1, 50, 200, 1000},
	"linear":  {1, 50, 200, 500, 1000},
	"inverse": {1, 50, 200, 500, 1000},
}

// PublicURL returns the v5 public stream URL for host and category, e.g.
// "wss://stream.bybit.com" + "spot".
func PublicURL(host, category string) string {
	return strings.TrimRight(host, "/") + "/v5/public/" + category
}

// ValidDepth reports whether depth is a published order-book depth for the
// category.
func ValidDepth(category string, depth int) bool {
	for _, d := range categoryDepths[category] {
		if d == depth {
			return true
		}
	}
	return false
}

// OrderbookTopic is the depth stream topic, e.g. "orderbook.50.BTCUSDT".
func OrderbookTopic(depth int, symbol string) string {
	return fmt.Sprintf("orderbook.%d.%s", depth, symbol)
}

// TradeTopic is the public trade topic, e.g. "publicTrade.BTCUSDT".
func TradeTopic(symbol string) string {
	return "publicTrade." + symbol
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is an outbound operation: subscribe, unsubscribe or ping.
type WSCommand struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args,omitempty"`
}

// Envelope covers both topic pushes and operation responses.
type Envelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`

	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
}

// OrderbookData is the payload of an orderbook.{depth}.{symbol} push.
type OrderbookData struct {
	Symbol   string      `json:"s"`
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
	Seq      int64       `json:"seq"`
}

// TradeData is one entry of a publicTrade.{symbol} push.
type TradeData struct {
	Timestamp  int64  `json:"T"`
	Symbol     string `json:"s"`
	Side       string `json:"S"` // taker side: "Buy" or "Sell"
	Size       string `json:"v"`
	Price      string `json:"p"`
	TickDir    string `json:"L"`
	TradeID    string `json:"i"`
	BlockTrade bool   `json:"BT"`
}

// DecodeMessage converts a raw frame into zero or more domain events.
// Operation responses, pongs and unknown topics become a single EventOther.
// A trade push yields one EventTrade per entry in exchange order. A refused
// subscribe returns an error wrapping domain.ErrSubscribeRejected with the
// exchange's ret_msg.
func DecodeMessage(raw []byte) ([]domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bybit: decode envelope: %w", err)
	}

	switch {
	case strings.HasPrefix(env.Topic, "orderbook."):
		return decodeOrderbook(&env)
	case strings.HasPrefix(env.Topic, "publicTrade."):
		return decodeTrades(&env)
	case env.Op == "subscribe" && env.Success != nil && !*env.Success:
		return nil, fmt.Errorf("bybit: %w: %s", domain.ErrSubscribeRejected, env.RetMsg)
	default:
		return []domain.Event{{Kind: domain.EventOther, Topic: otherTopic(&env)}}, nil
	}
}

func otherTopic(env *Envelope) string {
	if env.Topic != "" {
		return env.Topic
	}
	return env.Op
}

func decodeOrderbook(env *Envelope) ([]domain.Event, error) {
	var data OrderbookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("bybit: decode %s: %w", env.Topic, err)
	}

	ev := domain.Event{
		Symbol:    data.Symbol,
		Topic:     env.Topic,
		UpdateID:  data.UpdateID,
		Asks:      toQuotes(data.Asks),
		Bids:      toQuotes(data.Bids),
		Timestamp: millis(env.TS),
	}
	switch env.Type {
	case "snapshot":
		ev.Kind = domain.EventSnapshot
	case "delta":
		ev.Kind = domain.EventDelta
	default:
		return nil, fmt.Errorf("bybit: %s: unknown push type %q", env.Topic, env.Type)
	}
	return []domain.Event{ev}, nil
}

func decodeTrades(env *Envelope) ([]domain.Event, error) {
	var data []TradeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("bybit: decode %s: %w", env.Topic, err)
	}

	events := make([]domain.Event, 0, len(data))
	for _, t := range data {
		events = append(events, domain.Event{
			Kind:      domain.EventTrade,
			Symbol:    t.Symbol,
			Topic:     env.Topic,
			TradeID:   t.TradeID,
			Price:     t.Price,
			Size:      t.Size,
			Side:      t.Side,
			Timestamp: millis(t.Timestamp),
		})
	}
	return events, nil
}

func toQuotes(raw [][2]string) []domain.Quote {
	quotes := make([]domain.Quote, len(raw))
	for i, r := range raw {
		quotes[i] = domain.Quote{Price: r[0], Quantity: r[1]}
	}
	return quotes
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
