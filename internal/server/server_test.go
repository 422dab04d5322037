package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/server/handler"
	"github.com/alanyoungcy/depthview/internal/service"
)

type stubTrades struct {
	gotOpts domain.ListOpts
	err     error
}

func (s *stubTrades) ListBySymbol(_ context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Trade{{Symbol: symbol, TradeID: "t1", Price: decimal.RequireFromString("100.5")}}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func level(p, q string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
}

type fixture struct {
	handler http.Handler
	book    *service.LiveBook
	trades  *stubTrades
}

func newFixture(cfg Config, checks map[string]handler.Check) fixture {
	logger := discard()
	book := service.NewLiveBook()
	trades := &stubTrades{}
	h := newHandler(cfg, Handlers{
		Health: handler.NewHealthHandler(checks, logger),
		Status: &handler.StatusHandler{Mode: "full", Symbol: "BTCUSDT", StartedAt: time.Now()},
		Book:   handler.NewBookHandler(book, logger),
		Trades: handler.NewTradeHandler(trades, "BTCUSDT", logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "depthview_events_total 1\n")
		}),
	}, nil, logger)
	return fixture{handler: h, book: book, trades: trades}
}

func (f fixture) get(t *testing.T, path string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	res := rec.Result()

	var body map[string]any
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res, body
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newFixture(Config{}, map[string]handler.Check{
			"redis": func(context.Context) error { return nil },
		})
		res, body := f.get(t, "/api/health")
		if res.StatusCode != http.StatusOK || body["status"] != "ok" {
			t.Fatalf("status = %d body = %v", res.StatusCode, body)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		f := newFixture(Config{}, map[string]handler.Check{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		})
		res, body := f.get(t, "/api/health")
		if res.StatusCode != http.StatusServiceUnavailable || body["status"] != "degraded" {
			t.Fatalf("status = %d body = %v", res.StatusCode, body)
		}
		checks := body["checks"].(map[string]any)
		if checks["redis"] != "ok" || checks["postgres"] != "connection refused" {
			t.Fatalf("checks = %v", checks)
		}
	})
}

func TestGetBook(t *testing.T) {
	f := newFixture(Config{}, nil)

	res, body := f.get(t, "/api/book")
	if res.StatusCode != http.StatusServiceUnavailable || res.Header.Get("Retry-After") == "" {
		t.Fatalf("before first update: status = %d headers = %v", res.StatusCode, res.Header)
	}
	if body["error"] != "no book received yet" {
		t.Fatalf("before first update: body = %v", body)
	}

	_ = f.book.Observe(context.Background(), domain.BookUpdate{
		Symbol: "BTCUSDT",
		Kind:   domain.EventDelta,
		View: domain.BookView{
			Asks: []domain.PriceLevel{level("101", "1"), level("102", "3")},
			Bids: []domain.PriceLevel{level("100", "2"), level("99", "5")},
		},
	})

	res, body = f.get(t, "/api/book")
	if res.StatusCode != http.StatusOK || res.Header.Get("Cache-Control") != "no-store" {
		t.Fatalf("status = %d headers = %v", res.StatusCode, res.Header)
	}
	stats := body["stats"].(map[string]any)
	if stats["best_bid"] != "100" || stats["best_ask"] != "101" || stats["spread"] != "1" || stats["mid"] != "100.5" {
		t.Fatalf("stats = %v", stats)
	}
	if body["symbol"] != "BTCUSDT" || len(body["asks"].([]any)) != 2 {
		t.Fatalf("body = %v", body)
	}

	_, body = f.get(t, "/api/book?depth=1")
	if len(body["asks"].([]any)) != 1 || len(body["bids"].([]any)) != 1 {
		t.Fatalf("depth=1 body = %v", body)
	}

	res, body = f.get(t, "/api/book?depth=zero")
	if res.StatusCode != http.StatusBadRequest || body["param"] != "depth" {
		t.Fatalf("bad depth: status = %d body = %v", res.StatusCode, body)
	}
}

func TestListTrades(t *testing.T) {
	f := newFixture(Config{}, nil)

	res, body := f.get(t, "/api/trades?limit=1000&offset=5")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if f.trades.gotOpts.Limit != 500 || f.trades.gotOpts.Offset != 5 {
		t.Fatalf("opts = %+v", f.trades.gotOpts)
	}
	trades := body["trades"].([]any)
	if len(trades) != 1 || trades[0].(map[string]any)["price"] != "100.5" {
		t.Fatalf("trades = %v", trades)
	}

	res, _ = f.get(t, "/api/trades?since=1700000000000&until=2023-11-15T00:00:00Z")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("time window: status = %d", res.StatusCode)
	}
	since, until := f.trades.gotOpts.Since, f.trades.gotOpts.Until
	if since == nil || !since.Equal(time.UnixMilli(1700000000000)) || until == nil || until.Day() != 15 {
		t.Fatalf("window = %v..%v", since, until)
	}
	if f.trades.gotOpts.Limit != 50 {
		t.Fatalf("default limit = %d", f.trades.gotOpts.Limit)
	}

	f.trades.err = errors.New("pg down")
	res, body = f.get(t, "/api/trades")
	if res.StatusCode != http.StatusInternalServerError || strings.Contains(body["error"].(string), "pg down") {
		t.Fatalf("store failure: status = %d body = %v", res.StatusCode, body)
	}

	f.trades.err = fmt.Errorf("postgres: list: %w", context.DeadlineExceeded)
	if res, _ = f.get(t, "/api/trades"); res.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("store timeout: status = %d", res.StatusCode)
	}
}

func TestListTradesRejectsBadQuery(t *testing.T) {
	f := newFixture(Config{}, nil)
	tests := []struct {
		query string
		param string
	}{
		{"limit=abc", "limit"},
		{"limit=0", "limit"},
		{"offset=-1", "offset"},
		{"since=yesterday", "since"},
		{"since=2023-11-15T00:00:00Z&until=2023-11-14T00:00:00Z", "until"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, body := f.get(t, "/api/trades?"+tt.query)
			if res.StatusCode != http.StatusBadRequest || body["param"] != tt.param {
				t.Fatalf("status = %d body = %v", res.StatusCode, body)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(Config{}, nil)
	res, _ := f.get(t, "/metrics")
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "depthview_events_total") {
		t.Fatalf("status = %d body = %q", res.StatusCode, body)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(Config{APIKey: "secret"}, nil)

	if res, _ := f.get(t, "/api/health"); res.StatusCode != http.StatusOK {
		t.Fatalf("health should stay public, got %d", res.StatusCode)
	}
	if res, _ := f.get(t, "/api/status"); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d", res.StatusCode)
	}
	if res, _ := f.get(t, "/api/status", "Authorization", "Bearer wrong"); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", res.StatusCode)
	}
	res, body := f.get(t, "/api/status", "X-API-Key", "secret")
	if res.StatusCode != http.StatusOK || body["symbol"] != "BTCUSDT" {
		t.Fatalf("valid key: status = %d body = %v", res.StatusCode, body)
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(Config{CORSOrigins: []string{"http://ok.test"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/book", nil)
	req.Header.Set("Origin", "http://ok.test")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://ok.test" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}

	res, _ := f.get(t, "/api/health", "Origin", "http://evil.test")
	if res.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin got CORS headers")
	}
}
