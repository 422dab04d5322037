package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func level(p, q string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
}

func TestMetricsObserve(t *testing.T) {
	m := New()
	err := m.Observe(context.Background(), domain.BookUpdate{
		Kind:     domain.EventTrade,
		UpdateID: 42,
		View: domain.BookView{
			Asks: []domain.PriceLevel{level("101", "1"), level("102", "1")},
			Bids: []domain.PriceLevel{level("99.5", "2")},
		},
		LastPrice: decimal.RequireFromString("100"),
		HasPrice:  true,
		Trade:     &domain.Trade{Direction: domain.DirectionDown},
	})
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}

	body := scrape(t, m)
	for _, want := range []string{
		"depthview_best_ask 101",
		"depthview_best_bid 99.5",
		"depthview_spread 1.5",
		"depthview_last_trade_price 100",
		"depthview_last_update_id 42",
		`depthview_rendered_levels{side="ask"} 2`,
		`depthview_trades_total{direction="down"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.CountEvent(domain.EventDelta, "stale")
	m.CountEvent(domain.EventDelta, "stale")
	m.Reconnect("read")

	body := scrape(t, m)
	for _, want := range []string{
		`depthview_events_total{kind="delta",outcome="stale"} 2`,
		`depthview_ws_reconnects_total{reason="read"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.CountEvent(domain.EventTrade, "applied")
	if strings.Contains(scrape(t, b), `kind="trade"`) {
		t.Fatal("registries share state")
	}
}
