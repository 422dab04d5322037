// Package metrics exposes book and feed statistics to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/depthview/internal/domain"
)

const namespace = "depthview"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	events     *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	trades     *prometheus.CounterVec
	bestBid    prometheus.Gauge
	bestAsk    prometheus.Gauge
	spread     prometheus.Gauge
	lastPrice  prometheus.Gauge
	depth      *prometheus.GaugeVec
	updateID   prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Feed events by kind and processing outcome.",
		}, []string{"kind", "outcome"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ws_reconnects_total",
			Help: "Stream reconnect attempts by reason.",
		}, []string{"reason"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total",
			Help: "Observed trade prints by tick direction.",
		}, []string{"direction"}),
		bestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_bid",
			Help: "Highest bid price.",
		}),
		bestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_ask",
			Help: "Lowest ask price.",
		}),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "spread",
			Help: "Best ask minus best bid.",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_trade_price",
			Help: "Price of the most recent trade.",
		}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rendered_levels",
			Help: "Levels in the rendered view per side.",
		}, []string{"side"}),
		updateID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_update_id",
			Help: "Exchange update id of the last applied book event.",
		}),
	}

	m.registry.MustRegister(
		m.events, m.reconnects, m.trades,
		m.bestBid, m.bestAsk, m.spread, m.lastPrice, m.depth, m.updateID,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountEvent records the outcome of one feed event.
func (m *Metrics) CountEvent(kind domain.EventKind, outcome string) {
	m.events.WithLabelValues(kind.String(), outcome).Inc()
}

// Reconnect records a stream reconnect.
func (m *Metrics) Reconnect(reason string) {
	m.reconnects.WithLabelValues(reason).Inc()
}

// Observe updates the book gauges from a processed update.
func (m *Metrics) Observe(_ context.Context, u domain.BookUpdate) error {
	m.depth.WithLabelValues("ask").Set(float64(len(u.View.Asks)))
	m.depth.WithLabelValues("bid").Set(float64(len(u.View.Bids)))
	if u.UpdateID != 0 {
		m.updateID.Set(float64(u.UpdateID))
	}

	var (
		ask, bid domain.PriceLevel
		okA, okB bool
	)
	if len(u.View.Asks) > 0 {
		ask, okA = u.View.Asks[0], true
		m.bestAsk.Set(ask.Price.InexactFloat64())
	}
	if len(u.View.Bids) > 0 {
		bid, okB = u.View.Bids[0], true
		m.bestBid.Set(bid.Price.InexactFloat64())
	}
	if okA && okB {
		m.spread.Set(ask.Price.Sub(bid.Price).InexactFloat64())
	}

	if u.HasPrice {
		m.lastPrice.Set(u.LastPrice.InexactFloat64())
	}
	if u.Trade != nil {
		m.trades.WithLabelValues(u.Trade.Direction.String()).Inc()
	}
	return nil
}
