package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// TradeLister reads the recorded trade tape.
type TradeLister interface {
	ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error)
}

// TradeHandler serves the recorded trades of the watched symbol.
type TradeHandler struct {
	trades TradeLister
	symbol string
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeLister, symbol string, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, symbol: symbol, logger: logger.With(slog.String("handler", "trades"))}
}

// ListTrades returns recorded trades, newest first.
// GET /api/trades?limit=&offset=&since=&until=
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	trades, err := h.trades.ListBySymbol(r.Context(), h.symbol, opts)
	if err != nil {
		writeFailure(w, r, h.logger, fmt.Errorf("list trades %s: %w", h.symbol, err))
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": h.symbol,
		"trades": trades,
	})
}
