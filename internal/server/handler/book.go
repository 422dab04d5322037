package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
	"github.com/alanyoungcy/depthview/internal/service"
)

// BookSource yields the latest processed book state.
type BookSource interface {
	Latest() (domain.BookUpdate, bool)
}

// BookHandler serves the live top-of-book.
type BookHandler struct {
	source BookSource
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(source BookSource, logger *slog.Logger) *BookHandler {
	return &BookHandler{source: source, logger: logger.With(slog.String("handler", "book"))}
}

type bookStats struct {
	BestBid *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk *decimal.Decimal `json:"best_ask,omitempty"`
	Spread  *decimal.Decimal `json:"spread,omitempty"`
	Mid     *decimal.Decimal `json:"mid,omitempty"`
}

type bookResponse struct {
	service.BookFrame
	Stats bookStats `json:"stats"`
}

// GetBook returns the rendered levels plus best bid/ask and spread. An
// optional depth query parameter trims each side further.
// GET /api/book
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth, err := parseDepth(r)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	u, ok := h.source.Latest()
	if !ok {
		writeFailure(w, r, h.logger, errNoBook)
		return
	}

	if depth > 0 {
		u.View.Asks = u.View.Asks[:min(depth, len(u.View.Asks))]
		u.View.Bids = u.View.Bids[:min(depth, len(u.View.Bids))]
	}

	writeJSON(w, http.StatusOK, bookResponse{
		BookFrame: service.NewBookFrame(u),
		Stats:     statsOf(u.View),
	})
}

func statsOf(view domain.BookView) bookStats {
	var s bookStats
	if len(view.Bids) > 0 {
		s.BestBid = &view.Bids[0].Price
	}
	if len(view.Asks) > 0 {
		s.BestAsk = &view.Asks[0].Price
	}
	if s.BestBid != nil && s.BestAsk != nil {
		spread := s.BestAsk.Sub(*s.BestBid)
		mid := s.BestAsk.Add(*s.BestBid).Div(decimal.NewFromInt(2))
		s.Spread, s.Mid = &spread, &mid
	}
	return s
}
