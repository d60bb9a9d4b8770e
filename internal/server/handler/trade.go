package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// TradeService defines what the trade handler needs from the service layer.
type TradeService interface {
	PlaceBet(ctx context.Context, marketID int64, user string, side domain.Side) (domain.BetRecord, error)
}

// TradeHandler serves the bet placement endpoint.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// tradeRequest mirrors the gateway's trade payload. BuyYes selects the side;
// there is no stake, so any amount/quantity fields the browser form sends are
// ignored.
type tradeRequest struct {
	ID     int64  `json:"id"`
	User   string `json:"user"`
	BuyYes bool   `json:"buyYes"`
}

// tradeResponse echoes the accepted bet with its ledger position.
type tradeResponse struct {
	MarketID int64       `json:"marketId"`
	User     string      `json:"user"`
	Side     domain.Side `json:"side"`
	Seq      int64       `json:"seq"`
}

// PlaceBet records a YES/NO bet on an open market.
// POST /api/trade
func (h *TradeHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user must not be empty")
		return
	}

	rec, err := h.trades.PlaceBet(r.Context(), req.ID, req.User, domain.SideFromYes(req.BuyYes))
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place bet failed",
			slog.Int64("market_id", req.ID),
			slog.String("user", req.User),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place bet")
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{
		MarketID: rec.MarketID,
		User:     rec.User,
		Side:     rec.Side,
		Seq:      rec.Seq,
	})
}
