package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	List(ctx context.Context) ([]domain.Market, error)
	Get(ctx context.Context, id int64) (domain.Market, error)
	Create(ctx context.Context, title, username string) (domain.Market, error)
}

// HistoryService provides the chart series for the per-market series route.
type HistoryService interface {
	CountSeries(ctx context.Context, marketID int64) ([]domain.SeriesPoint, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	history HistoryService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, history HistoryService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		history: history,
		logger:  logger,
	}
}

// ListMarkets returns every market with its resolution state.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// GetSeries returns the market's cumulative YES/NO tally for charting.
// GET /api/markets/{id}/series
func (h *MarketHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	series, err := h.history.CountSeries(r.Context(), id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: count series failed",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute series")
		return
	}

	writeJSON(w, http.StatusOK, series)
}

// createMarketRequest is the admin market-creation payload.
type createMarketRequest struct {
	Title string `json:"title"`
	User  string `json:"user"`
}

// CreateMarket opens a new market. Admin only.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user must not be empty")
		return
	}

	market, err := h.markets.Create(r.Context(), req.Title, req.User)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create market failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create market")
		return
	}

	writeJSON(w, http.StatusCreated, toMarketResponse(market))
}
