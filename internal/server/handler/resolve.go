package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// ResolutionService defines what the resolve handler needs from the service
// layer.
type ResolutionService interface {
	Resolve(ctx context.Context, marketID int64, outcome domain.Outcome, username string) (domain.Market, error)
}

// ResolveHandler serves the market resolution endpoint.
type ResolveHandler struct {
	resolution ResolutionService
	logger     *slog.Logger
}

// NewResolveHandler creates a ResolveHandler.
func NewResolveHandler(resolution ResolutionService, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{
		resolution: resolution,
		logger:     logger,
	}
}

// resolveRequest is the gateway's resolve payload. User is the authenticated
// username the gateway forwards; the directory decides whether it carries the
// admin claim.
type resolveRequest struct {
	ID         int64  `json:"id"`
	OutcomeYes bool   `json:"outcomeYes"`
	User       string `json:"user"`
}

// Resolve commits a market's final outcome.
// POST /api/resolve
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user must not be empty")
		return
	}

	market, err := h.resolution.Resolve(r.Context(), req.ID, domain.OutcomeFromYes(req.OutcomeYes), req.User)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: resolve failed",
			slog.Int64("market_id", req.ID),
			slog.String("user", req.User),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve market")
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(market))
}
