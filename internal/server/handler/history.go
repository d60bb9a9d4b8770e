package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// UserHistoryService defines what the history handler needs from the service
// layer.
type UserHistoryService interface {
	GroupedHistory(ctx context.Context, user string) (map[string][]domain.Side, error)
}

// HistoryHandler serves the per-user bet history endpoint.
type HistoryHandler struct {
	history UserHistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history UserHistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// historyRequest is the gateway's history payload.
type historyRequest struct {
	Username string `json:"username"`
}

// UserHistory returns the user's bets grouped by market, each market's sides
// in the order placed. A user with no bets yields an empty object.
// POST /api/history
func (h *HistoryHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username must not be empty")
		return
	}

	grouped, err := h.history.GroupedHistory(r.Context(), req.Username)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: user history failed",
			slog.String("username", req.Username),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, grouped)
}
