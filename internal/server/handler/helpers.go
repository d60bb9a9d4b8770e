package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the engine's logical error kinds onto distinguishable
// HTTP responses. Anything else is an infrastructure fault and surfaces as a
// 500 for the caller to decide whether to retry.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, domain.ErrMarketClosed):
		writeError(w, http.StatusConflict, "market closed")
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "market already resolved")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		return false
	}
	return true
}

// pathID extracts an int64 path parameter using Go 1.22+ built-in routing.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// decodeBody decodes a JSON request body into dst. Unknown fields are
// ignored: the gateway forwards browser payloads that may carry extra fields
// (the legacy trade form sends amount and quantity, which the ledger does not
// model).
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// marketResponse is the gateway-facing market shape. Outcome is null until
// the market resolves.
type marketResponse struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Resolved bool            `json:"resolved"`
	Outcome  *domain.Outcome `json:"outcome"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		ID:       m.ID,
		Title:    m.Title,
		Resolved: m.Resolved,
		Outcome:  m.Outcome,
	}
}
