package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/recorder"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/security"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// writeServiceError maps domain errors to stable codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPriceUnavailable):
		writeError(w, http.StatusNotFound, "price_unavailable", err.Error())
	case errors.Is(err, services.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
	case errors.Is(err, security.ErrNotAudited):
		writeError(w, http.StatusNotFound, "not_audited", err.Error())
	case errors.Is(err, services.ErrUnsupportedChain):
		writeError(w, http.StatusBadRequest, "unsupported_chain", err.Error())
	case errors.Is(err, services.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, services.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, services.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "already_verified", err.Error())
	case errors.Is(err, recorder.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "recorder_busy", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func chainIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func parseChainID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
