package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/recorder"
)

// TransactionHandler accepts executed swaps for recording
type TransactionHandler struct {
	recorder recorder.Recorder
}

func NewTransactionHandler(rec recorder.Recorder) *TransactionHandler {
	return &TransactionHandler{recorder: rec}
}

// Record handles POST /api/v1/transactions
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var rec entities.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a JSON transaction record")
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}

	if err := h.recorder.Record(r.Context(), rec); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
