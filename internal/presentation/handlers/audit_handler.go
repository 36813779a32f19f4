package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/security"
)

type AuditHandler struct {
	auditor security.Auditor
}

func NewAuditHandler(auditor security.Auditor) *AuditHandler {
	return &AuditHandler{auditor: auditor}
}

// GetAudit handles GET /api/v1/audit/{chainId}/{tokenAddress}
func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable", "token audits are not configured")
		return
	}
	chainID, ok := chainIDParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}

	summary, err := h.auditor.AuditSummary(r.Context(), chainID, chi.URLParam(r, "tokenAddress"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
