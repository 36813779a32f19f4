package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// CustomTokenManager manages user-imported tokens
type CustomTokenManager interface {
	Import(ctx context.Context, chainID int64, address string) (entities.CustomToken, error)
	List(ctx context.Context) ([]entities.CustomToken, error)
	Delete(ctx context.Context, chainID int64, address string) error
	RefreshPrice(ctx context.Context, chainID int64, address string) (entities.CustomToken, error)
}

type CustomTokenHandler struct {
	tokens CustomTokenManager
}

func NewCustomTokenHandler(tokens CustomTokenManager) *CustomTokenHandler {
	return &CustomTokenHandler{tokens: tokens}
}

// ImportRequest is the body of POST /api/v1/custom-tokens
type ImportRequest struct {
	ChainID int64  `json:"chainId"`
	Address string `json:"address"`
}

// List handles GET /api/v1/custom-tokens
func (h *CustomTokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

// Import handles POST /api/v1/custom-tokens
func (h *CustomTokenHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with chainId and address")
		return
	}
	if req.ChainID <= 0 || strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "chainId and address are required")
		return
	}

	token, err := h.tokens.Import(r.Context(), req.ChainID, strings.TrimSpace(req.Address))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

// Delete handles DELETE /api/v1/custom-tokens/{chainId}/{address}
func (h *CustomTokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainIDParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	if err := h.tokens.Delete(r.Context(), chainID, chi.URLParam(r, "address")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/v1/custom-tokens/{chainId}/{address}/refresh
func (h *CustomTokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainIDParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	token, err := h.tokens.RefreshPrice(r.Context(), chainID, chi.URLParam(r, "address"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
