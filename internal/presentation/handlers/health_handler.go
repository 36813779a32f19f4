package handlers

import (
	"net/http"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Chains  int    `json:"chains"`
	Tokens  int    `json:"tokens"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	chains  *entities.ChainRegistry
	tokens  *entities.TokenRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, chains *entities.ChainRegistry, tokens *entities.TokenRegistry) *HealthHandler {
	return &HealthHandler{version: version, chains: chains, tokens: tokens}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.version}
	if h.chains != nil {
		resp.Chains = len(h.chains.All())
	}
	if h.tokens != nil {
		resp.Tokens = h.tokens.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}
