package handlers

import (
	"net/http"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// RegistryHandler serves the chain and verified token registries
type RegistryHandler struct {
	chains *entities.ChainRegistry
	tokens *entities.TokenRegistry
}

func NewRegistryHandler(chains *entities.ChainRegistry, tokens *entities.TokenRegistry) *RegistryHandler {
	return &RegistryHandler{chains: chains, tokens: tokens}
}

// chainView hides RPC URLs, which may embed API keys
type chainView struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Family       entities.ChainFamily `json:"family"`
	NativeSymbol string               `json:"nativeSymbol"`
	ExplorerURL  string               `json:"explorerUrl,omitempty"`
}

// ListChains handles GET /api/v1/chains
func (h *RegistryHandler) ListChains(w http.ResponseWriter, r *http.Request) {
	all := h.chains.All()
	out := make([]chainView, 0, len(all))
	for _, c := range all {
		out = append(out, chainView{
			ID:           c.ID,
			Name:         c.Name,
			Family:       c.Family,
			NativeSymbol: c.NativeSymbol,
			ExplorerURL:  c.ExplorerURL,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chains": out})
}

// ListTokens handles GET /api/v1/tokens?chainId=
func (h *RegistryHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": h.tokens.GetAll()})
		return
	}

	chainID, ok := parseChainID(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	if _, ok := h.chains.Get(chainID); !ok {
		writeError(w, http.StatusBadRequest, "unsupported_chain", "chain is not supported")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": h.tokens.ByChain(chainID)})
}
