package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

const maxBatchTokens = 100

// PriceResolver is the price lookup the handlers serve
type PriceResolver interface {
	ResolvePrice(ctx context.Context, req entities.PriceRequest) (*entities.TokenPrice, error)
	ResolvePrices(ctx context.Context, reqs []entities.PriceRequest) (map[string]*entities.TokenPrice, error)
}

type PriceHandler struct {
	prices PriceResolver
	tokens *entities.TokenRegistry
}

func NewPriceHandler(prices PriceResolver, tokens *entities.TokenRegistry) *PriceHandler {
	return &PriceHandler{prices: prices, tokens: tokens}
}

type PriceResponse struct {
	ChainID   int64  `json:"chainId"`
	Token     string `json:"token"`
	Symbol    string `json:"symbol,omitempty"`
	PriceUSD  string `json:"priceUSD"`
	Change24h string `json:"change24h,omitempty"`
	Source    string `json:"source"`
	UpdatedAt string `json:"updatedAt"`
}

// BatchPriceRequest is the body of POST /api/v1/prices
type BatchPriceRequest struct {
	Tokens []entities.PriceRequest `json:"tokens"`
}

type BatchPriceResponse struct {
	Prices  map[string]PriceResponse `json:"prices"`
	Missing []string                 `json:"missing"`
}

// GetPrice handles GET /api/v1/price/{chainId}/{tokenAddress}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainIDParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	tokenAddr := strings.TrimSpace(chi.URLParam(r, "tokenAddress"))
	if tokenAddr == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "token address is required")
		return
	}

	req := entities.PriceRequest{
		ChainID: chainID,
		Address: tokenAddr,
		Symbol:  r.URL.Query().Get("symbol"),
	}
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_refresh", "refresh must be a boolean")
			return
		}
		req.ForceRefresh = refresh
	}

	price, err := h.prices.ResolvePrice(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(req, price))
}

// GetPrices handles POST /api/v1/prices
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	var body BatchPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with a tokens array")
		return
	}
	if len(body.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "missing_tokens", "at least one token is required")
		return
	}
	if len(body.Tokens) > maxBatchTokens {
		writeError(w, http.StatusBadRequest, "too_many_tokens", "at most 100 tokens per request")
		return
	}

	prices, err := h.prices.ResolvePrices(r.Context(), body.Tokens)
	if err != nil && len(prices) == 0 {
		writeServiceError(w, err)
		return
	}

	resp := BatchPriceResponse{Prices: make(map[string]PriceResponse, len(prices)), Missing: []string{}}
	for _, req := range body.Tokens {
		key := req.Key()
		if price, ok := prices[key]; ok {
			resp.Prices[key] = h.toResponse(req, price)
			continue
		}
		resp.Missing = append(resp.Missing, key)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PriceHandler) toResponse(req entities.PriceRequest, price *entities.TokenPrice) PriceResponse {
	symbol := req.Symbol
	if symbol == "" && h.tokens != nil {
		if t, ok := h.tokens.GetByAddress(req.ChainID, req.Address); ok {
			symbol = t.Symbol
		}
	}

	resp := PriceResponse{
		ChainID:   req.ChainID,
		Token:     req.Address,
		Symbol:    symbol,
		PriceUSD:  price.PriceUSD.String(),
		Source:    price.Source,
		UpdatedAt: price.Timestamp.UTC().Format(time.RFC3339),
	}
	if price.Change24h != nil {
		resp.Change24h = price.Change24h.String()
	}
	return resp
}
