package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/security"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

const auditTimeout = 5 * time.Second

// Quoter runs one quote cycle
type Quoter interface {
	Quote(ctx context.Context, sel entities.Selection) (entities.QuoteResult, error)
}

// TokenLookup resolves an address to a verified or imported token
type TokenLookup interface {
	LookupToken(ctx context.Context, chainID int64, address string) (entities.Token, error)
}

// QuoteHandler handles one-shot quote requests
type QuoteHandler struct {
	quotes  Quoter
	tokens  TokenLookup
	auditor security.Auditor
	logger  *zap.Logger
	now     func() time.Time
}

// NewQuoteHandler creates a new quote handler. auditor may be nil.
func NewQuoteHandler(quotes Quoter, tokens TokenLookup, auditor security.Auditor, log *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes:  quotes,
		tokens:  tokens,
		auditor: auditor,
		logger:  logger.OrNop(log).Named("quote_handler"),
		now:     time.Now,
	}
}

// QuoteResponse is the published snapshot plus audits of imported tokens
type QuoteResponse struct {
	entities.QuoteSnapshot
	ValueUSD string                   `json:"valueUsd"`
	Audits   []*security.AuditSummary `json:"audits,omitempty"`
}

// GetQuote handles GET /api/v1/quote
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenInAddr := strings.TrimSpace(q.Get("tokenIn"))
	tokenOutAddr := strings.TrimSpace(q.Get("tokenOut"))
	amountStr := q.Get("amount")

	if tokenInAddr == "" || tokenOutAddr == "" || amountStr == "" || q.Get("chainIn") == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "chainIn, tokenIn, tokenOut, and amount are required")
		return
	}

	chainIn, ok := parseChainID(q.Get("chainIn"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainIn must be a positive integer")
		return
	}
	chainOut := chainIn
	if raw := q.Get("chainOut"); raw != "" {
		if chainOut, ok = parseChainID(raw); !ok {
			writeError(w, http.StatusBadRequest, "invalid_chain", "chainOut must be a positive integer")
			return
		}
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a positive decimal")
		return
	}

	route := entities.RouteType(q.Get("route"))
	if route != "" && !route.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_route", "route must be direct, delegated, or alternate")
		return
	}

	tokenIn, err := h.tokens.LookupToken(r.Context(), chainIn, tokenInAddr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	tokenOut, err := h.tokens.LookupToken(r.Context(), chainOut, tokenOutAddr)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.quotes.Quote(r.Context(), entities.Selection{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := QuoteResponse{
		QuoteSnapshot: services.BuildSnapshot(0, res, route, h.now()),
		ValueUSD:      res.ValueUSD.String(),
		Audits:        h.audit(r.Context(), tokenIn, tokenOut),
	}
	writeJSON(w, http.StatusOK, resp)
}

// audit annotates imported tokens. It never blocks a quote.
func (h *QuoteHandler) audit(ctx context.Context, tokens ...entities.Token) []*security.AuditSummary {
	if h.auditor == nil {
		return nil
	}
	var out []*security.AuditSummary
	for _, t := range tokens {
		if !entities.IsCustom(t) {
			continue
		}
		info := t.Info()
		auditCtx, cancel := context.WithTimeout(ctx, auditTimeout)
		summary, err := h.auditor.AuditSummary(auditCtx, info.ChainID, info.Address)
		cancel()
		if err != nil {
			h.logger.Debug("token audit unavailable",
				zap.Int64("chain_id", info.ChainID),
				zap.String("token", info.Address),
				zap.Error(err))
			continue
		}
		out = append(out, summary)
	}
	return out
}
