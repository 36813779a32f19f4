// Package cex asks an exchange-routing service whether detouring a swap
// through a centralized exchange is cheaper than swapping on-chain.
package cex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
)

const compareRateLimit = 120

// ErrNoRoute means no exchange can execute the pair
var ErrNoRoute = errors.New("no cex route")

// CompareRequest describes the swap and the on-chain baseline cost
type CompareRequest struct {
	SymbolIn      string          `json:"fromSymbol"`
	SymbolOut     string          `json:"toSymbol"`
	AmountIn      decimal.Decimal `json:"amount"`
	ValueUSD      decimal.Decimal `json:"valueUsd"`
	ChainIn       int64           `json:"fromChainId"`
	ChainOut      int64           `json:"toChainId"`
	DirectCostUSD decimal.Decimal `json:"directCostUsd"`
}

// Comparison is the exchange route offered for a request
type Comparison struct {
	Viable               bool            `json:"viable"`
	Exchange             string          `json:"exchange"`
	FeeUSD               decimal.Decimal `json:"totalFeeUsd"`
	EstimatedTimeSeconds int             `json:"estimatedTimeSeconds"`
	SavingsUSD           decimal.Decimal `json:"savingsUsd"`
	BeatsDirect          bool            `json:"isBetter"`
	Steps                []string        `json:"steps"`
}

// Comparer is the external comparison call of the alternate route
type Comparer interface {
	Compare(ctx context.Context, req CompareRequest) (*Comparison, error)
}

// Client calls the comparison API over HTTP
type Client struct {
	http    *pricing.HTTPClient
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    pricing.NewHTTPClient(timeout, compareRateLimit),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Compare returns ErrNoRoute when the service reports no viable route or
// an impossible fee or duration
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*Comparison, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("cex comparison endpoint not configured: %w", ErrNoRoute)
	}

	var out Comparison
	if err := c.http.PostJSON(ctx, c.baseURL+"/compare", req, &out); err != nil {
		return nil, fmt.Errorf("cex compare: %w", err)
	}
	if !out.Viable || out.FeeUSD.IsNegative() || out.EstimatedTimeSeconds < 0 {
		return nil, ErrNoRoute
	}
	return &out, nil
}
