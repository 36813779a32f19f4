package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TokenPrice is a USD price observation. PriceUSD is always positive;
// a missing price is represented by a nil *TokenPrice.
type TokenPrice struct {
	PriceUSD  decimal.Decimal  `json:"priceUsd"`
	Change24h *decimal.Decimal `json:"change24h,omitempty"`
	Liquidity *decimal.Decimal `json:"liquidity,omitempty"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
}

// Valid reports whether the price may be handed downstream
func (p *TokenPrice) Valid() bool {
	return p != nil && p.PriceUSD.IsPositive()
}

// PriceRequest identifies the token to price
type PriceRequest struct {
	ChainID      int64  `json:"chainId"`
	Address      string `json:"address"`
	Symbol       string `json:"symbol,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// PriceKey is the cache key for a chain/address pair, case-insensitive
func PriceKey(chainID int64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(strings.TrimSpace(address)))
}

// Key returns the cache key of the request
func (r PriceRequest) Key() string {
	return PriceKey(r.ChainID, r.Address)
}

// PriceQuery is a price request enriched with the chain metadata and
// external catalog id providers need
type PriceQuery struct {
	Chain     Chain
	ChainID   int64
	Address   string
	Symbol    string
	CatalogID string
}
