package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Selection is what the user has entered: the pair and the input amount
type Selection struct {
	TokenIn  Token
	TokenOut Token
	AmountIn decimal.Decimal
}

// ChainIn returns the source chain, 0 when no input token is set
func (s Selection) ChainIn() int64 {
	if s.TokenIn == nil {
		return 0
	}
	return s.TokenIn.Info().ChainID
}

// ChainOut returns the destination chain, 0 when no output token is set
func (s Selection) ChainOut() int64 {
	if s.TokenOut == nil {
		return 0
	}
	return s.TokenOut.Info().ChainID
}

// Complete reports whether a quote can be computed for the selection
func (s Selection) Complete() bool {
	return s.TokenIn != nil && s.TokenOut != nil && s.AmountIn.IsPositive()
}

// SamePair reports whether both selections quote the same token pair
func (s Selection) SamePair(o Selection) bool {
	return TokenKey(s.TokenIn) == TokenKey(o.TokenIn) && TokenKey(s.TokenOut) == TokenKey(o.TokenOut)
}

// Equal compares pair and amount
func (s Selection) Equal(o Selection) bool {
	return s.SamePair(o) && s.AmountIn.Equal(o.AmountIn)
}

// Restricted reports whether either leg is a custom token
func (s Selection) Restricted() bool {
	return IsRestricted(s.TokenIn, s.TokenOut)
}

// QuoteCycleInput is the snapshot one computation pass is based on.
// Prices are nil when unavailable.
type QuoteCycleInput struct {
	Selection
	PriceIn        *TokenPrice
	PriceOut       *TokenPrice
	GasEstimateUSD decimal.Decimal
}

// ValueUSD is the USD value of the input amount, zero when priceIn is unknown
func (in QuoteCycleInput) ValueUSD() decimal.Decimal {
	if !in.PriceIn.Valid() {
		return decimal.Zero
	}
	return in.AmountIn.Mul(in.PriceIn.PriceUSD)
}

// CrossChain reports whether the swap leaves the source chain
func (in QuoteCycleInput) CrossChain() bool {
	return in.ChainIn() != in.ChainOut()
}

// QuoteState is the orchestrator state for a swap pair
type QuoteState string

const (
	StateIdle       QuoteState = "idle"
	StateDebouncing QuoteState = "debouncing"
	StateResolving  QuoteState = "resolving"
	StateComputing  QuoteState = "computing"
	StatePublished  QuoteState = "published"
	StateSuperseded QuoteState = "superseded"
)

// QuoteResult is the outcome of one computation pass
type QuoteResult struct {
	Input           QuoteCycleInput
	Routes          RouteSet
	Restricted      bool
	PriceInMissing  bool
	PriceOutMissing bool
	ValueUSD        decimal.Decimal
	ComputedAt      time.Time
}

// QuoteSnapshot is the tuple published to the consumer
type QuoteSnapshot struct {
	Generation      uint64           `json:"generation"`
	State           QuoteState       `json:"state"`
	ChainIn         int64            `json:"chainIn"`
	ChainOut        int64            `json:"chainOut"`
	TokenIn         string           `json:"tokenIn,omitempty"`
	TokenOut        string           `json:"tokenOut,omitempty"`
	AmountIn        decimal.Decimal  `json:"amountIn"`
	OutputAmount    *decimal.Decimal `json:"outputAmount,omitempty"`
	Routes          RouteSet         `json:"routes"`
	SelectedRoute   RouteType        `json:"selectedRoute,omitempty"`
	Restricted      bool             `json:"restrictedToDirect"`
	PriceInMissing  bool             `json:"priceInUnavailable"`
	PriceOutMissing bool             `json:"priceOutUnavailable"`
	PublishedAt     time.Time        `json:"publishedAt"`
}
