package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one executed swap as reported by the client
type TransactionRecord struct {
	FromChainID int64           `json:"fromChainId"`
	ToChainID   int64           `json:"toChainId"`
	FromToken   string          `json:"fromToken"`
	ToToken     string          `json:"toToken"`
	AmountIn    decimal.Decimal `json:"amountIn"`
	AmountOut   decimal.Decimal `json:"amountOut"`
	Route       RouteType       `json:"route"`
	FeesUSD     decimal.Decimal `json:"feesUsd"`
	TxHash      string          `json:"txHash,omitempty"`
	Account     string          `json:"account,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Validate checks the fields a record must carry
func (r TransactionRecord) Validate() error {
	if r.FromChainID == 0 || r.ToChainID == 0 {
		return errors.New("chain ids are required")
	}
	if r.FromToken == "" || r.ToToken == "" {
		return errors.New("tokens are required")
	}
	if !r.Route.Valid() {
		return errors.New("unknown route type")
	}
	if !r.AmountIn.IsPositive() {
		return errors.New("amountIn must be positive")
	}
	return nil
}
