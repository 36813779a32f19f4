// Package policy holds the fee and eligibility rules that gate which routes
// are offered. Everything here is a pure lookup over configuration.
package policy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy is loaded once per session and read-only afterwards.
// Percentages are expressed as percent values (0.4 means 0.4%).
type FeePolicy struct {
	DirectPercent    decimal.Decimal
	DelegatedPercent decimal.Decimal
	AlternatePercent decimal.Decimal
	// DEXPercent is the protocol fee the DEX charges on direct swaps
	DEXPercent decimal.Decimal

	DelegatedMinUSD decimal.Decimal
	DelegatedMaxUSD decimal.Decimal
	DelegatedChains []int64
	// RelayOverheadSeconds is added to chain timing for relayed swaps
	RelayOverheadSeconds int

	AlternateThresholdUSD decimal.Decimal
}

// Default returns the production fee schedule
func Default() FeePolicy {
	return FeePolicy{
		DirectPercent:         decimal.RequireFromString("0.4"),
		DelegatedPercent:      decimal.RequireFromString("1"),
		AlternatePercent:      decimal.RequireFromString("0.5"),
		DEXPercent:            decimal.RequireFromString("0.3"),
		DelegatedMinUSD:       decimal.NewFromInt(10),
		DelegatedMaxUSD:       decimal.NewFromInt(100000),
		DelegatedChains:       []int64{entities.ChainEthereum, entities.ChainBSC, entities.ChainPolygon, entities.ChainArbitrum, entities.ChainOptimism, entities.ChainBase},
		RelayOverheadSeconds:  15,
		AlternateThresholdUSD: decimal.NewFromInt(100),
	}
}

// Validate rejects schedules that would produce nonsensical routes
func (p FeePolicy) Validate() error {
	for name, pct := range map[string]decimal.Decimal{
		"direct":    p.DirectPercent,
		"delegated": p.DelegatedPercent,
		"alternate": p.AlternatePercent,
		"dex":       p.DEXPercent,
	} {
		if pct.IsNegative() || pct.GreaterThanOrEqual(hundred) {
			return fmt.Errorf("%s fee percent out of range: %s", name, pct)
		}
	}
	if p.DelegatedMinUSD.IsNegative() {
		return errors.New("delegated min usd must not be negative")
	}
	if p.DelegatedMaxUSD.LessThan(p.DelegatedMinUSD) {
		return fmt.Errorf("delegated max usd %s below min %s", p.DelegatedMaxUSD, p.DelegatedMinUSD)
	}
	if p.AlternateThresholdUSD.IsNegative() {
		return errors.New("alternate threshold must not be negative")
	}
	if p.RelayOverheadSeconds < 0 {
		return errors.New("relay overhead must not be negative")
	}
	return nil
}

// FeePercent returns the platform fee percent for a route type
func (p FeePolicy) FeePercent(t entities.RouteType) decimal.Decimal {
	switch t {
	case entities.RouteDirect:
		return p.DirectPercent
	case entities.RouteDelegated:
		return p.DelegatedPercent
	case entities.RouteAlternate:
		return p.AlternatePercent
	default:
		return decimal.Zero
	}
}

// Fee applies the route's fee percent to a USD value
func (p FeePolicy) Fee(t entities.RouteType, valueUSD decimal.Decimal) decimal.Decimal {
	return Percent(valueUSD, p.FeePercent(t))
}

// DEXFee is the protocol fee on a direct swap of valueUSD
func (p FeePolicy) DEXFee(valueUSD decimal.Decimal) decimal.Decimal {
	return Percent(valueUSD, p.DEXPercent)
}

// IsDelegatedChain reports whether the relay operates on chainID
func (p FeePolicy) IsDelegatedChain(chainID int64) bool {
	for _, id := range p.DelegatedChains {
		if id == chainID {
			return true
		}
	}
	return false
}

// IsDelegatedEligible requires a supported chain and min <= value <= max
func (p FeePolicy) IsDelegatedEligible(chainID int64, valueUSD decimal.Decimal) bool {
	if !p.IsDelegatedChain(chainID) {
		return false
	}
	return valueUSD.GreaterThanOrEqual(p.DelegatedMinUSD) && valueUSD.LessThanOrEqual(p.DelegatedMaxUSD)
}

// IsAlternateEligible reports whether the CEX route is worth attempting
func (p FeePolicy) IsAlternateEligible(valueUSD decimal.Decimal) bool {
	return valueUSD.GreaterThanOrEqual(p.AlternateThresholdUSD)
}

// Percent returns pct percent of v
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}
