package gas

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

const (
	baseGasUnits       = 21_000
	perHopGasUnits     = 100_000
	crossChainGasUnits = 200_000
)

// Request describes the swap whose execution cost is estimated
type Request struct {
	ChainID        int64
	TokenIn        string
	TokenOut       string
	RawAmount      *big.Int
	CrossChain     bool
	Hops           int
	NativePriceUSD decimal.Decimal
}

// Estimate is the expected execution cost
type Estimate struct {
	CostNative decimal.Decimal `json:"estimatedCostNative"`
	CostUSD    decimal.Decimal `json:"estimatedCostUsd"`
	Source     string          `json:"source"`
}

// GasPricer returns the current gas price of an EVM chain in wei
type GasPricer interface {
	SuggestGasPrice(ctx context.Context, chainID int64) (*big.Int, error)
}

// fixed per-transaction fees, in native units, of non-EVM families
var fixedNativeFees = map[entities.ChainFamily]decimal.Decimal{
	entities.FamilySolana: decimal.RequireFromString("0.000005"),
	entities.FamilySui:    decimal.RequireFromString("0.003"),
}

// staticUSD is used when the gas price or native price is unavailable
var staticUSD = map[int64]decimal.Decimal{
	entities.ChainEthereum:  decimal.NewFromInt(5),
	entities.ChainBSC:       decimal.RequireFromString("0.15"),
	entities.ChainPolygon:   decimal.RequireFromString("0.02"),
	entities.ChainArbitrum:  decimal.RequireFromString("0.10"),
	entities.ChainOptimism:  decimal.RequireFromString("0.05"),
	entities.ChainBase:      decimal.RequireFromString("0.05"),
	entities.ChainAvalanche: decimal.RequireFromString("0.10"),
	entities.ChainSolana:    decimal.RequireFromString("0.001"),
	entities.ChainSui:       decimal.RequireFromString("0.01"),
}

var defaultStaticUSD = decimal.NewFromInt(1)

// Estimator prices swap execution from the chain's gas price
type Estimator struct {
	pricer GasPricer
	chains *entities.ChainRegistry
	logger *zap.Logger
}

func NewEstimator(pricer GasPricer, chains *entities.ChainRegistry, log *zap.Logger) *Estimator {
	return &Estimator{
		pricer: pricer,
		chains: chains,
		logger: logger.OrNop(log).Named("gas"),
	}
}

// Units returns the gas units budgeted for a swap
func Units(hops int, crossChain bool) int64 {
	if hops < 1 {
		hops = 1
	}
	units := int64(baseGasUnits + perHopGasUnits*hops)
	if crossChain {
		units += crossChainGasUnits
	}
	return units
}

// StaticUSD returns the fallback cost of a chain
func StaticUSD(chainID int64) decimal.Decimal {
	if v, ok := staticUSD[chainID]; ok {
		return v
	}
	return defaultStaticUSD
}

// Estimate never fails for a live context; it degrades to the static
// per-chain estimate so the direct route stays computable.
func (e *Estimator) Estimate(ctx context.Context, req Request) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}

	chain, ok := e.chains.Get(req.ChainID)
	if !ok {
		return e.static(req.ChainID), nil
	}

	if fee, ok := fixedNativeFees[chain.Family]; ok {
		return e.priced(req, fee, "fixed"), nil
	}

	if e.pricer == nil {
		return e.static(req.ChainID), nil
	}

	wei, err := e.pricer.SuggestGasPrice(ctx, req.ChainID)
	if err != nil || wei == nil || wei.Sign() <= 0 {
		e.logger.Debug("gas price unavailable, using static estimate",
			zap.Int64("chain_id", req.ChainID), zap.Error(err))
		return e.static(req.ChainID), nil
	}

	decimals := chain.NativeDecimals
	if decimals == 0 {
		decimals = 18
	}
	units := Units(req.Hops, req.CrossChain)
	native := decimal.NewFromBigInt(wei, 0).Mul(decimal.NewFromInt(units)).Shift(-int32(decimals))
	return e.priced(req, native, "rpc"), nil
}

func (e *Estimator) priced(req Request, native decimal.Decimal, source string) Estimate {
	if !req.NativePriceUSD.IsPositive() {
		est := e.static(req.ChainID)
		est.CostNative = native
		return est
	}
	return Estimate{
		CostNative: native,
		CostUSD:    native.Mul(req.NativePriceUSD),
		Source:     source,
	}
}

func (e *Estimator) static(chainID int64) Estimate {
	return Estimate{CostUSD: StaticUSD(chainID), Source: "static"}
}
