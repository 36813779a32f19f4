package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/gas"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
	"github.com/Chrissou78/omniswap-sub002/internal/metrics"
)

// PriceResolver is the price lookup the quote cycle depends on
type PriceResolver interface {
	ResolvePrice(ctx context.Context, req entities.PriceRequest) (*entities.TokenPrice, error)
}

// GasEstimator prices the execution of a direct swap
type GasEstimator interface {
	Estimate(ctx context.Context, req gas.Request) (gas.Estimate, error)
}

// QuoteService runs one quote cycle: resolve prices and gas, then compute
// and arbitrate routes
type QuoteService struct {
	prices PriceResolver
	gas    GasEstimator
	routes *RouteService
	chains *entities.ChainRegistry
	logger *zap.Logger
	now    func() time.Time
}

func NewQuoteService(prices PriceResolver, gasEstimator GasEstimator, routes *RouteService, chains *entities.ChainRegistry, log *zap.Logger) *QuoteService {
	if chains == nil {
		chains = entities.NewChainRegistry(entities.DefaultChains())
	}
	return &QuoteService{
		prices: prices,
		gas:    gasEstimator,
		routes: routes,
		chains: chains,
		logger: logger.OrNop(log).Named("quote"),
		now:    time.Now,
	}
}

// Resolve fetches both leg prices and the gas estimate concurrently. An
// unavailable price leaves the leg nil; only context errors are returned.
func (s *QuoteService) Resolve(ctx context.Context, sel entities.Selection) (entities.QuoteCycleInput, error) {
	in := entities.QuoteCycleInput{Selection: sel}
	if sel.TokenIn == nil || sel.TokenOut == nil {
		return in, ErrTokenNotFound
	}
	if !sel.AmountIn.IsPositive() {
		return in, ErrInvalidAmount
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, err := s.tokenPrice(gCtx, sel.TokenIn)
		in.PriceIn = price
		return err
	})
	g.Go(func() error {
		price, err := s.tokenPrice(gCtx, sel.TokenOut)
		in.PriceOut = price
		return err
	})
	g.Go(func() error {
		cost, err := s.gasCost(gCtx, sel)
		in.GasEstimateUSD = cost
		return err
	})
	if err := g.Wait(); err != nil {
		return in, err
	}
	return in, nil
}

// Compute turns a resolved input into an arbitrated route set. Without an
// input price no route is produced; without an output price only Direct is.
func (s *QuoteService) Compute(ctx context.Context, in entities.QuoteCycleInput) entities.QuoteResult {
	res := entities.QuoteResult{
		Input:           in,
		Restricted:      in.Restricted(),
		PriceInMissing:  !in.PriceIn.Valid(),
		PriceOutMissing: !in.PriceOut.Valid(),
		ValueUSD:        in.ValueUSD(),
		ComputedAt:      s.now(),
		Routes:          entities.RouteSet{},
	}
	if res.PriceInMissing {
		return res
	}

	res.Routes = Arbitrate(s.routes.Compute(ctx, in), res.Restricted)
	if rec, ok := res.Routes.Recommended(); ok {
		metrics.RouteRecommendations.WithLabelValues(string(rec.Type)).Inc()
	}
	return res
}

// Quote runs Resolve then Compute
func (s *QuoteService) Quote(ctx context.Context, sel entities.Selection) (entities.QuoteResult, error) {
	start := s.now()
	in, err := s.Resolve(ctx, sel)
	if err != nil {
		return entities.QuoteResult{}, err
	}
	res := s.Compute(ctx, in)
	metrics.QuoteDuration.Observe(s.now().Sub(start).Seconds())
	return res, nil
}

func (s *QuoteService) tokenPrice(ctx context.Context, token entities.Token) (*entities.TokenPrice, error) {
	info := token.Info()
	req := entities.PriceRequest{ChainID: info.ChainID, Address: info.Address}
	// a custom token sharing a well-known symbol must not pick up its catalog price
	if !entities.IsCustom(token) {
		req.Symbol = info.Symbol
	}

	price, err := s.prices.ResolvePrice(ctx, req)
	if err == nil {
		return price, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, ErrPriceUnavailable) {
		s.logger.Warn("price lookup failed", zap.Int64("chain_id", info.ChainID), zap.String("token", info.Address), zap.Error(err))
	}
	return nil, nil
}

func (s *QuoteService) gasCost(ctx context.Context, sel entities.Selection) (decimal.Decimal, error) {
	chainID := sel.ChainIn()
	if s.gas == nil {
		return gas.StaticUSD(chainID), nil
	}

	req := gas.Request{
		ChainID:    chainID,
		TokenIn:    sel.TokenIn.Info().Address,
		TokenOut:   sel.TokenOut.Info().Address,
		RawAmount:  sel.AmountIn.Shift(int32(sel.TokenIn.Info().Decimals)).BigInt(),
		CrossChain: sel.ChainIn() != sel.ChainOut(),
		Hops:       1,
	}
	if chain, ok := s.chains.Get(chainID); ok && chain.WrappedNative != "" {
		native, err := s.prices.ResolvePrice(ctx, entities.PriceRequest{ChainID: chainID, Address: chain.WrappedNative, Symbol: chain.NativeSymbol})
		if err == nil {
			req.NativePriceUSD = native.PriceUSD
		} else if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
	}

	est, err := s.gas.Estimate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		s.logger.Debug("gas estimate failed", zap.Int64("chain_id", chainID), zap.Error(err))
		return gas.StaticUSD(chainID), nil
	}
	return est.CostUSD, nil
}

// EffectiveRoute returns the preferred route when it survived arbitration,
// else the recommended one
func EffectiveRoute(routes entities.RouteSet, preferred entities.RouteType) (entities.RouteOption, bool) {
	if preferred != "" {
		if r, ok := routes.Find(preferred); ok {
			return r, true
		}
	}
	return routes.Recommended()
}

// OutputAmount converts a route's net USD output into output tokens. It is
// nil when the output price is unknown.
func OutputAmount(route entities.RouteOption, priceOut *entities.TokenPrice, decimals uint8) *decimal.Decimal {
	if !priceOut.Valid() {
		return nil
	}
	out := route.NetOutputUSD.Div(priceOut.PriceUSD)
	if out.IsNegative() {
		out = decimal.Zero
	}
	out = out.Truncate(int32(decimals))
	return &out
}

// BuildSnapshot assembles the published tuple of a cycle
func BuildSnapshot(gen uint64, res entities.QuoteResult, preferred entities.RouteType, at time.Time) entities.QuoteSnapshot {
	in := res.Input
	snap := entities.QuoteSnapshot{
		Generation:      gen,
		State:           entities.StatePublished,
		ChainIn:         in.ChainIn(),
		ChainOut:        in.ChainOut(),
		AmountIn:        in.AmountIn,
		Routes:          res.Routes,
		Restricted:      res.Restricted,
		PriceInMissing:  res.PriceInMissing,
		PriceOutMissing: res.PriceOutMissing,
		PublishedAt:     at,
	}
	if in.TokenIn != nil {
		snap.TokenIn = in.TokenIn.Info().Address
	}
	if in.TokenOut != nil {
		snap.TokenOut = in.TokenOut.Info().Address
	}

	if route, ok := EffectiveRoute(res.Routes, preferred); ok {
		snap.SelectedRoute = route.Type
		if in.TokenOut != nil {
			snap.OutputAmount = OutputAmount(route, in.PriceOut, in.TokenOut.Info().Decimals)
		}
	}
	return snap
}
