package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/policy"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cex"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

// RouteService runs the three route calculators over one cycle input.
// Direct and Delegated are pure; Alternate calls the CEX comparer.
type RouteService struct {
	policy   policy.FeePolicy
	timing   policy.TimingTable
	comparer cex.Comparer
	chains   *entities.ChainRegistry
	logger   *zap.Logger
}

// NewRouteService creates a route service. A nil comparer disables the alternate route.
func NewRouteService(p policy.FeePolicy, timing policy.TimingTable, comparer cex.Comparer, chains *entities.ChainRegistry, log *zap.Logger) *RouteService {
	if timing == nil {
		timing = policy.DefaultTimingTable()
	}
	if chains == nil {
		chains = entities.NewChainRegistry(entities.DefaultChains())
	}
	return &RouteService{
		policy:   p,
		timing:   timing,
		comparer: comparer,
		chains:   chains,
		logger:   logger.OrNop(log).Named("routes"),
	}
}

// Policy returns the fee policy the calculators apply
func (s *RouteService) Policy() policy.FeePolicy {
	return s.policy
}

// Compute runs the calculators that apply to the input and joins them.
// The returned set is unarbitrated and ordered direct, delegated, alternate.
// Restricted inputs and inputs without an output price only get Direct.
func (s *RouteService) Compute(ctx context.Context, in entities.QuoteCycleInput) entities.RouteSet {
	direct, ok := s.Direct(in)
	if !ok {
		return entities.RouteSet{}
	}
	if in.Restricted() || !in.PriceOut.Valid() {
		return entities.RouteSet{direct}
	}

	var (
		delegated, alternate       entities.RouteOption
		hasDelegated, hasAlternate bool
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		delegated, hasDelegated = s.Delegated(in, direct)
		return nil
	})
	g.Go(func() error {
		alternate, hasAlternate = s.Alternate(gCtx, in, direct)
		return nil
	})
	_ = g.Wait()

	routes := entities.RouteSet{direct}
	if hasDelegated {
		routes = append(routes, delegated)
	}
	if hasAlternate {
		routes = append(routes, alternate)
	}
	return routes
}

// Direct is computable whenever the input price is known. Cost is the DEX
// protocol fee, the platform fee and the gas estimate.
func (s *RouteService) Direct(in entities.QuoteCycleInput) (entities.RouteOption, bool) {
	if !in.PriceIn.Valid() {
		return entities.RouteOption{}, false
	}

	value := in.ValueUSD()
	gas := in.GasEstimateUSD
	if gas.IsNegative() {
		gas = decimal.Zero
	}
	fee := s.policy.DEXFee(value).Add(s.policy.Fee(entities.RouteDirect, value)).Add(gas)

	return entities.RouteOption{
		Type:                 entities.RouteDirect,
		Label:                "Direct swap",
		EstimatedTimeSeconds: s.timing.SwapSeconds(in.ChainIn(), in.ChainOut()),
		TotalFeeUSD:          fee,
		NetOutputUSD:         value.Sub(fee),
		Steps:                s.directSteps(in),
		Recommended:          true,
		GasUSD:               gas,
	}, true
}

// Delegated requires an eligible chain and value and a known output price.
// The platform absorbs gas for the service fee; it is provisionally
// recommended when the absorbed gas exceeds that fee.
func (s *RouteService) Delegated(in entities.QuoteCycleInput, direct entities.RouteOption) (entities.RouteOption, bool) {
	if !in.PriceIn.Valid() || !in.PriceOut.Valid() {
		return entities.RouteOption{}, false
	}
	value := in.ValueUSD()
	if !s.policy.IsDelegatedEligible(in.ChainIn(), value) || !s.policy.IsDelegatedChain(in.ChainOut()) {
		return entities.RouteOption{}, false
	}

	fee := s.policy.Fee(entities.RouteDelegated, value)
	gasSaved := direct.GasUSD

	return entities.RouteOption{
		Type:                 entities.RouteDelegated,
		Label:                "Gasless swap",
		EstimatedTimeSeconds: s.timing.SwapSeconds(in.ChainIn(), in.ChainOut()) + s.policy.RelayOverheadSeconds,
		TotalFeeUSD:          fee,
		NetOutputUSD:         value.Sub(fee),
		Steps: []string{
			fmt.Sprintf("Sign %s swap intent", in.TokenIn.Info().Symbol),
			"Relayer submits and pays gas",
			fmt.Sprintf("Receive %s", in.TokenOut.Info().Symbol),
		},
		Recommended: gasSaved.GreaterThan(fee),
		SavingsUSD:  &gasSaved,
		GasUSD:      gasSaved,
	}, true
}

// Alternate is attempted only at or above the USD threshold. The comparer
// decides viability; any failure yields no route.
func (s *RouteService) Alternate(ctx context.Context, in entities.QuoteCycleInput, direct entities.RouteOption) (entities.RouteOption, bool) {
	if s.comparer == nil || !in.PriceIn.Valid() {
		return entities.RouteOption{}, false
	}
	value := in.ValueUSD()
	if !s.policy.IsAlternateEligible(value) {
		return entities.RouteOption{}, false
	}

	res, err := s.comparer.Compare(ctx, cex.CompareRequest{
		SymbolIn:      in.TokenIn.Info().Symbol,
		SymbolOut:     in.TokenOut.Info().Symbol,
		AmountIn:      in.AmountIn,
		ValueUSD:      value,
		ChainIn:       in.ChainIn(),
		ChainOut:      in.ChainOut(),
		DirectCostUSD: direct.TotalFeeUSD,
	})
	if err == nil && res != nil && (!res.Viable || res.EstimatedTimeSeconds < 0 || res.FeeUSD.IsNegative()) {
		err = cex.ErrNoRoute
	}
	if err != nil || res == nil {
		s.logger.Debug("alternate route unavailable",
			zap.String("pair", in.TokenIn.Info().Symbol+"/"+in.TokenOut.Info().Symbol),
			zap.Error(err))
		return entities.RouteOption{}, false
	}

	fee := res.FeeUSD.Add(s.policy.Fee(entities.RouteAlternate, value))
	savings := direct.TotalFeeUSD.Sub(fee)

	steps := res.Steps
	if len(steps) == 0 {
		steps = []string{
			fmt.Sprintf("Deposit %s to %s", in.TokenIn.Info().Symbol, res.Exchange),
			fmt.Sprintf("Trade for %s", in.TokenOut.Info().Symbol),
			"Withdraw to wallet",
		}
	}

	return entities.RouteOption{
		Type:                 entities.RouteAlternate,
		Label:                "Exchange route",
		EstimatedTimeSeconds: res.EstimatedTimeSeconds,
		TotalFeeUSD:          fee,
		NetOutputUSD:         value.Sub(fee),
		Steps:                steps,
		Recommended:          res.BeatsDirect && savings.IsPositive(),
		SavingsUSD:           &savings,
		Venue:                res.Exchange,
	}, true
}

func (s *RouteService) directSteps(in entities.QuoteCycleInput) []string {
	symIn, symOut := in.TokenIn.Info().Symbol, in.TokenOut.Info().Symbol
	if !in.CrossChain() {
		return []string{
			fmt.Sprintf("Approve %s", symIn),
			fmt.Sprintf("Swap %s for %s", symIn, symOut),
		}
	}
	return []string{
		fmt.Sprintf("Approve %s", symIn),
		fmt.Sprintf("Swap and bridge %s to %s", symIn, s.chainName(in.ChainOut())),
		fmt.Sprintf("Receive %s", symOut),
	}
}

func (s *RouteService) chainName(id int64) string {
	if c, ok := s.chains.Get(id); ok {
		return c.Name
	}
	return fmt.Sprintf("chain %d", id)
}
