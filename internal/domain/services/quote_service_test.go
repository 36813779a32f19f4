package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/gas"
)

func newQuoteService(resolver PriceResolver, estimator GasEstimator) *QuoteService {
	return NewQuoteService(resolver, estimator, newRouteService(nil), nil, nil)
}

func selection(tokenIn, tokenOut entities.Token, amount string) entities.Selection {
	return entities.Selection{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: usd(amount)}
}

func TestQuoteEndToEnd(t *testing.T) {
	resolver := NewMockResolver().
		Set(tokenUSDC.Address, "1").
		Set(tokenDAI.Address, "2").
		Set(tokenWETH.Address, "2000")
	estimator := &MockGas{cost: usd("5")}
	s := newQuoteService(resolver, estimator)

	res, err := s.Quote(context.Background(), selection(tokenUSDC, tokenDAI, "100"))
	require.NoError(t, err)
	assert.False(t, res.Restricted)
	assert.False(t, res.PriceInMissing)
	assert.True(t, res.ValueUSD.Equal(usd("100")))
	assert.Equal(t, []entities.RouteType{entities.RouteDirect, entities.RouteDelegated}, res.Routes.Types())

	// gas 5 beats the 1% delegated fee
	snap := BuildSnapshot(7, res, "", time.Unix(100, 0))
	assert.Equal(t, uint64(7), snap.Generation)
	assert.Equal(t, entities.StatePublished, snap.State)
	assert.Equal(t, entities.RouteDelegated, snap.SelectedRoute)
	require.NotNil(t, snap.OutputAmount)
	assert.True(t, snap.OutputAmount.Equal(usd("49.5")), snap.OutputAmount.String())

	snap = BuildSnapshot(7, res, entities.RouteDirect, time.Unix(100, 0))
	assert.Equal(t, entities.RouteDirect, snap.SelectedRoute)
	assert.True(t, snap.OutputAmount.Equal(usd("47.15")), snap.OutputAmount.String())
	assert.Equal(t, tokenUSDC.Address, snap.TokenIn)
	assert.Equal(t, int64(1), snap.ChainOut)

	estimator.mu.Lock()
	req := estimator.last
	estimator.mu.Unlock()
	assert.Equal(t, int64(entities.ChainEthereum), req.ChainID)
	assert.Equal(t, "100000000", req.RawAmount.String())
	assert.True(t, req.NativePriceUSD.Equal(usd("2000")))
	assert.False(t, req.CrossChain)
}

func TestResolveMissingOutputPrice(t *testing.T) {
	resolver := NewMockResolver().Set(tokenUSDC.Address, "1")
	s := newQuoteService(resolver, &MockGas{cost: usd("15")})

	in, err := s.Resolve(context.Background(), selection(tokenUSDC, tokenDAI, "1000"))
	require.NoError(t, err)
	require.NotNil(t, in.PriceIn)
	assert.Nil(t, in.PriceOut)

	res := s.Compute(context.Background(), in)
	assert.True(t, res.PriceOutMissing)
	assert.Equal(t, []entities.RouteType{entities.RouteDirect}, res.Routes.Types())

	snap := BuildSnapshot(1, res, "", time.Now())
	assert.Equal(t, entities.RouteDirect, snap.SelectedRoute)
	assert.Nil(t, snap.OutputAmount)
}

func TestComputeWithoutInputPrice(t *testing.T) {
	resolver := NewMockResolver().Set(tokenDAI.Address, "1")
	s := newQuoteService(resolver, &MockGas{cost: usd("1")})

	res, err := s.Quote(context.Background(), selection(tokenUSDC, tokenDAI, "10"))
	require.NoError(t, err)
	assert.True(t, res.PriceInMissing)
	assert.Empty(t, res.Routes)
	assert.True(t, res.ValueUSD.IsZero())

	snap := BuildSnapshot(1, res, entities.RouteDirect, time.Now())
	assert.Empty(t, snap.SelectedRoute)
	assert.Nil(t, snap.OutputAmount)
}

func TestResolveOmitsSymbolForCustomTokens(t *testing.T) {
	custom := customToken(1, "0x1111111111111111111111111111111111111111", "USDC")
	resolver := NewMockResolver().Set(custom.Address, "0.5").Set(tokenDAI.Address, "1")
	s := newQuoteService(resolver, &MockGas{cost: usd("1")})

	res, err := s.Quote(context.Background(), selection(custom, tokenDAI, "100"))
	require.NoError(t, err)
	assert.True(t, res.Restricted)
	assert.Equal(t, []entities.RouteType{entities.RouteDirect}, res.Routes.Types())

	var sawCustom, sawVerified bool
	for _, req := range resolver.Requests() {
		switch req.Address {
		case custom.Address:
			sawCustom = true
			assert.Empty(t, req.Symbol)
		case tokenDAI.Address:
			sawVerified = true
			assert.Equal(t, "DAI", req.Symbol)
		}
	}
	assert.True(t, sawCustom)
	assert.True(t, sawVerified)
}

func TestResolveGasFallsBackToStatic(t *testing.T) {
	resolver := NewMockResolver().Set(tokenUSDC.Address, "1").Set(tokenDAI.Address, "1")

	for name, estimator := range map[string]GasEstimator{
		"failing": &MockGas{err: errors.New("rpc down")},
		"absent":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			s := newQuoteService(resolver, estimator)
			in, err := s.Resolve(context.Background(), selection(tokenUSDC, tokenDAI, "100"))
			require.NoError(t, err)
			assert.True(t, in.GasEstimateUSD.Equal(gas.StaticUSD(entities.ChainEthereum)))
		})
	}
}

func TestResolveRejectsIncompleteSelection(t *testing.T) {
	s := newQuoteService(NewMockResolver(), nil)

	_, err := s.Resolve(context.Background(), entities.Selection{TokenIn: tokenUSDC, AmountIn: usd("1")})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = s.Resolve(context.Background(), selection(tokenUSDC, tokenDAI, "0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.Resolve(context.Background(), entities.Selection{TokenIn: tokenUSDC, TokenOut: tokenDAI, AmountIn: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEffectiveRoute(t *testing.T) {
	routes := entities.RouteSet{
		{Type: entities.RouteDirect},
		{Type: entities.RouteDelegated, Recommended: true},
	}

	r, ok := EffectiveRoute(routes, "")
	require.True(t, ok)
	assert.Equal(t, entities.RouteDelegated, r.Type)

	r, _ = EffectiveRoute(routes, entities.RouteDirect)
	assert.Equal(t, entities.RouteDirect, r.Type)

	// a preference for a route that no longer exists falls back
	r, _ = EffectiveRoute(routes, entities.RouteAlternate)
	assert.Equal(t, entities.RouteDelegated, r.Type)

	_, ok = EffectiveRoute(nil, entities.RouteDirect)
	assert.False(t, ok)
}
