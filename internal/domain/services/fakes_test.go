package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cex"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/gas"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
)

func usd(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func priceOf(v string, source string) *entities.TokenPrice {
	return &entities.TokenPrice{PriceUSD: usd(v), Source: source, Timestamp: time.Now()}
}

// MockProvider is a scripted price provider
type MockProvider struct {
	name     string
	supports bool
	prices   map[string]*entities.TokenPrice
	err      error
	block    bool
	panics   bool
	calls    atomic.Int32
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, supports: true, prices: make(map[string]*entities.TokenPrice)}
}

func (m *MockProvider) SetPrice(address, v string) *MockProvider {
	m.prices[strings.ToLower(address)] = priceOf(v, m.name)
	return m
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Supports(q entities.PriceQuery) bool { return m.supports }

func (m *MockProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	m.calls.Add(1)
	if m.panics {
		panic("provider exploded")
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	price, ok := m.prices[strings.ToLower(q.Address)]
	if !ok {
		return nil, pricing.ErrNoPrice
	}
	return price, nil
}

// MockBatchProvider adds batch pricing to MockProvider
type MockBatchProvider struct {
	*MockProvider
	maxBatch   int
	batchSizes []int
	mu         sync.Mutex
}

func NewMockBatchProvider(name string, maxBatch int) *MockBatchProvider {
	return &MockBatchProvider{MockProvider: NewMockProvider(name), maxBatch: maxBatch}
}

// SetPrice keeps the batch type so the service still sees a BatchProvider
func (m *MockBatchProvider) SetPrice(address, v string) *MockBatchProvider {
	m.MockProvider.SetPrice(address, v)
	return m
}

func (m *MockBatchProvider) MaxBatch() int { return m.maxBatch }

func (m *MockBatchProvider) FetchPrices(ctx context.Context, chain entities.Chain, addresses []string) (map[string]*entities.TokenPrice, error) {
	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(addresses))
	m.mu.Unlock()

	out := make(map[string]*entities.TokenPrice)
	for _, a := range addresses {
		if p, ok := m.prices[strings.ToLower(a)]; ok {
			out[strings.ToLower(a)] = p
		}
	}
	return out, nil
}

// MockResolver serves fixed prices keyed by lowercased address
type MockResolver struct {
	mu     sync.Mutex
	prices map[string]*entities.TokenPrice
	reqs   []entities.PriceRequest
}

func NewMockResolver() *MockResolver {
	return &MockResolver{prices: make(map[string]*entities.TokenPrice)}
}

func (m *MockResolver) Set(address, v string) *MockResolver {
	m.prices[strings.ToLower(address)] = priceOf(v, "mock")
	return m
}

func (m *MockResolver) ResolvePrice(ctx context.Context, req entities.PriceRequest) (*entities.TokenPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if p, ok := m.prices[strings.ToLower(req.Address)]; ok {
		return p, nil
	}
	return nil, &AllProvidersFailedError{ChainID: req.ChainID, Address: req.Address}
}

func (m *MockResolver) Requests() []entities.PriceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.PriceRequest(nil), m.reqs...)
}

// MockGas returns a fixed USD cost
type MockGas struct {
	cost decimal.Decimal
	err  error
	mu   sync.Mutex
	last gas.Request
}

func (m *MockGas) Estimate(ctx context.Context, req gas.Request) (gas.Estimate, error) {
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	if m.err != nil {
		return gas.Estimate{}, m.err
	}
	return gas.Estimate{CostUSD: m.cost, Source: "mock"}, nil
}

// MockComparer returns a scripted CEX comparison
type MockComparer struct {
	result *cex.Comparison
	err    error
	calls  atomic.Int32
	last   cex.CompareRequest
	mu     sync.Mutex
}

func (m *MockComparer) Compare(ctx context.Context, req cex.CompareRequest) (*cex.Comparison, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

var (
	tokenUSDC = entities.USDC
	tokenWETH = entities.WETH
	tokenDAI  = entities.DAI
)

func customToken(chainID int64, address, symbol string) entities.CustomToken {
	return entities.CustomToken{CustomTokenRecord: entities.CustomTokenRecord{
		TokenInfo:  entities.TokenInfo{ChainID: chainID, Address: address, Symbol: symbol, Decimals: 18},
		ImportedAt: time.Now(),
	}}
}
