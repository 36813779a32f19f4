package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

const (
	DexScreenerBaseURL   = "https://api.dexscreener.com"
	dexScreenerRateLimit = 300 // requests per minute
	dexScreenerMaxBatch  = 30
)

// DexScreenerResponse is the /latest/dex/tokens payload
type DexScreenerResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairInfo `json:"pairs"`
}

// PairInfo describes one liquidity pool
type PairInfo struct {
	ChainID     string           `json:"chainId"`
	DexID       string           `json:"dexId"`
	PairAddress string           `json:"pairAddress"`
	BaseToken   PairToken        `json:"baseToken"`
	QuoteToken  PairToken        `json:"quoteToken"`
	PriceNative *decimal.Decimal `json:"priceNative"`
	PriceUSD    *decimal.Decimal `json:"priceUsd"`
	Liquidity   *LiquidityInfo   `json:"liquidity"`
	PriceChange *PriceChange     `json:"priceChange"`
}

// PairToken is one side of a pool
type PairToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// LiquidityInfo holds the pool liquidity
type LiquidityInfo struct {
	USD decimal.Decimal `json:"usd"`
}

// PriceChange holds percentage changes of the base token
type PriceChange struct {
	H24 *decimal.Decimal `json:"h24"`
}

// DexScreenerClient talks to the DexScreener public API
type DexScreenerClient struct {
	http    *HTTPClient
	baseURL string
	now     func() time.Time
}

// NewDexScreenerClient creates a client; an empty baseURL selects the public API
func NewDexScreenerClient(baseURL string, timeout time.Duration) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DexScreenerBaseURL
	}
	return &DexScreenerClient{
		http:    NewHTTPClient(timeout, dexScreenerRateLimit),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// TokenPairs returns the pools of the given tokens on one chain
func (c *DexScreenerClient) TokenPairs(ctx context.Context, chainSlug string, addresses []string) ([]PairInfo, error) {
	escaped := make([]string, len(addresses))
	for i, a := range addresses {
		escaped[i] = url.PathEscape(a)
	}
	endpoint := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, url.PathEscape(chainSlug), strings.Join(escaped, ","))

	var pairs []PairInfo
	if err := c.http.GetJSON(ctx, endpoint, &pairs); err != nil {
		return nil, fmt.Errorf("failed to get token pairs: %w", err)
	}
	return pairs, nil
}

// SearchPairs returns the pools of a token address on any chain
func (c *DexScreenerClient) SearchPairs(ctx context.Context, address string) ([]PairInfo, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(address))

	var response DexScreenerResponse
	if err := c.http.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to search token pairs: %w", err)
	}
	return response.Pairs, nil
}

// bestPairPrice picks, among the pools containing address, the one with the
// highest USD liquidity (first wins on ties) and derives the token's USD price
// from it. When the token is the quote side the price is priceUsd/priceNative.
func bestPairPrice(pairs []PairInfo, address string, source string, now time.Time) (*entities.TokenPrice, error) {
	var best *entities.TokenPrice
	bestLiquidity := decimal.NewFromInt(-1)

	for i := range pairs {
		pair := &pairs[i]

		price, ok := pairTokenPrice(pair, address)
		if !ok {
			continue
		}

		liquidity := decimal.Zero
		if pair.Liquidity != nil {
			liquidity = pair.Liquidity.USD
		}
		if !liquidity.GreaterThan(bestLiquidity) {
			continue
		}

		bestLiquidity = liquidity
		liq := liquidity
		best = &entities.TokenPrice{
			PriceUSD:  price,
			Liquidity: &liq,
			Source:    source,
			Timestamp: now,
		}
		if pair.PriceChange != nil && pair.PriceChange.H24 != nil && strings.EqualFold(pair.BaseToken.Address, address) {
			change := *pair.PriceChange.H24
			best.Change24h = &change
		}
	}

	if best == nil {
		return nil, ErrNoPrice
	}
	return best, nil
}

func pairTokenPrice(pair *PairInfo, address string) (decimal.Decimal, bool) {
	if pair.PriceUSD == nil || !pair.PriceUSD.IsPositive() {
		return decimal.Zero, false
	}
	switch {
	case strings.EqualFold(pair.BaseToken.Address, address):
		return *pair.PriceUSD, true
	case strings.EqualFold(pair.QuoteToken.Address, address):
		if pair.PriceNative == nil || !pair.PriceNative.IsPositive() {
			return decimal.Zero, false
		}
		return pair.PriceUSD.Div(*pair.PriceNative), true
	default:
		return decimal.Zero, false
	}
}

// DexScreenerChainProvider prices a token using the chain-scoped endpoint
type DexScreenerChainProvider struct {
	client *DexScreenerClient
}

func NewDexScreenerChainProvider(client *DexScreenerClient) *DexScreenerChainProvider {
	return &DexScreenerChainProvider{client: client}
}

func (p *DexScreenerChainProvider) Name() string { return "dexscreener" }

func (p *DexScreenerChainProvider) Supports(q entities.PriceQuery) bool {
	return q.Chain.DexScreenerID != "" && q.Address != ""
}

func (p *DexScreenerChainProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	pairs, err := p.client.TokenPairs(ctx, q.Chain.DexScreenerID, []string{q.Address})
	if err != nil {
		return nil, err
	}
	return bestPairPrice(pairs, q.Address, p.Name(), p.client.now())
}

func (p *DexScreenerChainProvider) MaxBatch() int { return dexScreenerMaxBatch }

func (p *DexScreenerChainProvider) FetchPrices(ctx context.Context, chain entities.Chain, addresses []string) (map[string]*entities.TokenPrice, error) {
	if chain.DexScreenerID == "" {
		return nil, fmt.Errorf("chain %d has no dexscreener id", chain.ID)
	}
	if len(addresses) > dexScreenerMaxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(addresses), dexScreenerMaxBatch)
	}

	pairs, err := p.client.TokenPairs(ctx, chain.DexScreenerID, addresses)
	if err != nil {
		return nil, err
	}

	now := p.client.now()
	out := make(map[string]*entities.TokenPrice, len(addresses))
	for _, addr := range addresses {
		if price, err := bestPairPrice(pairs, addr, p.Name(), now); err == nil {
			out[strings.ToLower(addr)] = price
		}
	}
	return out, nil
}

// DexScreenerSearchProvider finds a token by raw address across all chains.
// It covers tokens whose chain mapping is unknown.
type DexScreenerSearchProvider struct {
	client *DexScreenerClient
}

func NewDexScreenerSearchProvider(client *DexScreenerClient) *DexScreenerSearchProvider {
	return &DexScreenerSearchProvider{client: client}
}

func (p *DexScreenerSearchProvider) Name() string { return "dexscreener-search" }

func (p *DexScreenerSearchProvider) Supports(q entities.PriceQuery) bool {
	return q.Address != ""
}

func (p *DexScreenerSearchProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	pairs, err := p.client.SearchPairs(ctx, q.Address)
	if err != nil {
		return nil, err
	}
	return bestPairPrice(pairs, q.Address, p.Name(), p.client.now())
}
