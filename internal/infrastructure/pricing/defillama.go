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
	DefiLlamaBaseURL   = "https://coins.llama.fi"
	defiLlamaRateLimit = 600
	defiLlamaMaxBatch  = 50
)

// DefiLlamaResponse is the /prices/current payload
type DefiLlamaResponse struct {
	Coins map[string]DefiLlamaCoin `json:"coins"`
}

// DefiLlamaCoin is one priced coin
type DefiLlamaCoin struct {
	Price      *decimal.Decimal `json:"price"`
	Symbol     string           `json:"symbol"`
	Decimals   int              `json:"decimals"`
	Timestamp  int64            `json:"timestamp"`
	Confidence float64          `json:"confidence"`
}

// DefiLlamaProvider prices tokens via the aggregated-protocols coins API,
// keyed by "chain:address"
type DefiLlamaProvider struct {
	http    *HTTPClient
	baseURL string
	now     func() time.Time
}

func NewDefiLlamaProvider(baseURL string, timeout time.Duration) *DefiLlamaProvider {
	if baseURL == "" {
		baseURL = DefiLlamaBaseURL
	}
	return &DefiLlamaProvider{
		http:    NewHTTPClient(timeout, defiLlamaRateLimit),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (p *DefiLlamaProvider) Name() string { return "defillama" }

func (p *DefiLlamaProvider) Supports(q entities.PriceQuery) bool {
	return q.Chain.DefiLlamaID != "" && q.Address != ""
}

func (p *DefiLlamaProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	prices, err := p.FetchPrices(ctx, q.Chain, []string{q.Address})
	if err != nil {
		return nil, err
	}
	price, ok := prices[strings.ToLower(q.Address)]
	if !ok {
		return nil, ErrNoPrice
	}
	return price, nil
}

func (p *DefiLlamaProvider) MaxBatch() int { return defiLlamaMaxBatch }

func (p *DefiLlamaProvider) FetchPrices(ctx context.Context, chain entities.Chain, addresses []string) (map[string]*entities.TokenPrice, error) {
	if chain.DefiLlamaID == "" {
		return nil, fmt.Errorf("chain %d has no defillama id", chain.ID)
	}
	if len(addresses) == 0 {
		return map[string]*entities.TokenPrice{}, nil
	}

	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = chain.DefiLlamaID + ":" + a
	}
	endpoint := fmt.Sprintf("%s/prices/current/%s", p.baseURL, url.PathEscape(strings.Join(keys, ",")))

	var response DefiLlamaResponse
	if err := p.http.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get defillama prices: %w", err)
	}

	byKey := make(map[string]DefiLlamaCoin, len(response.Coins))
	for k, coin := range response.Coins {
		byKey[strings.ToLower(k)] = coin
	}

	out := make(map[string]*entities.TokenPrice, len(addresses))
	for _, a := range addresses {
		coin, ok := byKey[strings.ToLower(chain.DefiLlamaID+":"+a)]
		if !ok || coin.Price == nil || !coin.Price.IsPositive() {
			continue
		}
		ts := p.now()
		if coin.Timestamp > 0 {
			ts = time.Unix(coin.Timestamp, 0)
		}
		out[strings.ToLower(a)] = &entities.TokenPrice{
			PriceUSD:  *coin.Price,
			Source:    p.Name(),
			Timestamp: ts,
		}
	}
	return out, nil
}
