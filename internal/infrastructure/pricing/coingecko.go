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
	CoinGeckoBaseURL   = "https://api.coingecko.com/api/v3"
	coinGeckoRateLimit = 30
)

// coinGeckoQuote is the per-asset object of the simple price endpoints
type coinGeckoQuote struct {
	USD          *decimal.Decimal `json:"usd"`
	USD24hChange *decimal.Decimal `json:"usd_24h_change"`
}

// CoinGeckoClient wraps the simple price endpoints. Both providers built on
// it share one rate limiter.
type CoinGeckoClient struct {
	http    *HTTPClient
	baseURL string
	now     func() time.Time
}

// NewCoinGeckoClient creates a client; apiKey is sent as the demo key header when set
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	return &CoinGeckoClient{
		http:    NewHTTPClient(timeout, coinGeckoRateLimit).WithHeader("x-cg-demo-api-key", apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (c *CoinGeckoClient) toPrice(q coinGeckoQuote, source string) (*entities.TokenPrice, error) {
	if q.USD == nil || !q.USD.IsPositive() {
		return nil, ErrNoPrice
	}
	return &entities.TokenPrice{
		PriceUSD:  *q.USD,
		Change24h: q.USD24hChange,
		Source:    source,
		Timestamp: c.now(),
	}, nil
}

// TokenPrice prices a contract on an asset platform
func (c *CoinGeckoClient) TokenPrice(ctx context.Context, platform, address, source string) (*entities.TokenPrice, error) {
	endpoint := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL, url.PathEscape(platform), url.QueryEscape(address))

	var response map[string]coinGeckoQuote
	if err := c.http.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get coingecko token price: %w", err)
	}

	for k, q := range response {
		if strings.EqualFold(k, address) {
			return c.toPrice(q, source)
		}
	}
	return nil, ErrNoPrice
}

// CoinPrice prices an asset by its catalog id
func (c *CoinGeckoClient) CoinPrice(ctx context.Context, id, source string) (*entities.TokenPrice, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL, url.QueryEscape(id))

	var response map[string]coinGeckoQuote
	if err := c.http.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get coingecko price: %w", err)
	}

	q, ok := response[id]
	if !ok {
		return nil, ErrNoPrice
	}
	return c.toPrice(q, source)
}

// CoinGeckoContractProvider prices by contract address on the chain's asset platform
type CoinGeckoContractProvider struct {
	client *CoinGeckoClient
}

func NewCoinGeckoContractProvider(client *CoinGeckoClient) *CoinGeckoContractProvider {
	return &CoinGeckoContractProvider{client: client}
}

func (p *CoinGeckoContractProvider) Name() string { return "coingecko-contract" }

func (p *CoinGeckoContractProvider) Supports(q entities.PriceQuery) bool {
	return q.Chain.CoinGeckoPlatform != "" && q.Address != ""
}

func (p *CoinGeckoContractProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	return p.client.TokenPrice(ctx, q.Chain.CoinGeckoPlatform, q.Address, p.Name())
}

// CoinGeckoCatalogProvider prices by the catalog id registered for the symbol
type CoinGeckoCatalogProvider struct {
	client *CoinGeckoClient
}

func NewCoinGeckoCatalogProvider(client *CoinGeckoClient) *CoinGeckoCatalogProvider {
	return &CoinGeckoCatalogProvider{client: client}
}

func (p *CoinGeckoCatalogProvider) Name() string { return "coingecko-id" }

func (p *CoinGeckoCatalogProvider) Supports(q entities.PriceQuery) bool {
	return q.CatalogID != ""
}

func (p *CoinGeckoCatalogProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	return p.client.CoinPrice(ctx, q.CatalogID, p.Name())
}
