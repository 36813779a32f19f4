package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

const (
	tokenAddr = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wethAddr  = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

func ethereum() entities.Chain {
	chains := entities.NewChainRegistry(entities.DefaultChains())
	c, _ := chains.Get(entities.ChainEthereum)
	return c
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDexScreenerPicksHighestLiquidity(t *testing.T) {
	var gotPath string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[
			{"chainId":"ethereum","pairAddress":"0x1","baseToken":{"address":"` + tokenAddr + `"},"quoteToken":{"address":"` + wethAddr + `"},"priceUsd":"0.998","liquidity":{"usd":5000}},
			{"chainId":"ethereum","pairAddress":"0x2","baseToken":{"address":"` + strings.ToLower(tokenAddr) + `"},"quoteToken":{"address":"` + wethAddr + `"},"priceUsd":"1.001","liquidity":{"usd":900000},"priceChange":{"h24":0.12}},
			{"chainId":"ethereum","pairAddress":"0x3","baseToken":{"address":"` + tokenAddr + `"},"quoteToken":{"address":"` + wethAddr + `"},"priceUsd":"1.5","liquidity":{"usd":900000}}
		]`))
	})

	p := NewDexScreenerChainProvider(NewDexScreenerClient(srv.URL, time.Second))
	q := entities.PriceQuery{Chain: ethereum(), Address: tokenAddr}
	require.True(t, p.Supports(q))

	price, err := p.FetchPrice(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "/tokens/v1/ethereum/"+tokenAddr, gotPath)
	assert.True(t, price.PriceUSD.Equal(decimal.RequireFromString("1.001")), price.PriceUSD.String())
	assert.Equal(t, "dexscreener", price.Source)
	require.NotNil(t, price.Change24h)
	assert.True(t, price.Change24h.Equal(decimal.RequireFromString("0.12")))
}

func TestDexScreenerQuoteSidePrice(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[
			{"chainId":"base","baseToken":{"address":"` + wethAddr + `"},"quoteToken":{"address":"` + tokenAddr + `"},"priceNative":"2000","priceUsd":"2000","liquidity":{"usd":100}}
		]}`))
	})

	p := NewDexScreenerSearchProvider(NewDexScreenerClient(srv.URL, time.Second))
	price, err := p.FetchPrice(context.Background(), entities.PriceQuery{Address: tokenAddr})
	require.NoError(t, err)
	assert.True(t, price.PriceUSD.Equal(decimal.NewFromInt(1)))
	assert.Nil(t, price.Change24h)
}

func TestDexScreenerRejectsEmptyAndPriceless(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "empty") {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"baseToken":{"address":"` + tokenAddr + `"},"liquidity":{"usd":1000}}]`))
	})

	client := NewDexScreenerClient(srv.URL, time.Second)
	p := NewDexScreenerChainProvider(client)

	_, err := p.FetchPrice(context.Background(), entities.PriceQuery{Chain: entities.Chain{DexScreenerID: "empty"}, Address: tokenAddr})
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = p.FetchPrice(context.Background(), entities.PriceQuery{Chain: ethereum(), Address: tokenAddr})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestDexScreenerBatch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"baseToken":{"address":"` + tokenAddr + `"},"quoteToken":{"address":"` + wethAddr + `"},"priceNative":"0.0005","priceUsd":"1","liquidity":{"usd":10}}
		]`))
	})

	p := NewDexScreenerChainProvider(NewDexScreenerClient(srv.URL, time.Second))
	prices, err := p.FetchPrices(context.Background(), ethereum(), []string{tokenAddr, wethAddr, "0xdead"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices[strings.ToLower(wethAddr)].PriceUSD.Equal(decimal.NewFromInt(2000)))

	_, err = p.FetchPrices(context.Background(), ethereum(), make([]string, 31))
	assert.Error(t, err)
}

func TestProviderStatusError(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	p := NewDefiLlamaProvider(srv.URL, time.Second)
	_, err := p.FetchPrice(context.Background(), entities.PriceQuery{Chain: ethereum(), Address: tokenAddr})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestDefiLlamaPrices(t *testing.T) {
	var gotPath string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"coins":{
			"ethereum:` + strings.ToLower(tokenAddr) + `":{"price":0.9998,"symbol":"USDC","timestamp":1700000000,"confidence":0.99},
			"ethereum:` + wethAddr + `":{"price":0,"symbol":"WETH"}
		}}`))
	})

	p := NewDefiLlamaProvider(srv.URL, time.Second)
	prices, err := p.FetchPrices(context.Background(), ethereum(), []string{tokenAddr, wethAddr})
	require.NoError(t, err)
	assert.Equal(t, "/prices/current/ethereum:"+tokenAddr+",ethereum:"+wethAddr, gotPath)

	require.Len(t, prices, 1)
	price := prices[strings.ToLower(tokenAddr)]
	assert.True(t, price.PriceUSD.Equal(decimal.RequireFromString("0.9998")))
	assert.Equal(t, time.Unix(1700000000, 0), price.Timestamp)

	_, err = p.FetchPrice(context.Background(), entities.PriceQuery{Chain: ethereum(), Address: wethAddr})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestDefiLlamaSupports(t *testing.T) {
	p := NewDefiLlamaProvider("", time.Second)
	assert.False(t, p.Supports(entities.PriceQuery{Chain: entities.Chain{ID: 999}, Address: tokenAddr}))
	assert.True(t, p.Supports(entities.PriceQuery{Chain: ethereum(), Address: tokenAddr}))
}

func TestCoinGeckoContractAndCatalog(t *testing.T) {
	var apiKey string
	var ids []string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-cg-demo-api-key")
		switch r.URL.Path {
		case "/simple/token_price/ethereum":
			assert.Equal(t, tokenAddr, r.URL.Query().Get("contract_addresses"))
			w.Write([]byte(`{"` + strings.ToLower(tokenAddr) + `":{"usd":1.0002,"usd_24h_change":-0.05}}`))
		case "/simple/price":
			ids = append(ids, r.URL.Query().Get("ids"))
			if r.URL.Query().Get("ids") != "usd-coin" {
				w.Write([]byte(`{}`))
				return
			}
			w.Write([]byte(`{"usd-coin":{"usd":0.9999}}`))
		default:
			http.NotFound(w, r)
		}
	})

	client := NewCoinGeckoClient(srv.URL, "demo-key", time.Second)

	contract := NewCoinGeckoContractProvider(client)
	price, err := contract.FetchPrice(context.Background(), entities.PriceQuery{Chain: ethereum(), Address: tokenAddr})
	require.NoError(t, err)
	assert.True(t, price.PriceUSD.Equal(decimal.RequireFromString("1.0002")))
	require.NotNil(t, price.Change24h)
	assert.Equal(t, "demo-key", apiKey)

	catalog := NewCoinGeckoCatalogProvider(client)
	assert.False(t, catalog.Supports(entities.PriceQuery{Address: tokenAddr}))
	price, err = catalog.FetchPrice(context.Background(), entities.PriceQuery{CatalogID: "usd-coin"})
	require.NoError(t, err)
	assert.Equal(t, "coingecko-id", price.Source)

	_, err = catalog.FetchPrice(context.Background(), entities.PriceQuery{CatalogID: "unknown"})
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, []string{"usd-coin", "unknown"}, ids)
}

func TestHTTPClientHonoursContext(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := NewHTTPClient(5*time.Second, 0).GetJSON(ctx, srv.URL, &out)
	assert.Error(t, err)
}
