package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/policy"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cache"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/gas"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/recorder"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/security"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/storage"
)

const memeAddr = "0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE"

type stubProvider struct {
	mu     sync.Mutex
	prices map[string]string
}

func (p *stubProvider) set(address, v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToLower(address)] = v
}

func (p *stubProvider) Name() string                        { return "stub" }
func (p *stubProvider) Supports(q entities.PriceQuery) bool { return true }

func (p *stubProvider) FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error) {
	p.mu.Lock()
	v, ok := p.prices[strings.ToLower(q.Address)]
	p.mu.Unlock()
	if !ok {
		return nil, pricing.ErrNoPrice
	}
	return &entities.TokenPrice{
		PriceUSD:  decimal.RequireFromString(v),
		Source:    p.Name(),
		Timestamp: time.Unix(1700000000, 0),
	}, nil
}

type stubGas struct{}

func (stubGas) Estimate(ctx context.Context, req gas.Request) (gas.Estimate, error) {
	return gas.Estimate{CostUSD: decimal.NewFromInt(5), Source: "stub"}, nil
}

type stubReader struct{}

func (stubReader) ReadToken(ctx context.Context, chainID int64, address string) (entities.TokenInfo, error) {
	return entities.TokenInfo{Symbol: "MEME", Name: "Meme", Decimals: 18}, nil
}

type stubAuditor struct{}

func (stubAuditor) AuditSummary(ctx context.Context, chainID int64, address string) (*security.AuditSummary, error) {
	return &security.AuditSummary{ChainID: chainID, Address: address, RiskLevel: security.RiskMedium, RiskScore: 45}, nil
}

type testEnv struct {
	srv    *httptest.Server
	txLog  string
	prices *stubProvider
}

const testOrigin = "https://app.omniswap.test"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	chains := entities.NewChainRegistry(entities.DefaultChains())
	tokens := entities.DefaultRegistry()
	provider := &stubProvider{prices: map[string]string{
		strings.ToLower(entities.USDC.Address): "1",
		strings.ToLower(entities.DAI.Address):  "2",
		strings.ToLower(entities.WETH.Address): "2000",
		strings.ToLower(memeAddr):              "0.5",
	}}

	prices := services.NewPriceService([]pricing.Provider{provider}, cache.NewInMemoryCache(), chains, tokens, services.DefaultPriceResolverConfig(), nil)
	routes := services.NewRouteService(policy.Default(), policy.DefaultTimingTable(), nil, chains, nil)
	quotes := services.NewQuoteService(prices, stubGas{}, routes, chains, nil)

	store, err := storage.NewFileStore("")
	require.NoError(t, err)
	custom := services.NewCustomTokenService(store, tokens, chains, stubReader{}, prices, nil)

	txLog := filepath.Join(t.TempDir(), "tx.jsonl")

	origins := NewOriginPolicy([]string{testOrigin})
	router := NewRouter(Handlers{
		Health:       NewHealthHandler("test", chains, tokens),
		Registry:     NewRegistryHandler(chains, tokens),
		Price:        NewPriceHandler(prices, tokens),
		Quote:        NewQuoteHandler(quotes, custom, stubAuditor{}, nil),
		Stream:       NewStreamHandler(quotes, custom, services.OrchestratorConfig{Debounce: 10 * time.Millisecond}, origins, nil),
		CustomTokens: NewCustomTokenHandler(custom),
		Audit:        NewAuditHandler(stubAuditor{}),
		Transactions: NewTransactionHandler(recorder.NewJSONLRecorder(txLog)),
	}, origins, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, txLog: txLog, prices: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, len(entities.DefaultChains()), health.Chains)
	assert.Positive(t, health.Tokens)

	resp, _ = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegistryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodGet, "/api/v1/chains", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"Ethereum"`)
	assert.NotContains(t, string(data), "rpcUrl")

	resp, data = env.do(t, http.MethodGet, "/api/v1/tokens?chainId=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"USDC"`)
	assert.NotContains(t, string(data), "EPjFWdd5")

	resp, _ = env.do(t, http.MethodGet, "/api/v1/tokens?chainId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = env.do(t, http.MethodGet, "/api/v1/tokens?chainId=999", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_chain", decodeError(t, data).Error)
}

func TestGetPrice(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodGet, "/api/v1/price/1/"+entities.USDC.Address, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var price PriceResponse
	require.NoError(t, json.Unmarshal(data, &price))
	assert.Equal(t, "1", price.PriceUSD)
	assert.Equal(t, "USDC", price.Symbol)
	assert.Equal(t, "stub", price.Source)
	assert.Equal(t, "2023-11-14T22:13:20Z", price.UpdatedAt)

	resp, data = env.do(t, http.MethodGet, "/api/v1/price/1/0x0000000000000000000000000000000000000bad", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "price_unavailable", decodeError(t, data).Error)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/price/eth/"+entities.USDC.Address, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/price/1/"+entities.USDC.Address+"?refresh=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPrices(t *testing.T) {
	env := newTestEnv(t)

	body := BatchPriceRequest{Tokens: []entities.PriceRequest{
		{ChainID: 1, Address: entities.DAI.Address},
		{ChainID: 1, Address: "0x0000000000000000000000000000000000000bad"},
	}}
	resp, data := env.do(t, http.MethodPost, "/api/v1/prices", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out BatchPriceResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Prices, 1)
	assert.Equal(t, "2", out.Prices[entities.PriceKey(1, entities.DAI.Address)].PriceUSD)
	assert.Equal(t, []string{"1:0x0000000000000000000000000000000000000bad"}, out.Missing)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/prices", BatchPriceRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetQuote(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/quote?chainIn=1&tokenIn=" + entities.USDC.Address + "&tokenOut=" + entities.DAI.Address

	resp, data := env.do(t, http.MethodGet, base+"&amount=100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var quote QuoteResponse
	require.NoError(t, json.Unmarshal(data, &quote))
	assert.Equal(t, entities.StatePublished, quote.State)
	assert.Equal(t, []entities.RouteType{entities.RouteDirect, entities.RouteDelegated}, quote.Routes.Types())
	assert.Equal(t, entities.RouteDelegated, quote.SelectedRoute)
	require.NotNil(t, quote.OutputAmount)
	assert.True(t, quote.OutputAmount.Equal(decimal.RequireFromString("49.5")))
	assert.Equal(t, "100", quote.ValueUSD)
	assert.Empty(t, quote.Audits)

	resp, data = env.do(t, http.MethodGet, base+"&amount=100&route=direct", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &quote))
	assert.Equal(t, entities.RouteDirect, quote.SelectedRoute)
	assert.True(t, quote.OutputAmount.Equal(decimal.RequireFromString("47.15")))
}

func TestGetQuoteValidation(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/quote?chainIn=1&tokenIn=" + entities.USDC.Address

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing params", "&amount=1", http.StatusBadRequest, "missing_params"},
		{"negative amount", "&tokenOut=" + entities.DAI.Address + "&amount=-1", http.StatusBadRequest, "invalid_amount"},
		{"bad route", "&tokenOut=" + entities.DAI.Address + "&amount=1&route=teleport", http.StatusBadRequest, "invalid_route"},
		{"bad chain", "&tokenOut=" + entities.DAI.Address + "&amount=1&chainOut=x", http.StatusBadRequest, "invalid_chain"},
		{"unknown token", "&tokenOut=0x0000000000000000000000000000000000000bad&amount=1", http.StatusNotFound, "token_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := env.do(t, http.MethodGet, base+tt.query, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Error)
		})
	}
}

func TestCustomTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodPost, "/api/v1/custom-tokens", ImportRequest{ChainID: 1, Address: strings.ToLower(memeAddr)})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var token entities.CustomToken
	require.NoError(t, json.Unmarshal(data, &token))
	assert.Equal(t, memeAddr, token.Address)
	assert.Equal(t, "MEME", token.Symbol)
	require.NotNil(t, token.PriceUSD)
	assert.True(t, token.PriceUSD.Equal(decimal.RequireFromString("0.5")))

	// quotes with an imported token are restricted and audited
	resp, data = env.do(t, http.MethodGet, "/api/v1/quote?chainIn=1&tokenIn="+memeAddr+"&tokenOut="+entities.USDC.Address+"&amount=1000", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var quote QuoteResponse
	require.NoError(t, json.Unmarshal(data, &quote))
	assert.True(t, quote.Restricted)
	assert.Equal(t, []entities.RouteType{entities.RouteDirect}, quote.Routes.Types())
	require.Len(t, quote.Audits, 1)
	assert.Equal(t, security.RiskMedium, quote.Audits[0].RiskLevel)

	resp, data = env.do(t, http.MethodGet, "/api/v1/custom-tokens", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "MEME")

	env.prices.set(memeAddr, "0.75")
	resp, data = env.do(t, http.MethodPost, "/api/v1/custom-tokens/1/"+memeAddr+"/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &token))
	assert.True(t, token.PriceUSD.Equal(decimal.RequireFromString("0.75")))

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/custom-tokens/1/"+memeAddr, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/custom-tokens/1/"+memeAddr, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCustomTokenImportErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"verified token", ImportRequest{ChainID: 1, Address: entities.USDC.Address}, http.StatusConflict, "already_verified"},
		{"non evm chain", ImportRequest{ChainID: entities.ChainSolana, Address: memeAddr}, http.StatusBadRequest, "unsupported_chain"},
		{"bad address", ImportRequest{ChainID: 1, Address: "0x12"}, http.StatusBadRequest, "invalid_address"},
		{"missing fields", ImportRequest{}, http.StatusBadRequest, "missing_params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := env.do(t, http.MethodPost, "/api/v1/custom-tokens", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Error)
		})
	}
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodGet, "/api/v1/audit/56/"+memeAddr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary security.AuditSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, int64(56), summary.ChainID)
	assert.Equal(t, 45, summary.RiskScore)

	rec := httptest.NewRecorder()
	NewAuditHandler(nil).GetAudit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/1/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecordTransaction(t *testing.T) {
	env := newTestEnv(t)

	rec := entities.TransactionRecord{
		FromChainID: 1,
		ToChainID:   1,
		FromToken:   entities.USDC.Address,
		ToToken:     entities.DAI.Address,
		AmountIn:    decimal.NewFromInt(100),
		AmountOut:   decimal.RequireFromString("49.5"),
		Route:       entities.RouteDelegated,
		FeesUSD:     decimal.NewFromInt(1),
		TxHash:      "0xabc",
	}
	resp, _ := env.do(t, http.MethodPost, "/api/v1/transactions", rec)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	stored, err := recorder.NewJSONLRecorder(env.txLog).ReadAll()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "0xabc", stored[0].TxHash)

	rec.Route = "teleport"
	resp, data := env.do(t, http.MethodPost, "/api/v1/transactions", rec)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_record", decodeError(t, data).Error)
}

func readEvent(t *testing.T, conn *websocket.Conn, match func(StreamEvent) bool) StreamEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev StreamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if match(ev) {
			return ev
		}
	}
}

func TestQuoteStream(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/quote/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	send := func(msg StreamMessage) {
		require.NoError(t, conn.WriteJSON(msg))
	}

	send(StreamMessage{Type: MsgSetTokenIn, ChainID: 1, Address: entities.USDC.Address})
	send(StreamMessage{Type: MsgSetTokenOut, ChainID: 1, Address: entities.DAI.Address})
	send(StreamMessage{Type: MsgSetAmount, Amount: "100"})

	ev := readEvent(t, conn, func(ev StreamEvent) bool {
		return ev.Type == "quote" && ev.Quote.State == entities.StatePublished
	})
	assert.True(t, ev.Quote.AmountIn.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, entities.RouteDelegated, ev.Quote.SelectedRoute)

	send(StreamMessage{Type: MsgSelectRoute, Route: entities.RouteDirect})
	ev = readEvent(t, conn, func(ev StreamEvent) bool {
		return ev.Type == "quote" && ev.Quote.SelectedRoute == entities.RouteDirect
	})
	assert.True(t, ev.Quote.OutputAmount.Equal(decimal.RequireFromString("47.15")))

	send(StreamMessage{Type: MsgSetTokenOut, ChainID: 1, Address: "0x0000000000000000000000000000000000000bad"})
	ev = readEvent(t, conn, func(ev StreamEvent) bool { return ev.Type == "error" })
	assert.Equal(t, "token_not_found", ev.Error.Error)

	send(StreamMessage{Type: "launch"})
	ev = readEvent(t, conn, func(ev StreamEvent) bool { return ev.Type == "error" })
	assert.Equal(t, "invalid_message", ev.Error.Error)
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		host    string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "api.omniswap.test", "", true},
		{"same origin", nil, "api.omniswap.test", "https://api.omniswap.test", true},
		{"foreign origin", nil, "api.omniswap.test", "https://evil.test", false},
		{"listed origin", []string{"https://App.Omniswap.test/"}, "api.omniswap.test", "https://app.omniswap.test", true},
		{"unlisted origin", []string{"https://app.omniswap.test"}, "api.omniswap.test", "https://app.omniswap.test.evil", false},
		{"wildcard", []string{"*"}, "api.omniswap.test", "https://anything.test", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/api/v1/quote/stream", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewOriginPolicy(tt.origins).Allowed(r))
		})
	}
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	get := func(method, origin string) *http.Response {
		req, err := http.NewRequest(method, env.srv.URL+"/health", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := get(http.MethodGet, testOrigin)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(http.MethodGet, "https://evil.test")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(http.MethodOptions, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestQuoteStreamChecksOrigin(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/quote/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {testOrigin}})
	require.NoError(t, err)
	conn.Close()
}
