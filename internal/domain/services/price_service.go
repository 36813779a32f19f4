package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cache"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
	"github.com/Chrissou78/omniswap-sub002/internal/metrics"
)

// PriceResolverConfig tunes caching and provider timeouts
type PriceResolverConfig struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
	BatchSize       int
}

// DefaultPriceResolverConfig returns a 30s cache and a 12s provider bound
func DefaultPriceResolverConfig() PriceResolverConfig {
	return PriceResolverConfig{
		CacheTTL:        30 * time.Second,
		ProviderTimeout: 12 * time.Second,
		BatchSize:       30,
	}
}

// PriceService resolves USD prices by walking providers in priority order
// and caching the first success. It never retries a provider.
type PriceService struct {
	providers []pricing.Provider
	batch     pricing.BatchProvider
	cache     cache.Cache
	cfg       PriceResolverConfig
	chains    *entities.ChainRegistry
	tokens    *entities.TokenRegistry
	logger    *zap.Logger
}

// NewPriceService builds a resolver. The first provider implementing
// pricing.BatchProvider serves batch requests.
func NewPriceService(providers []pricing.Provider, c cache.Cache, chains *entities.ChainRegistry, tokens *entities.TokenRegistry, cfg PriceResolverConfig, log *zap.Logger) *PriceService {
	def := DefaultPriceResolverConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = def.ProviderTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if c == nil {
		c = cache.NewInMemoryCache()
	}
	if chains == nil {
		chains = entities.NewChainRegistry(nil)
	}
	if tokens == nil {
		tokens = entities.NewTokenRegistry()
	}

	s := &PriceService{
		providers: providers,
		cache:     c,
		cfg:       cfg,
		chains:    chains,
		tokens:    tokens,
		logger:    logger.OrNop(log).Named("price"),
	}
	for _, p := range providers {
		if b, ok := p.(pricing.BatchProvider); ok {
			s.batch = b
			break
		}
	}
	return s
}

// ResolvePrice returns the USD price of a token. On exhaustion the error is
// an *AllProvidersFailedError wrapping ErrPriceUnavailable.
func (s *PriceService) ResolvePrice(ctx context.Context, req entities.PriceRequest) (*entities.TokenPrice, error) {
	if strings.TrimSpace(req.Address) == "" {
		return nil, fmt.Errorf("token address is required: %w", ErrPriceUnavailable)
	}

	key := cache.PriceCacheKey(req.ChainID, req.Address)
	if !req.ForceRefresh {
		if price := s.cached(ctx, key); price != nil {
			return price, nil
		}
	}

	q := s.query(req)
	attempts := make([]ProviderError, 0, len(s.providers))

	for _, p := range s.providers {
		if !p.Supports(q) {
			s.logger.Debug("provider skipped",
				zap.String("provider", p.Name()),
				zap.Int64("chain_id", req.ChainID))
			attempts = append(attempts, ProviderError{Provider: p.Name(), Skipped: true})
			metrics.PriceLookups.WithLabelValues(p.Name(), "skipped").Inc()
			continue
		}

		price, err := s.fetch(ctx, p, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug("provider failed",
				zap.String("provider", p.Name()),
				zap.Int64("chain_id", req.ChainID),
				zap.String("token", req.Address),
				zap.Error(err))
			attempts = append(attempts, ProviderError{Provider: p.Name(), Err: err})
			metrics.PriceLookups.WithLabelValues(p.Name(), "failed").Inc()
			continue
		}

		metrics.PriceLookups.WithLabelValues(p.Name(), "ok").Inc()
		s.store(ctx, key, price)
		return price, nil
	}

	metrics.PriceUnavailable.Inc()
	return nil, &AllProvidersFailedError{ChainID: req.ChainID, Address: req.Address, Attempts: attempts}
}

// ResolvePrices prices many tokens, keyed by entities.PriceRequest.Key().
// Requests are grouped by chain and batched; tokens the batch could not
// price fall back to ResolvePrice. Unpriceable tokens are absent.
func (s *PriceService) ResolvePrices(ctx context.Context, reqs []entities.PriceRequest) (map[string]*entities.TokenPrice, error) {
	out := make(map[string]*entities.TokenPrice, len(reqs))
	var pending []entities.PriceRequest

	byChain := make(map[int64][]entities.PriceRequest)
	var order []int64
	for _, req := range reqs {
		if req.Address == "" {
			continue
		}
		if !req.ForceRefresh {
			if price := s.cached(ctx, cache.PriceCacheKey(req.ChainID, req.Address)); price != nil {
				out[req.Key()] = price
				continue
			}
		}
		if _, seen := byChain[req.ChainID]; !seen {
			order = append(order, req.ChainID)
		}
		byChain[req.ChainID] = append(byChain[req.ChainID], req)
	}

	for _, chainID := range order {
		group := byChain[chainID]
		resolved := s.resolveBatch(ctx, chainID, group)
		for _, req := range group {
			if price, ok := resolved[strings.ToLower(req.Address)]; ok {
				out[req.Key()] = price
				continue
			}
			pending = append(pending, req)
		}
	}

	if len(pending) > 0 {
		results := make([]*entities.TokenPrice, len(pending))
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, req := range pending {
			g.Go(func() error {
				// a single token without a price must not cancel its siblings
				if price, err := s.ResolvePrice(gCtx, req); err == nil {
					results[i] = price
				}
				return nil
			})
		}
		_ = g.Wait()
		for i, req := range pending {
			if results[i] != nil {
				out[req.Key()] = results[i]
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Invalidate drops a cached price
func (s *PriceService) Invalidate(ctx context.Context, chainID int64, address string) error {
	return s.cache.Delete(ctx, cache.PriceCacheKey(chainID, address))
}

// Chains exposes the chain registry used for provider lookups
func (s *PriceService) Chains() *entities.ChainRegistry {
	return s.chains
}

func (s *PriceService) resolveBatch(ctx context.Context, chainID int64, group []entities.PriceRequest) map[string]*entities.TokenPrice {
	out := make(map[string]*entities.TokenPrice)
	if s.batch == nil {
		return out
	}
	chain, ok := s.chains.Get(chainID)
	if !ok || !s.batch.Supports(entities.PriceQuery{Chain: chain, ChainID: chainID, Address: group[0].Address}) {
		return out
	}

	size := s.cfg.BatchSize
	if max := s.batch.MaxBatch(); max > 0 && max < size {
		size = max
	}

	for start := 0; start < len(group); start += size {
		end := start + size
		if end > len(group) {
			end = len(group)
		}
		addresses := make([]string, 0, end-start)
		for _, req := range group[start:end] {
			addresses = append(addresses, req.Address)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		prices, err := s.batch.FetchPrices(callCtx, chain, addresses)
		cancel()
		if err != nil {
			s.logger.Debug("batch price fetch failed",
				zap.String("provider", s.batch.Name()),
				zap.Int64("chain_id", chainID),
				zap.Int("size", len(addresses)),
				zap.Error(err))
			metrics.PriceLookups.WithLabelValues(s.batch.Name(), "failed").Inc()
			continue
		}

		for addr, price := range prices {
			if !price.Valid() {
				continue
			}
			out[strings.ToLower(addr)] = price
			s.store(ctx, cache.PriceCacheKey(chainID, addr), price)
		}
		metrics.PriceLookups.WithLabelValues(s.batch.Name(), "ok").Inc()
	}
	return out
}

func (s *PriceService) fetch(ctx context.Context, p pricing.Provider, q entities.PriceQuery) (price *entities.TokenPrice, err error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			price, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()

	price, err = p.FetchPrice(callCtx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", s.cfg.ProviderTimeout, err)
		}
		return nil, err
	}
	if !price.Valid() {
		return nil, pricing.ErrNoPrice
	}
	return price, nil
}

func (s *PriceService) query(req entities.PriceRequest) entities.PriceQuery {
	chain, ok := s.chains.Get(req.ChainID)
	if !ok {
		chain = entities.Chain{ID: req.ChainID}
	}

	q := entities.PriceQuery{
		Chain:   chain,
		ChainID: req.ChainID,
		Address: strings.TrimSpace(req.Address),
		Symbol:  req.Symbol,
	}

	if token, ok := s.tokens.GetByAddress(req.ChainID, req.Address); ok && token.CoinGeckoID != "" {
		q.CatalogID = token.CoinGeckoID
		if q.Symbol == "" {
			q.Symbol = token.Symbol
		}
	} else if req.Symbol != "" {
		if id, ok := s.tokens.CoinGeckoID(req.ChainID, req.Symbol); ok {
			q.CatalogID = id
		}
	}
	if q.CatalogID == "" && ok && strings.EqualFold(q.Address, chain.WrappedNative) {
		q.CatalogID = chain.NativeCoinGeckoID
	}
	return q
}

func (s *PriceService) cached(ctx context.Context, key string) *entities.TokenPrice {
	price, err := s.cache.GetPrice(ctx, key)
	if err != nil {
		s.logger.Debug("price cache read failed", zap.String("key", key), zap.Error(err))
		metrics.PriceCacheMisses.Inc()
		return nil
	}
	if !price.Valid() {
		metrics.PriceCacheMisses.Inc()
		return nil
	}
	metrics.PriceCacheHits.Inc()
	return price
}

func (s *PriceService) store(ctx context.Context, key string, price *entities.TokenPrice) {
	if err := s.cache.SetPrice(ctx, key, price, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("price cache write failed", zap.String("key", key), zap.Error(err))
	}
}
