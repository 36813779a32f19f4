package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/config"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/policy"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cache"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/cex"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/ethereum"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/gas"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/recorder"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/security"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/storage"
)

// app holds the wired services of one process
type app struct {
	cfg    config.Config
	logger *zap.Logger

	chains  *entities.ChainRegistry
	tokens  *entities.TokenRegistry
	prices  *services.PriceService
	quotes  *services.QuoteService
	custom  *services.CustomTokenService
	auditor security.Auditor
	txs     *recorder.AsyncRecorder

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	chains, err := loadChains(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := loadTokens(cfg)
	if err != nil {
		return nil, err
	}
	a.chains, a.tokens = chains, tokens

	priceCache := a.newCache()

	dexScreener := pricing.NewDexScreenerClient(cfg.DexScreenerURL, cfg.ProviderTimeout)
	coinGecko := pricing.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.ProviderTimeout)
	providers := []pricing.Provider{
		pricing.NewDexScreenerChainProvider(dexScreener),
		pricing.NewDexScreenerSearchProvider(dexScreener),
		pricing.NewDefiLlamaProvider(cfg.DefiLlamaURL, cfg.ProviderTimeout),
		pricing.NewCoinGeckoContractProvider(coinGecko),
		pricing.NewCoinGeckoCatalogProvider(coinGecko),
	}
	a.prices = services.NewPriceService(providers, priceCache, chains, tokens, services.PriceResolverConfig{
		CacheTTL:        cfg.PriceCacheTTL,
		ProviderTimeout: cfg.ProviderTimeout,
		BatchSize:       cfg.BatchSize,
	}, log)

	pool := ethereum.NewPool(chains)
	a.closers = append(a.closers, pool.Close)

	var comparer cex.Comparer
	if cfg.CEXURL != "" {
		comparer = cex.NewClient(cfg.CEXURL, cfg.ProviderTimeout)
	}
	routes := services.NewRouteService(cfg.Fees, policy.DefaultTimingTable(), comparer, chains, log)
	a.quotes = services.NewQuoteService(a.prices, gas.NewEstimator(pool, chains, log), routes, chains, log)

	store, err := storage.NewFileStore(cfg.CustomTokens)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.custom = services.NewCustomTokenService(store, tokens, chains, ethereum.NewMetadataReader(pool, log), a.prices, log)
	a.auditor = security.NewGoPlusAuditor(cfg.AuditURL, cfg.ProviderTimeout)

	sink, err := a.newSink(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.txs = recorder.NewAsyncRecorder(sink, recorder.AsyncOptions{}, log)

	log.Info("services ready",
		zap.Int("chains", len(chains.All())),
		zap.Int("tokens", tokens.Count()),
		zap.Bool("alternate_route", comparer != nil))
	return a, nil
}

// close drains the recorder, then releases connections in reverse order
func (a *app) close(ctx context.Context) {
	if a.txs != nil {
		if err := a.txs.Close(ctx); err != nil {
			a.logger.Warn("transaction recorder did not drain", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) newCache() cache.Cache {
	if a.cfg.RedisAddr == "" {
		a.logger.Info("using in-memory price cache")
		return cache.NewInMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		a.logger.Warn("redis unavailable, using in-memory price cache",
			zap.String("addr", a.cfg.RedisAddr),
			zap.Error(err))
		return cache.NewInMemoryCache()
	}
	a.closers = append(a.closers, func() { redisCache.Close() })
	a.logger.Info("connected to redis", zap.String("addr", a.cfg.RedisAddr))
	return redisCache
}

func (a *app) newSink(ctx context.Context) (recorder.Recorder, error) {
	if a.cfg.PostgresDSN == "" {
		a.logger.Info("recording transactions to file", zap.String("path", a.cfg.TxLog))
		return recorder.NewJSONLRecorder(a.cfg.TxLog), nil
	}
	pg, err := recorder.NewPostgresRecorder(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect transaction store: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

func loadChains(cfg config.Config) (*entities.ChainRegistry, error) {
	chains := entities.NewChainRegistry(entities.DefaultChains())
	if cfg.ChainsFile != "" {
		var err error
		if chains, err = entities.LoadChainsFromFile(cfg.ChainsFile); err != nil {
			return nil, err
		}
	}
	for id, url := range cfg.RPC {
		chains.SetRPCURL(id, url)
	}
	return chains, nil
}

func loadTokens(cfg config.Config) (*entities.TokenRegistry, error) {
	if cfg.TokensFile == "" {
		return entities.DefaultRegistry(), nil
	}
	tokens := entities.NewTokenRegistry()
	if err := tokens.LoadFromFile(cfg.TokensFile); err != nil {
		return nil, err
	}
	return tokens, nil
}
