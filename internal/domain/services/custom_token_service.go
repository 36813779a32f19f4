package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/storage"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

// TokenMetadataReader reads on-chain token metadata
type TokenMetadataReader interface {
	ReadToken(ctx context.Context, chainID int64, address string) (entities.TokenInfo, error)
}

// CustomTokenService manages user-imported tokens and resolves addresses to
// either variant. Imported tokens are priced through the same resolver as
// verified ones.
type CustomTokenService struct {
	store    storage.CustomTokenStore
	registry *entities.TokenRegistry
	chains   *entities.ChainRegistry
	reader   TokenMetadataReader
	prices   PriceResolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewCustomTokenService(store storage.CustomTokenStore, registry *entities.TokenRegistry, chains *entities.ChainRegistry, reader TokenMetadataReader, prices PriceResolver, log *zap.Logger) *CustomTokenService {
	return &CustomTokenService{
		store:    store,
		registry: registry,
		chains:   chains,
		reader:   reader,
		prices:   prices,
		logger:   logger.OrNop(log).Named("custom_tokens"),
		now:      time.Now,
	}
}

// Import reads an EVM token's metadata and stores it. Importing the same
// token twice returns the stored record.
func (s *CustomTokenService) Import(ctx context.Context, chainID int64, address string) (entities.CustomToken, error) {
	chain, ok := s.chains.Get(chainID)
	if !ok || !chain.IsEVM() {
		return entities.CustomToken{}, fmt.Errorf("import on chain %d: %w", chainID, ErrUnsupportedChain)
	}
	if !common.IsHexAddress(address) {
		return entities.CustomToken{}, fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}
	if _, ok := s.registry.GetByAddress(chainID, address); ok {
		return entities.CustomToken{}, ErrAlreadyVerified
	}

	existing, ok, err := s.store.Get(ctx, chainID, address)
	if err != nil {
		return entities.CustomToken{}, err
	}
	if ok {
		return entities.CustomToken{CustomTokenRecord: existing}, nil
	}

	if s.reader == nil {
		return entities.CustomToken{}, fmt.Errorf("import on chain %d: %w", chainID, ErrUnsupportedChain)
	}
	info, err := s.reader.ReadToken(ctx, chainID, address)
	if err != nil {
		return entities.CustomToken{}, fmt.Errorf("read token metadata: %w", err)
	}
	info.ChainID = chainID
	info.Address = common.HexToAddress(address).Hex()

	rec := entities.CustomTokenRecord{TokenInfo: info, ImportedAt: s.now().UTC()}
	s.applyPrice(ctx, &rec, false)

	if err := s.store.Put(ctx, rec); err != nil {
		return entities.CustomToken{}, fmt.Errorf("store custom token: %w", err)
	}
	s.logger.Info("custom token imported",
		zap.Int64("chain_id", chainID),
		zap.String("address", info.Address),
		zap.String("symbol", info.Symbol))
	return entities.CustomToken{CustomTokenRecord: rec}, nil
}

func (s *CustomTokenService) List(ctx context.Context) ([]entities.CustomToken, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entities.CustomToken, len(records))
	for i, rec := range records {
		out[i] = entities.CustomToken{CustomTokenRecord: rec}
	}
	return out, nil
}

func (s *CustomTokenService) Get(ctx context.Context, chainID int64, address string) (entities.CustomToken, error) {
	rec, ok, err := s.store.Get(ctx, chainID, address)
	if err != nil {
		return entities.CustomToken{}, err
	}
	if !ok {
		return entities.CustomToken{}, ErrTokenNotFound
	}
	return entities.CustomToken{CustomTokenRecord: rec}, nil
}

func (s *CustomTokenService) Delete(ctx context.Context, chainID int64, address string) error {
	deleted, err := s.store.Delete(ctx, chainID, address)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// RefreshPrice forces a resolver lookup and stores the new price. Only the
// price fields of a record ever change.
func (s *CustomTokenService) RefreshPrice(ctx context.Context, chainID int64, address string) (entities.CustomToken, error) {
	token, err := s.Get(ctx, chainID, address)
	if err != nil {
		return entities.CustomToken{}, err
	}

	rec := token.CustomTokenRecord
	if !s.applyPrice(ctx, &rec, true) {
		return token, ErrPriceUnavailable
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return token, fmt.Errorf("store custom token: %w", err)
	}
	return entities.CustomToken{CustomTokenRecord: rec}, nil
}

// LookupToken resolves an address to a verified token, else to an imported one
func (s *CustomTokenService) LookupToken(ctx context.Context, chainID int64, address string) (entities.Token, error) {
	if t, ok := s.registry.GetByAddress(chainID, address); ok {
		return t, nil
	}
	rec, ok, err := s.store.Get(ctx, chainID, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%d:%s: %w", chainID, address, ErrTokenNotFound)
	}
	return entities.CustomToken{CustomTokenRecord: rec}, nil
}

func (s *CustomTokenService) applyPrice(ctx context.Context, rec *entities.CustomTokenRecord, force bool) bool {
	if s.prices == nil {
		return false
	}
	// no symbol: an imported token must not match a catalog entry by name
	price, err := s.prices.ResolvePrice(ctx, entities.PriceRequest{
		ChainID:      rec.ChainID,
		Address:      rec.Address,
		ForceRefresh: force,
	})
	if err != nil {
		s.logger.Debug("custom token price unavailable",
			zap.Int64("chain_id", rec.ChainID),
			zap.String("address", rec.Address),
			zap.Error(err))
		return false
	}
	usd := price.PriceUSD
	at := price.Timestamp
	if at.IsZero() {
		at = s.now().UTC()
	}
	rec.PriceUSD = &usd
	rec.PriceUpdatedAt = &at
	return true
}
