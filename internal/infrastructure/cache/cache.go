package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// Cache defines the interface for price caching operations.
// A miss returns a nil price and a nil error.
type Cache interface {
	GetPrice(ctx context.Context, key string) (*entities.TokenPrice, error)
	SetPrice(ctx context.Context, key string, price *entities.TokenPrice, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PriceCacheKey generates a namespaced cache key for a chain/address price
func PriceCacheKey(chainID int64, address string) string {
	return fmt.Sprintf("price:%s", entities.PriceKey(chainID, address))
}
