package pricing

import (
	"context"
	"errors"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// ErrNoPrice is returned when a provider answered but had no usable price
var ErrNoPrice = errors.New("no price")

// Provider is one step of the price fallback chain
type Provider interface {
	// Name identifies the provider in logs, metrics and TokenPrice.Source
	Name() string

	// Supports reports whether the chain carries the configuration this
	// provider needs. Unsupported queries are skipped, not failed.
	Supports(q entities.PriceQuery) bool

	FetchPrice(ctx context.Context, q entities.PriceQuery) (*entities.TokenPrice, error)
}

// BatchProvider prices many tokens of one chain in a single call
type BatchProvider interface {
	Provider

	// MaxBatch is the largest number of addresses accepted per call
	MaxBatch() int

	// FetchPrices returns prices keyed by lowercased address. Tokens it could
	// not price are absent from the map.
	FetchPrices(ctx context.Context, chain entities.Chain, addresses []string) (map[string]*entities.TokenPrice, error)
}
