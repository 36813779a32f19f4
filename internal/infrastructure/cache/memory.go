package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// sweepInterval bounds how often a write scans for expired entries
const sweepInterval = time.Minute

// InMemoryCache implements Cache using in-memory storage. Expired entries
// are dropped when read and by a sweep piggybacked on writes.
type InMemoryCache struct {
	mu        sync.RWMutex
	prices    map[string]*cachedPrice
	now       func() time.Time
	lastSweep time.Time
}

type cachedPrice struct {
	price     *entities.TokenPrice
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(time.Now)
}

// NewInMemoryCacheWithClock creates a cache whose expiry is driven by now
func NewInMemoryCacheWithClock(now func() time.Time) *InMemoryCache {
	return &InMemoryCache{
		prices:    make(map[string]*cachedPrice),
		now:       now,
		lastSweep: now(),
	}
}

func (c *InMemoryCache) GetPrice(ctx context.Context, key string) (*entities.TokenPrice, error) {
	c.mu.RLock()
	cached, ok := c.prices[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.now().Before(cached.expiresAt) {
		return cached.price, nil
	}

	c.mu.Lock()
	// a concurrent writer may have refreshed the entry
	if current, ok := c.prices[key]; ok && current == cached {
		delete(c.prices, key)
	}
	c.mu.Unlock()
	return nil, nil
}

func (c *InMemoryCache) SetPrice(ctx context.Context, key string, price *entities.TokenPrice, ttl time.Duration) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}
	c.prices[key] = &cachedPrice{
		price:     price,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.prices, key)
	c.mu.Unlock()
	return nil
}

// sweep drops expired entries; c.mu must be held
func (c *InMemoryCache) sweep(now time.Time) {
	for key, cached := range c.prices {
		if !now.Before(cached.expiresAt) {
			delete(c.prices, key)
		}
	}
	c.lastSweep = now
}

// Len returns the number of stored entries. Expired entries not yet swept
// are included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
