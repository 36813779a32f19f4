package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// ErrNoRPC is returned for chains without a configured EVM endpoint
var ErrNoRPC = errors.New("no rpc endpoint for chain")

// Client wraps the go-ethereum client of one chain
type Client struct {
	client  *ethclient.Client
	rpcURL  string
	chainID *big.Int
	mu      sync.RWMutex
}

// NewClient dials rpcURL and reads the chain id
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Client{
		client:  client,
		rpcURL:  rpcURL,
		chainID: chainID,
	}, nil
}

// Close closes the underlying client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Close()
}

// ChainID returns the chain ID reported by the node
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CallContract executes a read-only contract call at the latest block
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.CallContract(ctx, msg, nil)
}

// SuggestGasPrice suggests a gas price based on recent blocks
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.SuggestGasPrice(ctx)
}

// Pool dials one client per EVM chain on first use. Concurrent first uses
// of a chain share one dial; other chains are never blocked by it.
type Pool struct {
	chains  *entities.ChainRegistry
	mu      sync.Mutex
	clients map[int64]*Client
	dials   singleflight.Group
}

func NewPool(chains *entities.ChainRegistry) *Pool {
	return &Pool{
		chains:  chains,
		clients: make(map[int64]*Client),
	}
}

// Get returns the client of an EVM chain, dialing it if needed. A caller
// whose ctx ends first returns early; the shared dial keeps going.
func (p *Pool) Get(ctx context.Context, chainID int64) (*Client, error) {
	chain, ok := p.chains.Get(chainID)
	if !ok || !chain.IsEVM() || chain.RPCURL == "" {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrNoRPC)
	}
	if c, ok := p.cached(chainID); ok {
		return c, nil
	}

	ch := p.dials.DoChan(strconv.FormatInt(chainID, 10), func() (any, error) {
		if c, ok := p.cached(chainID); ok {
			return c, nil
		}
		return p.dial(context.WithoutCancel(ctx), chainID, chain.RPCURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Client), nil
	}
}

func (p *Pool) cached(chainID int64) (*Client, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[chainID]
	return c, ok
}

func (p *Pool) dial(ctx context.Context, chainID int64, rpcURL string) (*Client, error) {
	c, err := NewClient(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	if c.ChainID().Int64() != chainID {
		c.Close()
		return nil, fmt.Errorf("rpc for chain %d reports chain id %s", chainID, c.ChainID())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[chainID]; ok {
		c.Close()
		return existing, nil
	}
	p.clients[chainID] = c
	return c, nil
}

// SuggestGasPrice returns the gas price in wei of a chain
func (p *Pool) SuggestGasPrice(ctx context.Context, chainID int64) (*big.Int, error) {
	c, err := p.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return c.SuggestGasPrice(ctx)
}

// Close closes every dialed client
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}
