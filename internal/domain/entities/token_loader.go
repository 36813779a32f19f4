package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// TokenConfig represents token configuration from JSON
type TokenConfig struct {
	ChainID     int64    `json:"chainId"`
	Address     string   `json:"address"`
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Decimals    uint8    `json:"decimals"`
	CoinGeckoID string   `json:"coingeckoId"`
	LogoURI     string   `json:"logoUri"`
	Tags        []string `json:"tags"`
	Popularity  int      `json:"popularity"`
}

// TokensConfig represents the tokens.json structure
type TokensConfig struct {
	Tokens []TokenConfig `json:"tokens"`
}

// ChainsConfig represents the chains.json structure
type ChainsConfig struct {
	Chains []Chain `json:"chains"`
}

// TokenRegistry holds verified tokens indexed by chain+address and chain+symbol
type TokenRegistry struct {
	byAddress map[string]VerifiedToken
	bySymbol  map[string]VerifiedToken
	all       []VerifiedToken
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		byAddress: make(map[string]VerifiedToken),
		bySymbol:  make(map[string]VerifiedToken),
		all:       make([]VerifiedToken, 0),
	}
}

// LoadFromFile loads tokens from a JSON config file
func (r *TokenRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token config: %w", err)
	}

	var config TokensConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse token config: %w", err)
	}

	for _, tc := range config.Tokens {
		if tc.ChainID == 0 || tc.Address == "" || tc.Symbol == "" {
			return fmt.Errorf("invalid token entry %q on chain %d", tc.Symbol, tc.ChainID)
		}
		r.Register(VerifiedToken{
			TokenInfo: TokenInfo{
				ChainID:  tc.ChainID,
				Address:  tc.Address,
				Symbol:   tc.Symbol,
				Name:     tc.Name,
				Decimals: tc.Decimals,
			},
			CoinGeckoID: tc.CoinGeckoID,
			LogoURI:     tc.LogoURI,
			Tags:        tc.Tags,
			Popularity:  tc.Popularity,
		})
	}

	return nil
}

// Register adds a token to the registry
func (r *TokenRegistry) Register(token VerifiedToken) {
	r.byAddress[addressKey(token.ChainID, token.Address)] = token
	r.bySymbol[symbolKey(token.ChainID, token.Symbol)] = token
	r.all = append(r.all, token)
}

// GetByAddress returns a token by chain and address (case-insensitive)
func (r *TokenRegistry) GetByAddress(chainID int64, addr string) (VerifiedToken, bool) {
	token, ok := r.byAddress[addressKey(chainID, addr)]
	return token, ok
}

// GetBySymbol returns a token by chain and symbol (case-insensitive)
func (r *TokenRegistry) GetBySymbol(chainID int64, symbol string) (VerifiedToken, bool) {
	token, ok := r.bySymbol[symbolKey(chainID, symbol)]
	return token, ok
}

// CoinGeckoID returns the external catalog id registered for a symbol on a chain
func (r *TokenRegistry) CoinGeckoID(chainID int64, symbol string) (string, bool) {
	token, ok := r.GetBySymbol(chainID, symbol)
	if !ok || token.CoinGeckoID == "" {
		return "", false
	}
	return token.CoinGeckoID, true
}

// GetAll returns all registered tokens
func (r *TokenRegistry) GetAll() []VerifiedToken {
	return r.all
}

// ByChain returns the tokens of one chain ordered by popularity
func (r *TokenRegistry) ByChain(chainID int64) []VerifiedToken {
	out := make([]VerifiedToken, 0)
	for _, t := range r.all {
		if t.ChainID == chainID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Popularity > out[j].Popularity })
	return out
}

// Count returns the number of registered tokens
func (r *TokenRegistry) Count() int {
	return len(r.all)
}

// DefaultRegistry returns a registry with hardcoded default tokens
// Use this as fallback if config file is not available
func DefaultRegistry() *TokenRegistry {
	r := NewTokenRegistry()
	r.Register(WETH)
	r.Register(USDC)
	r.Register(USDT)
	r.Register(DAI)
	r.Register(BSCUSDT)
	r.Register(SolanaUSDC)
	return r
}

// ChainRegistry holds the supported chains
type ChainRegistry struct {
	byID map[int64]Chain
	all  []Chain
}

// NewChainRegistry creates a registry from a chain list
func NewChainRegistry(chains []Chain) *ChainRegistry {
	r := &ChainRegistry{byID: make(map[int64]Chain, len(chains))}
	for _, c := range chains {
		r.byID[c.ID] = c
		r.all = append(r.all, c)
	}
	return r
}

// LoadChainsFromFile reads a chains.json file
func LoadChainsFromFile(path string) (*ChainRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config: %w", err)
	}

	var config ChainsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse chain config: %w", err)
	}
	if len(config.Chains) == 0 {
		return nil, fmt.Errorf("chain config %s has no chains", path)
	}

	return NewChainRegistry(config.Chains), nil
}

// Get returns a chain by ID
func (r *ChainRegistry) Get(id int64) (Chain, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every chain in registration order
func (r *ChainRegistry) All() []Chain {
	return r.all
}

// SetRPCURL overrides the RPC endpoint of a chain
func (r *ChainRegistry) SetRPCURL(id int64, url string) {
	c, ok := r.byID[id]
	if !ok {
		return
	}
	c.RPCURL = url
	r.byID[id] = c
	for i := range r.all {
		if r.all[i].ID == id {
			r.all[i].RPCURL = url
		}
	}
}

func addressKey(chainID int64, addr string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(strings.TrimSpace(addr)))
}

func symbolKey(chainID int64, symbol string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToUpper(strings.TrimSpace(symbol)))
}
