package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TokenInfo holds the fields every token carries regardless of origin
type TokenInfo struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Token is either a VerifiedToken from the registry or a CustomToken the
// user imported. The set of implementations is closed.
type Token interface {
	Info() TokenInfo
	isToken()
}

// VerifiedToken is a registry entry
type VerifiedToken struct {
	TokenInfo
	CoinGeckoID string   `json:"coingeckoId,omitempty"`
	LogoURI     string   `json:"logoUri,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
}

func (t VerifiedToken) Info() TokenInfo { return t.TokenInfo }
func (VerifiedToken) isToken()          {}

// CustomTokenRecord is an unverified token imported by the user.
// Only PriceUSD and PriceUpdatedAt change after creation.
type CustomTokenRecord struct {
	TokenInfo
	PriceUSD       *decimal.Decimal `json:"priceUsd,omitempty"`
	PriceUpdatedAt *time.Time       `json:"priceUpdatedAt,omitempty"`
	ImportedAt     time.Time        `json:"importedAt"`
}

// CustomToken wraps an imported record
type CustomToken struct {
	CustomTokenRecord
}

func (t CustomToken) Info() TokenInfo { return t.TokenInfo }
func (CustomToken) isToken()          {}

// IsCustom reports whether t is a user-imported token
func IsCustom(t Token) bool {
	switch t.(type) {
	case CustomToken, *CustomToken:
		return true
	default:
		return false
	}
}

// IsRestricted reports whether a pair may only use the direct route
func IsRestricted(tokenIn, tokenOut Token) bool {
	return (tokenIn != nil && IsCustom(tokenIn)) || (tokenOut != nil && IsCustom(tokenOut))
}

// NormalizeAddress lowercases EVM-style hex addresses. Base58 and Move
// addresses are case sensitive and returned trimmed only.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "0x") && !strings.Contains(addr, "::") {
		return strings.ToLower(addr)
	}
	return addr
}

// TokenKey identifies a token on a chain, including its variant
func TokenKey(t Token) string {
	if t == nil {
		return ""
	}
	info := t.Info()
	kind := "verified"
	if IsCustom(t) {
		kind = "custom"
	}
	return fmt.Sprintf("%d:%s:%s", info.ChainID, strings.ToLower(info.Address), kind)
}

// USDC is USD Coin on Ethereum mainnet
var USDC = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainEthereum,
		Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
	},
	CoinGeckoID: "usd-coin",
	Tags:        []string{"stablecoin"},
	Popularity:  100,
}

// USDT is Tether USD on Ethereum mainnet
var USDT = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainEthereum,
		Address:  "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
	},
	CoinGeckoID: "tether",
	Tags:        []string{"stablecoin"},
	Popularity:  99,
}

// WETH is the canonical Wrapped Ether token on Ethereum mainnet
var WETH = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainEthereum,
		Address:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Symbol:   "WETH",
		Name:     "Wrapped Ether",
		Decimals: 18,
	},
	CoinGeckoID: "weth",
	Popularity:  98,
}

// DAI is Dai Stablecoin on Ethereum mainnet
var DAI = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainEthereum,
		Address:  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		Symbol:   "DAI",
		Name:     "Dai Stablecoin",
		Decimals: 18,
	},
	CoinGeckoID: "dai",
	Tags:        []string{"stablecoin"},
	Popularity:  90,
}

// BSCUSDT is Binance-Peg USDT on BNB Chain
var BSCUSDT = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainBSC,
		Address:  "0x55d398326f99059fF775485246999027B3197955",
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 18,
	},
	CoinGeckoID: "tether",
	Tags:        []string{"stablecoin"},
	Popularity:  95,
}

// SolanaUSDC is USD Coin on Solana
var SolanaUSDC = VerifiedToken{
	TokenInfo: TokenInfo{
		ChainID:  ChainSolana,
		Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
	},
	CoinGeckoID: "usd-coin",
	Tags:        []string{"stablecoin"},
	Popularity:  97,
}
