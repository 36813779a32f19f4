package entities

// ChainFamily groups chains by wallet/signing stack
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
	FamilySui    ChainFamily = "sui"
)

// Well-known chain IDs. Non-EVM chains use the IDs common in bridge APIs.
const (
	ChainEthereum  int64 = 1
	ChainOptimism  int64 = 10
	ChainBSC       int64 = 56
	ChainPolygon   int64 = 137
	ChainBase      int64 = 8453
	ChainArbitrum  int64 = 42161
	ChainAvalanche int64 = 43114
	ChainSui       int64 = 784
	ChainSolana    int64 = 7565164
)

// Chain describes a supported network and the identifiers external
// price providers use for it. Empty identifiers mean the provider does not
// cover the chain.
type Chain struct {
	ID                int64       `json:"id"`
	Name              string      `json:"name"`
	Family            ChainFamily `json:"family"`
	NativeSymbol      string      `json:"nativeSymbol"`
	NativeDecimals    uint8       `json:"nativeDecimals"`
	WrappedNative     string      `json:"wrappedNative,omitempty"`
	NativeCoinGeckoID string      `json:"nativeCoingeckoId,omitempty"`
	DexScreenerID     string      `json:"dexscreenerId,omitempty"`
	DefiLlamaID       string      `json:"defillamaId,omitempty"`
	CoinGeckoPlatform string      `json:"coingeckoPlatform,omitempty"`
	RPCURL            string      `json:"rpcUrl,omitempty"`
	ExplorerURL       string      `json:"explorerUrl,omitempty"`
}

// IsEVM reports whether the chain speaks the Ethereum JSON-RPC API
func (c Chain) IsEVM() bool {
	return c.Family == FamilyEVM
}

// DefaultChains is the built-in chain list used when no chains file is configured
func DefaultChains() []Chain {
	return []Chain{
		{
			ID: ChainEthereum, Name: "Ethereum", Family: FamilyEVM, NativeSymbol: "ETH", NativeDecimals: 18,
			WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", NativeCoinGeckoID: "ethereum",
			DexScreenerID: "ethereum", DefiLlamaID: "ethereum", CoinGeckoPlatform: "ethereum",
			RPCURL: "https://eth.llamarpc.com", ExplorerURL: "https://etherscan.io",
		},
		{
			ID: ChainOptimism, Name: "Optimism", Family: FamilyEVM, NativeSymbol: "ETH", NativeDecimals: 18,
			WrappedNative: "0x4200000000000000000000000000000000000006", NativeCoinGeckoID: "ethereum",
			DexScreenerID: "optimism", DefiLlamaID: "optimism", CoinGeckoPlatform: "optimistic-ethereum",
			RPCURL: "https://mainnet.optimism.io", ExplorerURL: "https://optimistic.etherscan.io",
		},
		{
			ID: ChainBSC, Name: "BNB Chain", Family: FamilyEVM, NativeSymbol: "BNB", NativeDecimals: 18,
			WrappedNative: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", NativeCoinGeckoID: "binancecoin",
			DexScreenerID: "bsc", DefiLlamaID: "bsc", CoinGeckoPlatform: "binance-smart-chain",
			RPCURL: "https://bsc-dataseed.binance.org", ExplorerURL: "https://bscscan.com",
		},
		{
			ID: ChainPolygon, Name: "Polygon", Family: FamilyEVM, NativeSymbol: "POL", NativeDecimals: 18,
			WrappedNative: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", NativeCoinGeckoID: "polygon-ecosystem-token",
			DexScreenerID: "polygon", DefiLlamaID: "polygon", CoinGeckoPlatform: "polygon-pos",
			RPCURL: "https://polygon-rpc.com", ExplorerURL: "https://polygonscan.com",
		},
		{
			ID: ChainBase, Name: "Base", Family: FamilyEVM, NativeSymbol: "ETH", NativeDecimals: 18,
			WrappedNative: "0x4200000000000000000000000000000000000006", NativeCoinGeckoID: "ethereum",
			DexScreenerID: "base", DefiLlamaID: "base", CoinGeckoPlatform: "base",
			RPCURL: "https://mainnet.base.org", ExplorerURL: "https://basescan.org",
		},
		{
			ID: ChainArbitrum, Name: "Arbitrum", Family: FamilyEVM, NativeSymbol: "ETH", NativeDecimals: 18,
			WrappedNative: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", NativeCoinGeckoID: "ethereum",
			DexScreenerID: "arbitrum", DefiLlamaID: "arbitrum", CoinGeckoPlatform: "arbitrum-one",
			RPCURL: "https://arb1.arbitrum.io/rpc", ExplorerURL: "https://arbiscan.io",
		},
		{
			ID: ChainAvalanche, Name: "Avalanche", Family: FamilyEVM, NativeSymbol: "AVAX", NativeDecimals: 18,
			WrappedNative: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", NativeCoinGeckoID: "avalanche-2",
			DexScreenerID: "avalanche", DefiLlamaID: "avax", CoinGeckoPlatform: "avalanche",
			RPCURL: "https://api.avax.network/ext/bc/C/rpc", ExplorerURL: "https://snowtrace.io",
		},
		{
			ID: ChainSolana, Name: "Solana", Family: FamilySolana, NativeSymbol: "SOL", NativeDecimals: 9,
			WrappedNative: "So11111111111111111111111111111111111111112", NativeCoinGeckoID: "solana",
			DexScreenerID: "solana", DefiLlamaID: "solana", CoinGeckoPlatform: "solana",
			ExplorerURL: "https://solscan.io",
		},
		{
			ID: ChainSui, Name: "Sui", Family: FamilySui, NativeSymbol: "SUI", NativeDecimals: 9,
			WrappedNative: "0x2::sui::SUI", NativeCoinGeckoID: "sui",
			DexScreenerID: "sui", DefiLlamaID: "sui", CoinGeckoPlatform: "sui",
			ExplorerURL: "https://suiscan.xyz",
		},
	}
}
