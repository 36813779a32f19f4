package ethereum

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

const erc20StringABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// some older tokens (MKR, SAI) return bytes32 for symbol and name
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABIOnce    sync.Once
	erc20StringABI  abi.ABI
	erc20Bytes32ABI abi.ABI
	erc20ABIErr     error
)

func erc20ABIs() (abi.ABI, abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20StringABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20StringABIJSON))
		if erc20ABIErr != nil {
			return
		}
		erc20Bytes32ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20Bytes32ABIJSON))
	})
	return erc20StringABI, erc20Bytes32ABI, erc20ABIErr
}

// ContractCaller executes read-only calls
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// ReadTokenMetadata loads decimals, symbol and name through ERC20 calls.
// decimals is mandatory; symbol and name fall back to the bytes32 variants.
func ReadTokenMetadata(ctx context.Context, caller ContractCaller, token common.Address, log *zap.Logger) (entities.TokenInfo, error) {
	info := entities.TokenInfo{Address: token.Hex()}
	log = logger.OrNop(log)

	stringABI, bytes32ABI, err := erc20ABIs()
	if err != nil {
		return info, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s returned nothing", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return info, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return info, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	info.Decimals = decimals

	readText := func(method string) string {
		if values, err := call(method, stringABI); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := call(method, bytes32ABI)
		if err != nil {
			log.Debug("erc20 text call failed", zap.String("method", method), zap.String("token", token.Hex()), zap.Error(err))
			return ""
		}
		if b, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(b[:], "\x00"))
		}
		return ""
	}

	info.Symbol = readText("symbol")
	info.Name = readText("name")
	if info.Symbol == "" {
		return info, fmt.Errorf("token %s has no symbol", token.Hex())
	}
	return info, nil
}

// MetadataReader reads token metadata from the chain's RPC
type MetadataReader struct {
	pool   *Pool
	logger *zap.Logger
}

func NewMetadataReader(pool *Pool, log *zap.Logger) *MetadataReader {
	return &MetadataReader{pool: pool, logger: logger.OrNop(log).Named("erc20")}
}

// ReadToken returns the metadata of an ERC20 token on an EVM chain
func (r *MetadataReader) ReadToken(ctx context.Context, chainID int64, address string) (entities.TokenInfo, error) {
	if !common.IsHexAddress(address) {
		return entities.TokenInfo{}, fmt.Errorf("invalid evm address %q", address)
	}
	client, err := r.pool.Get(ctx, chainID)
	if err != nil {
		return entities.TokenInfo{}, err
	}

	info, err := ReadTokenMetadata(ctx, client, common.HexToAddress(address), r.logger)
	if err != nil {
		return entities.TokenInfo{}, err
	}
	info.ChainID = chainID
	return info, nil
}
