// Package config loads settings from flags, OMNISWAP_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/policy"
)

const envPrefix = "OMNISWAP"

// Config holds the resolved settings of one process
type Config struct {
	Port     string
	LogLevel string

	// AllowedOrigins lists browser origins allowed cross-origin; "*" allows all
	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	TxLog        string
	CustomTokens string
	ChainsFile   string
	TokensFile   string

	PriceCacheTTL   time.Duration
	ProviderTimeout time.Duration
	BatchSize       int
	Debounce        time.Duration

	DexScreenerURL  string
	DefiLlamaURL    string
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	CEXURL          string
	AuditURL        string

	// RPC maps chain ids to RPC URL overrides
	RPC map[int64]string

	Fees policy.FeePolicy
}

// RegisterFlags declares the command line flags Load understands
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("port", "8080", "HTTP listen port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.StringSlice("allowed-origins", nil, "browser origins allowed to call the API and open the quote stream")
	fs.String("redis-addr", "", "Redis address for the shared price cache; empty uses memory")
	fs.String("pg-dsn", "", "Postgres DSN for the transaction recorder; empty uses the JSONL log")
	fs.String("tx-log", "./data/transactions.jsonl", "JSONL transaction log path")
	fs.String("custom-tokens", "./data/custom_tokens.json", "custom token store path")
	fs.String("chains-file", "", "chain registry JSON; empty uses built-in chains")
	fs.String("tokens-file", "", "token registry JSON; empty uses built-in tokens")
	fs.Duration("price-cache-ttl", 30*time.Second, "price cache TTL")
	fs.Duration("provider-timeout", 12*time.Second, "per-provider request timeout")
	fs.Duration("debounce", 300*time.Millisecond, "quote debounce window for amount edits")
}

// Load merges the config file, environment and flags. cfgFile may be empty,
// in which case ./config.yaml is read when present.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Port:            v.GetString("port"),
		LogLevel:        v.GetString("log-level"),
		AllowedOrigins:  splitList(v.GetStringSlice("allowed-origins")),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		PostgresDSN:     v.GetString("pg-dsn"),
		TxLog:           v.GetString("tx-log"),
		CustomTokens:    v.GetString("custom-tokens"),
		ChainsFile:      v.GetString("chains-file"),
		TokensFile:      v.GetString("tokens-file"),
		PriceCacheTTL:   v.GetDuration("price-cache-ttl"),
		ProviderTimeout: v.GetDuration("provider-timeout"),
		BatchSize:       v.GetInt("batch-size"),
		Debounce:        v.GetDuration("debounce"),
		DexScreenerURL:  v.GetString("dexscreener.url"),
		DefiLlamaURL:    v.GetString("defillama.url"),
		CoinGeckoURL:    v.GetString("coingecko.url"),
		CoinGeckoAPIKey: v.GetString("coingecko.api-key"),
		CEXURL:          v.GetString("cex.url"),
		AuditURL:        v.GetString("audit.url"),
	}

	rpc, err := rpcOverrides(v)
	if err != nil {
		return Config{}, err
	}
	cfg.RPC = rpc

	fees, err := feePolicy(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Fees = fees

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default its way out of
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", c.BatchSize)
	}
	if c.PriceCacheTTL <= 0 || c.ProviderTimeout <= 0 {
		return fmt.Errorf("price-cache-ttl and provider-timeout must be positive")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if err := c.Fees.Validate(); err != nil {
		return fmt.Errorf("fee policy: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("allowed-origins", []string{})
	v.SetDefault("redis-addr", "")
	v.SetDefault("redis-password", "")
	v.SetDefault("redis-db", 0)
	v.SetDefault("pg-dsn", "")
	v.SetDefault("tx-log", "./data/transactions.jsonl")
	v.SetDefault("custom-tokens", "./data/custom_tokens.json")
	v.SetDefault("chains-file", "")
	v.SetDefault("tokens-file", "")
	v.SetDefault("price-cache-ttl", 30*time.Second)
	v.SetDefault("provider-timeout", 12*time.Second)
	v.SetDefault("batch-size", 30)
	v.SetDefault("debounce", 300*time.Millisecond)

	v.SetDefault("dexscreener.url", "")
	v.SetDefault("defillama.url", "")
	v.SetDefault("coingecko.url", "")
	v.SetDefault("coingecko.api-key", "")
	v.SetDefault("cex.url", "")
	v.SetDefault("audit.url", "")

	def := policy.Default()
	v.SetDefault("fees.direct-percent", def.DirectPercent.String())
	v.SetDefault("fees.delegated-percent", def.DelegatedPercent.String())
	v.SetDefault("fees.alternate-percent", def.AlternatePercent.String())
	v.SetDefault("fees.dex-percent", def.DEXPercent.String())
	v.SetDefault("delegated.min-usd", def.DelegatedMinUSD.String())
	v.SetDefault("delegated.max-usd", def.DelegatedMaxUSD.String())
	v.SetDefault("delegated.chains", def.DelegatedChains)
	v.SetDefault("delegated.relay-seconds", def.RelayOverheadSeconds)
	v.SetDefault("alternate.threshold-usd", def.AlternateThresholdUSD.String())
}

func feePolicy(v *viper.Viper) (policy.FeePolicy, error) {
	var (
		p   policy.FeePolicy
		err error
	)
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"fees.direct-percent", &p.DirectPercent},
		{"fees.delegated-percent", &p.DelegatedPercent},
		{"fees.alternate-percent", &p.AlternatePercent},
		{"fees.dex-percent", &p.DEXPercent},
		{"delegated.min-usd", &p.DelegatedMinUSD},
		{"delegated.max-usd", &p.DelegatedMaxUSD},
		{"alternate.threshold-usd", &p.AlternateThresholdUSD},
	}
	for _, f := range fields {
		if *f.dst, err = getDecimal(v, f.key); err != nil {
			return policy.FeePolicy{}, err
		}
	}

	if p.DelegatedChains, err = getInt64Slice(v, "delegated.chains"); err != nil {
		return policy.FeePolicy{}, err
	}
	p.RelayOverheadSeconds = v.GetInt("delegated.relay-seconds")
	return p, nil
}

// rpcOverrides reads the rpc map of the config file, then OMNISWAP_RPC_<id>
// variables, which win
func rpcOverrides(v *viper.Viper) (map[int64]string, error) {
	out := make(map[int64]string)
	for k, url := range v.GetStringMapString("rpc") {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rpc.%s: chain id must be numeric", k)
		}
		out[id] = url
	}

	prefix := envPrefix + "_RPC_"
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || val == "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			continue
		}
		out[id] = val
	}
	return out, nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return d, nil
}

func getInt64Slice(v *viper.Viper, key string) ([]int64, error) {
	var items []string
	switch typed := v.Get(key).(type) {
	case nil:
		return nil, nil
	case []int64:
		return typed, nil
	case []int:
		out := make([]int64, len(typed))
		for i, n := range typed {
			out[i] = int64(n)
		}
		return out, nil
	case []string:
		items = typed
	case string:
		items = strings.Split(typed, ",")
	case []interface{}:
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
	default:
		return nil, fmt.Errorf("%s: unsupported value %v", key, typed)
	}

	out := make([]int64, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid chain id %q", key, item)
		}
		out = append(out, n)
	}
	return out, nil
}

// splitList flattens comma separated entries, as env vars arrive as one string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
