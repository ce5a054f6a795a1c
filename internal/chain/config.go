package chain

import (
	"fmt"
	"math/big"
	"sort"
)

// ChainConfig holds configuration for an EVM chain.
// Invariant: ChainID and ChainIDInt must always represent the same value.
// ChainIDInt exists for YAML serialization (big.Int doesn't serialize cleanly).
type ChainConfig struct {
	Name           string   `yaml:"name"`
	ChainID        *big.Int `yaml:"-"`
	ChainIDInt     int64    `yaml:"chain_id"`
	RPCURLs        []string `yaml:"rpc_urls"`
	ExplorerURL    string   `yaml:"explorer_url"`
	NativeCurrency string   `yaml:"native_currency"`
	Decimals       uint8    `yaml:"decimals"`
	IsTestnet      bool     `yaml:"is_testnet"`
}

// TxURL returns the explorer link for a transaction hash.
func (c *ChainConfig) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + hash
}

// DefaultChains returns the chains the agent can target.
func DefaultChains() map[string]*ChainConfig {
	return map[string]*ChainConfig{
		"eth": {
			Name:           "Ethereum",
			ChainID:        big.NewInt(1),
			ChainIDInt:     1,
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
			Decimals:       18,
		},
		"bnb": {
			Name:           "BNB Smart Chain",
			ChainID:        big.NewInt(56),
			ChainIDInt:     56,
			RPCURLs:        []string{"https://bsc-dataseed.binance.org"},
			ExplorerURL:    "https://bscscan.com",
			NativeCurrency: "BNB",
			Decimals:       18,
		},
		"matic": {
			Name:           "Polygon",
			ChainID:        big.NewInt(137),
			ChainIDInt:     137,
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"},
			ExplorerURL:    "https://polygonscan.com",
			NativeCurrency: "MATIC",
			Decimals:       18,
		},
		"monad-testnet": {
			Name:           "Monad Testnet",
			ChainID:        big.NewInt(10143),
			ChainIDInt:     10143,
			RPCURLs:        []string{"https://testnet-rpc.monad.xyz"},
			ExplorerURL:    "https://testnet.monadexplorer.com",
			NativeCurrency: "MON",
			Decimals:       18,
			IsTestnet:      true,
		},
		"u2u": {
			Name:           "U2U Network",
			ChainID:        big.NewInt(39),
			ChainIDInt:     39,
			RPCURLs:        []string{"https://rpc-mainnet.u2u.xyz"},
			ExplorerURL:    "https://uniultra.xyz/explorer",
			NativeCurrency: "U2U",
			Decimals:       18,
		},
	}
}

// Registry is the fixed mapping from canonical chain name to its config.
// It is built once and never mutated afterwards.
type Registry struct {
	chains  map[string]*ChainConfig
	byID    map[int64]string
	aliases map[string]string
}

// NewRegistry copies chains into a read-only registry. Chain IDs must be unique.
func NewRegistry(chains map[string]*ChainConfig) (*Registry, error) {
	r := &Registry{
		chains:  make(map[string]*ChainConfig, len(chains)),
		byID:    make(map[int64]string, len(chains)),
		aliases: make(map[string]string),
	}
	for alias, canonical := range defaultAliases() {
		r.aliases[normalizeName(alias)] = canonical
	}
	for name, cfg := range chains {
		if cfg == nil {
			return nil, fmt.Errorf("chain %s: missing config", name)
		}
		cp := *cfg
		if cp.ChainID == nil {
			cp.ChainID = big.NewInt(cp.ChainIDInt)
		}
		if cp.ChainID.Int64() != cp.ChainIDInt {
			return nil, fmt.Errorf("chain %s: chain id %s does not match %d", name, cp.ChainID, cp.ChainIDInt)
		}
		if cp.Decimals == 0 {
			cp.Decimals = 18
		}
		cp.RPCURLs = append([]string(nil), cfg.RPCURLs...)
		if other, dup := r.byID[cp.ChainIDInt]; dup {
			return nil, fmt.Errorf("chain id %d used by both %s and %s", cp.ChainIDInt, other, name)
		}
		r.byID[cp.ChainIDInt] = name
		r.chains[name] = &cp
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultChains.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultChains())
	if err != nil {
		panic(err)
	}
	return r
}

// WithRPCOverrides returns a copy of chains with RPC URLs replaced for the named chains.
func WithRPCOverrides(chains map[string]*ChainConfig, overrides map[string][]string) map[string]*ChainConfig {
	out := make(map[string]*ChainConfig, len(chains))
	for name, cfg := range chains {
		cp := *cfg
		if urls, ok := overrides[name]; ok && len(urls) > 0 {
			cp.RPCURLs = append([]string(nil), urls...)
		}
		out[name] = &cp
	}
	return out
}

// Get returns the configuration for a canonical chain name
func (r *Registry) Get(name string) (*ChainConfig, error) {
	cfg, ok := r.chains[name]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", name)
	}
	return cfg, nil
}

// NameByID returns the canonical name registered for a numeric chain ID.
func (r *Registry) NameByID(id *big.Int) (string, bool) {
	if id == nil || !id.IsInt64() {
		return "", false
	}
	name, ok := r.byID[id.Int64()]
	return name, ok
}

// Names returns canonical chain names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
