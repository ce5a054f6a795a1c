// Package config maps viper settings into chainpilot's typed configuration.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/tx"
)

const (
	// EnvPrefix prefixes environment overrides: CHAINPILOT_AGENT_URL etc.
	EnvPrefix = "CHAINPILOT"

	DefaultAgentURL   = "https://balance-search-agent.onrender.com"
	DefaultChain      = "ethereum"
	DefaultServerAddr = ":8080"
	DefaultRateLimit  = 5.0
	DefaultRateBurst  = 10
)

// Config is the resolved configuration.
type Config struct {
	DataDir string
	Agent   AgentConfig
	Wallet  WalletConfig
	Policy  PolicyConfig
	// RPC overrides by chain name.
	Chains map[string][]string
	Server ServerConfig
	Log    LogConfig
}

type AgentConfig struct {
	URL       string
	Timeout   time.Duration // 0 means bounded by the caller only
	KeepAlive time.Duration
}

type WalletConfig struct {
	Address string // keystore account to use; empty picks the first
	Chain   string
}

// PolicyConfig limits what the orchestrator will send. MaxPerTx is in the
// chain's smallest unit (wei).
type PolicyConfig struct {
	MaxPerTx string
	AllowTo  []string
	DenyTo   []string
}

// ServerConfig configures `chainpilot serve`. RateLimit is chat requests per
// second; 0 disables limiting.
type ServerConfig struct {
	Addr      string
	RateLimit float64
	RateBurst int
}

type LogConfig struct {
	Level string
	Debug bool
}

// DefaultDataDir is ~/.chainpilot, or .chainpilot when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chainpilot"
	}
	return filepath.Join(home, ".chainpilot")
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("agent.url", DefaultAgentURL)
	v.SetDefault("agent.timeout", time.Duration(0))
	v.SetDefault("agent.keepalive", agent.DefaultKeepAliveInterval)
	v.SetDefault("wallet.chain", DefaultChain)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.rate_limit", DefaultRateLimit)
	v.SetDefault("server.rate_burst", DefaultRateBurst)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the resolved settings out of v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir: v.GetString("data_dir"),
		Agent: AgentConfig{
			URL:       strings.TrimSpace(v.GetString("agent.url")),
			Timeout:   v.GetDuration("agent.timeout"),
			KeepAlive: v.GetDuration("agent.keepalive"),
		},
		Wallet: WalletConfig{
			Address: strings.TrimSpace(v.GetString("wallet.address")),
			Chain:   strings.TrimSpace(v.GetString("wallet.chain")),
		},
		Policy: PolicyConfig{
			MaxPerTx: strings.TrimSpace(v.GetString("policy.max_per_tx")),
			AllowTo:  v.GetStringSlice("policy.allow_to"),
			DenyTo:   v.GetStringSlice("policy.deny_to"),
		},
		Chains: make(map[string][]string),
		Server: ServerConfig{
			Addr:      v.GetString("server.addr"),
			RateLimit: v.GetFloat64("server.rate_limit"),
			RateBurst: v.GetInt("server.rate_burst"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			Debug: v.GetBool("debug"),
		},
	}

	for name := range v.GetStringMap("chains") {
		urls := v.GetStringSlice("chains." + name + ".rpc_urls")
		if len(urls) > 0 {
			cfg.Chains[name] = urls
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Agent.URL == "" {
		return nil, fmt.Errorf("agent.url must not be empty")
	}
	if cfg.Agent.Timeout < 0 {
		return nil, fmt.Errorf("agent.timeout must not be negative")
	}
	if cfg.Server.RateLimit < 0 {
		return nil, fmt.Errorf("server.rate_limit must not be negative")
	}
	return cfg, nil
}

// Registry builds the chain registry with configured RPC overrides applied.
func (c *Config) Registry() (*chain.Registry, error) {
	defaults := chain.DefaultRegistry()
	overrides := make(map[string][]string, len(c.Chains))
	for name, urls := range c.Chains {
		canonical, ok := defaults.Canonical(name)
		if !ok {
			return nil, fmt.Errorf("chains.%s: unknown chain", name)
		}
		overrides[canonical] = urls
	}
	return chain.NewRegistry(chain.WithRPCOverrides(chain.DefaultChains(), overrides))
}

// TxPolicy converts the policy section into a tx.Policy.
func (c *Config) TxPolicy() (tx.Policy, error) {
	var p tx.Policy
	if c.Policy.MaxPerTx != "" {
		limit, ok := new(big.Int).SetString(c.Policy.MaxPerTx, 10)
		if !ok || limit.Sign() <= 0 {
			return p, fmt.Errorf("policy.max_per_tx: invalid wei amount %q", c.Policy.MaxPerTx)
		}
		p.MaxPerTxWei = limit
	}
	var err error
	if p.AllowTo, err = parseAddresses("policy.allow_to", c.Policy.AllowTo); err != nil {
		return p, err
	}
	if p.DenyTo, err = parseAddresses("policy.deny_to", c.Policy.DenyTo); err != nil {
		return p, err
	}
	return p, nil
}

func parseAddresses(key string, raw []string) ([]common.Address, error) {
	var out []common.Address
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%s: invalid address %q", key, s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

// LogPath is where the interactive chat writes its log.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "chainpilot.log")
}
