package cli

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/config"
	"github.com/monagent/chainpilot/internal/tx"
	"github.com/monagent/chainpilot/internal/wallet"
)

// app holds the long-lived pieces shared by the chat and serve commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *chain.Registry
	chains   *chain.Client
	agent    *agent.Client
	store    *agent.FileStore
	history  *agent.HistoryStore
	policy   tx.Policy
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.TxPolicy()
	if err != nil {
		return nil, err
	}
	store, err := agent.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	history, err := agent.OpenHistoryStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		chains:   chain.NewClient(registry, logger),
		agent:    agent.NewClient(cfg.Agent.URL, cfg.Agent.Timeout, logger),
		store:    store,
		history:  history,
		policy:   policy,
	}, nil
}

func (a *app) Close() {
	a.chains.Close()
	if err := a.history.Close(); err != nil {
		a.logger.Warn("failed to close history", zap.Error(err))
	}
}

// unlockFunc asks for the password of address.
type unlockFunc func(address string) (string, error)

// openWallet connects the configured keystore account on the configured
// network. Without an account, or when unlock returns an empty password, the
// wallet is returned disconnected.
func (a *app) openWallet(unlock unlockFunc) (*wallet.LocalWallet, error) {
	var signer wallet.Signer

	km, err := wallet.NewKeystoreManager(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	address, err := km.Default(a.cfg.Wallet.Address)
	switch {
	case errors.Is(err, wallet.ErrNoAccounts):
		a.logger.Info("no wallet configured")
	case err != nil:
		return nil, err
	default:
		password, err := unlock(address.Hex())
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		if password != "" {
			ks, err := km.Unlock(address, password)
			if err != nil {
				return nil, err
			}
			signer = ks
		}
	}

	return wallet.NewLocalWallet(signer, a.chains, a.cfg.Wallet.Chain, a.logger)
}
