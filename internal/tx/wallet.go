package tx

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransferRequest is a native-asset transfer handed to the wallet.
type TransferRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// SendTxArgs are the eth_sendTransaction parameters for the provider fallback.
type SendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

// Provider is the wallet's low-level request interface. *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Wallet is the connected wallet as seen by the orchestrator.
type Wallet interface {
	// Connected reports whether an account is available for signing.
	Connected() bool
	// Account returns the active account.
	Account() common.Address
	// ChainID returns the network the wallet is currently on.
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain asks the wallet to change its active network.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	// SendTransaction submits a transfer through the connector.
	SendTransaction(ctx context.Context, req TransferRequest) (common.Hash, error)
	// Provider returns the injected provider used for the fallback path, or nil.
	Provider() Provider
}

// CurrentNetworkSender is implemented by wallets that can say up front whether
// they would submit on their current network without switching.
type CurrentNetworkSender interface {
	CanSendOnCurrentNetwork(ctx context.Context) (bool, error)
}

// EventKind is a wallet state change.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventAccountChanged
	EventChainChanged
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventAccountChanged:
		return "account_changed"
	case EventChainChanged:
		return "chain_changed"
	default:
		return "unknown"
	}
}

// WalletEvent is delivered to subscribers on wallet state changes.
type WalletEvent struct {
	Kind    EventKind
	Account common.Address
	ChainID *big.Int
}

// EventSource is implemented by wallets that publish state changes.
type EventSource interface {
	Subscribe(fn func(WalletEvent)) (unsubscribe func())
}
