package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/tx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotConnected is returned when the wallet has been disconnected.
var ErrNotConnected = errors.New("wallet not connected")

// LocalWallet is a keystore-backed wallet. It tracks an active network the
// way a browser wallet does and submits transfers through the chain client.
type LocalWallet struct {
	client *chain.Client
	logger *zap.Logger

	mu        sync.Mutex
	signer    Signer
	chainName string
	subs      map[int]func(tx.WalletEvent)
	nextSub   int
}

// NewLocalWallet connects signer on chainName.
func NewLocalWallet(signer Signer, client *chain.Client, chainName string, logger *zap.Logger) (*LocalWallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name, ok := client.Registry().Canonical(chainName)
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", chainName)
	}
	return &LocalWallet{
		client:    client,
		logger:    logger.Named("wallet"),
		signer:    signer,
		chainName: name,
		subs:      make(map[int]func(tx.WalletEvent)),
	}, nil
}

func (w *LocalWallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signer != nil
}

func (w *LocalWallet) Account() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signer == nil {
		return common.Address{}
	}
	return w.signer.Address()
}

// Network returns the canonical name of the active network.
func (w *LocalWallet) Network() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainName
}

// active returns the active network and signer.
func (w *LocalWallet) active() (string, *chain.ChainConfig, Signer, error) {
	w.mu.Lock()
	name, signer := w.chainName, w.signer
	w.mu.Unlock()
	if signer == nil {
		return "", nil, nil, ErrNotConnected
	}
	cfg, err := w.client.Registry().Get(name)
	if err != nil {
		return "", nil, nil, err
	}
	return name, cfg, signer, nil
}

func (w *LocalWallet) ChainID(context.Context) (*big.Int, error) {
	_, cfg, _, err := w.active()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(cfg.ChainID), nil
}

// SwitchChain changes the active network to a registered chain.
func (w *LocalWallet) SwitchChain(_ context.Context, chainID *big.Int) error {
	name, ok := w.client.Registry().NameByID(chainID)
	if !ok {
		return fmt.Errorf("unrecognized chain ID %s", chainID)
	}

	w.mu.Lock()
	if w.signer == nil {
		w.mu.Unlock()
		return ErrNotConnected
	}
	changed := w.chainName != name
	w.chainName = name
	account := w.signer.Address()
	w.mu.Unlock()

	if changed {
		w.logger.Info("switched network", zap.String("chain", name))
		w.emit(tx.WalletEvent{Kind: tx.EventChainChanged, Account: account, ChainID: new(big.Int).Set(chainID)})
	}
	return nil
}

// SendTransaction signs and submits req on the active network through a
// verified RPC. An endpoint serving another chain yields *chain.MismatchError.
func (w *LocalWallet) SendTransaction(ctx context.Context, req tx.TransferRequest) (common.Hash, error) {
	name, cfg, signer, err := w.active()
	if err != nil {
		return common.Hash{}, err
	}
	if req.From != signer.Address() {
		return common.Hash{}, fmt.Errorf("account %s is not managed by this wallet", req.From.Hex())
	}

	backend, _, err := w.client.Backend(ctx, name)
	if err != nil {
		return common.Hash{}, err
	}
	return w.signAndSend(ctx, backend, signer, cfg.ChainID, req)
}

// CanSendOnCurrentNetwork reports whether the active network has an RPC to submit through.
func (w *LocalWallet) CanSendOnCurrentNetwork(context.Context) (bool, error) {
	_, cfg, _, err := w.active()
	if err != nil {
		return false, err
	}
	return len(cfg.RPCURLs) > 0, nil
}

type rawBackend interface {
	tx.Backend
	SendTransaction(ctx context.Context, signed *types.Transaction) error
}

func (w *LocalWallet) signAndSend(ctx context.Context, b rawBackend, signer Signer, chainID *big.Int, req tx.TransferRequest) (common.Hash, error) {
	unsigned, fees, err := tx.BuildUnsignedTx(ctx, b, chainID, tx.Intent{From: req.From, To: req.To, ValueWei: req.Value})
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := signer.SignTransaction(unsigned, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	w.logger.Info("transaction submitted",
		zap.String("hash", signed.Hash().Hex()),
		zap.Stringer("chain_id", chainID),
		zap.Uint64("gas", fees.GasLimit))
	return signed.Hash(), nil
}

// Provider returns the wallet's request interface.
func (w *LocalWallet) Provider() tx.Provider {
	return &provider{w: w}
}

// Disconnect locks the key and notifies subscribers.
func (w *LocalWallet) Disconnect() {
	w.mu.Lock()
	signer := w.signer
	w.signer = nil
	w.mu.Unlock()
	if signer == nil {
		return
	}
	if ks, ok := signer.(*KeySigner); ok {
		ks.Lock()
	}
	w.emit(tx.WalletEvent{Kind: tx.EventDisconnected, Account: signer.Address()})
}

// Subscribe registers fn for wallet events.
func (w *LocalWallet) Subscribe(fn func(tx.WalletEvent)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

func (w *LocalWallet) emit(ev tx.WalletEvent) {
	w.mu.Lock()
	fns := make([]func(tx.WalletEvent), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ProviderError is an EIP-1193 style error with a numeric code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string  { return e.Message }
func (e *ProviderError) ErrorCode() int { return e.Code }

// EIP-1193 unsupported method code.
const codeUnsupportedMethod = 4200

// provider answers the few EIP-1193 requests the orchestrator makes.
// eth_chainId and eth_sendTransaction both report the chain the active
// network's RPC actually serves, which may differ from the configured one.
type provider struct {
	w *LocalWallet
}

func (p *provider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	switch method {
	case "eth_chainId":
		id, err := p.servedChainID(ctx)
		if err != nil {
			return err
		}
		return assign(result, (*hexutil.Big)(id))

	case "eth_accounts":
		if !p.w.Connected() {
			return assign(result, []common.Address{})
		}
		return assign(result, []common.Address{p.w.Account()})

	case "eth_sendTransaction":
		if len(args) != 1 {
			return fmt.Errorf("eth_sendTransaction: expected 1 argument, got %d", len(args))
		}
		var sendArgs tx.SendTxArgs
		if err := convert(args[0], &sendArgs); err != nil {
			return fmt.Errorf("eth_sendTransaction: %w", err)
		}
		hash, err := p.sendOnCurrentNetwork(ctx, sendArgs)
		if err != nil {
			return err
		}
		return assign(result, hash)

	default:
		return &ProviderError{Code: codeUnsupportedMethod, Message: fmt.Sprintf("method %s not supported", method)}
	}
}

// servedChainID asks the active network's RPC which chain it serves. When no
// endpoint answers, the configured chain is reported.
func (p *provider) servedChainID(ctx context.Context) (*big.Int, error) {
	name, cfg, _, err := p.w.active()
	if err != nil {
		return nil, err
	}
	client, actual, err := p.w.client.DialUnverified(ctx, name)
	if err != nil {
		p.w.logger.Debug("rpc unreachable, reporting configured chain", zap.String("chain", name), zap.Error(err))
		return new(big.Int).Set(cfg.ChainID), nil
	}
	client.Close()
	return actual, nil
}

func (p *provider) sendOnCurrentNetwork(ctx context.Context, args tx.SendTxArgs) (common.Hash, error) {
	name, cfg, signer, err := p.w.active()
	if err != nil {
		return common.Hash{}, err
	}
	if args.To == nil || args.Value == nil {
		return common.Hash{}, errors.New("eth_sendTransaction: to and value are required")
	}
	if args.From != signer.Address() {
		return common.Hash{}, fmt.Errorf("account %s is not managed by this wallet", args.From.Hex())
	}

	client, actual, err := p.w.client.DialUnverified(ctx, name)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()

	if actual.Cmp(cfg.ChainID) != 0 {
		p.w.logger.Warn("submitting on the network the rpc serves",
			zap.Stringer("expected", cfg.ChainID), zap.Stringer("actual", actual))
	}
	req := tx.TransferRequest{From: args.From, To: *args.To, Value: args.Value.ToInt()}
	return p.w.signAndSend(ctx, client, signer, actual, req)
}

func convert(in, out interface{}) error {
	if sa, ok := in.(tx.SendTxArgs); ok {
		if o, ok := out.(*tx.SendTxArgs); ok {
			*o = sa
			return nil
		}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func assign(result, value interface{}) error {
	if result == nil {
		return nil
	}
	return convert(value, result)
}
