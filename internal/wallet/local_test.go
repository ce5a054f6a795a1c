package wallet

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/envelope"
	"github.com/monagent/chainpilot/internal/tx"
)

var recipient = common.HexToAddress("0x1111111111111111111111111111111111111111")

// ethService is the subset of the eth namespace ethclient needs for a transfer.
type ethService struct {
	chainID *big.Int

	mu   sync.Mutex
	sent []*types.Transaction
}

func (s *ethService) ChainId() *hexutil.Big { return (*hexutil.Big)(s.chainID) }

func (s *ethService) GetTransactionCount(common.Address, string) hexutil.Uint64 { return 3 }

func (s *ethService) GasPrice() *hexutil.Big { return (*hexutil.Big)(big.NewInt(20_000_000_000)) }

func (s *ethService) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_000_000_000))
}

func (s *ethService) EstimateGas(map[string]interface{}, *string) hexutil.Uint64 { return 21000 }

func (s *ethService) SendRawTransaction(data hexutil.Bytes) (common.Hash, error) {
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(data); err != nil {
		return common.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, signed)
	return signed.Hash(), nil
}

func (s *ethService) last(t *testing.T) *types.Transaction {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

// newNode serves the eth namespace for chainID over HTTP.
func newNode(t *testing.T, chainID int64) (*ethService, string) {
	t.Helper()
	svc := &ethService{chainID: big.NewInt(chainID)}
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return svc, ts.URL
}

func newTestWallet(t *testing.T, chainName, rpcURL string) (*LocalWallet, *chain.Client) {
	t.Helper()
	chains := chain.WithRPCOverrides(chain.DefaultChains(), map[string][]string{chainName: {rpcURL}})
	reg, err := chain.NewRegistry(chains)
	require.NoError(t, err)

	client := chain.NewClient(reg, nil)
	t.Cleanup(client.Close)

	w, err := NewLocalWallet(newTestSigner(t), client, chainName, nil)
	require.NoError(t, err)
	return w, client
}

func TestLocalWallet_SendTransaction(t *testing.T) {
	node, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)

	hash, err := w.SendTransaction(context.Background(), tx.TransferRequest{
		From:  w.Account(),
		To:    recipient,
		Value: big.NewInt(1000),
	})
	require.NoError(t, err)

	sent := node.last(t)
	assert.Equal(t, sent.Hash(), hash)
	assert.Equal(t, int64(56), sent.ChainId().Int64())
	assert.Equal(t, uint64(3), sent.Nonce())
	assert.Equal(t, recipient, *sent.To())
	assert.Equal(t, int64(1000), sent.Value().Int64())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(56)), sent)
	require.NoError(t, err)
	assert.Equal(t, w.Account(), from)
}

func TestLocalWallet_SendTransaction_WrongAccount(t *testing.T) {
	_, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)

	_, err := w.SendTransaction(context.Background(), tx.TransferRequest{From: recipient, To: recipient, Value: big.NewInt(1)})
	assert.Error(t, err)
}

func TestLocalWallet_MismatchAndProviderFallback(t *testing.T) {
	// The configured bnb endpoint actually serves chain 1.
	node, url := newNode(t, 1)
	w, _ := newTestWallet(t, "bnb", url)

	req := tx.TransferRequest{From: w.Account(), To: recipient, Value: big.NewInt(5)}
	_, err := w.SendTransaction(context.Background(), req)
	require.Error(t, err)
	var mismatch *chain.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.True(t, tx.IsChainMismatch(err))

	var hash common.Hash
	args := tx.SendTxArgs{From: req.From, To: &req.To, Value: (*hexutil.Big)(req.Value)}
	require.NoError(t, w.Provider().CallContext(context.Background(), &hash, "eth_sendTransaction", args))

	sent := node.last(t)
	assert.Equal(t, sent.Hash(), hash)
	assert.Equal(t, int64(1), sent.ChainId().Int64(), "fallback signs for the chain the rpc serves")

	var served hexutil.Big
	require.NoError(t, w.Provider().CallContext(context.Background(), &served, "eth_chainId"))
	assert.Equal(t, int64(1), served.ToInt().Int64())

	configured, err := w.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(56), configured.Int64())
}

func TestLocalWallet_OrchestratorFallback(t *testing.T) {
	node, url := newNode(t, 1)
	w, client := newTestWallet(t, "bnb", url)

	o := tx.NewOrchestrator(w, client.Registry())
	defer o.Close()

	_, err := o.Receive(context.Background(), &envelope.TransactionIntent{
		Chain:     "bsc",
		Recipient: recipient.Hex(),
		Amount:    "0.01",
	}, envelope.Envelope{})
	require.NoError(t, err)

	out, err := o.Confirm(context.Background(), tx.Overrides{})
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, node.last(t).Hash(), out.Hash)
	assert.Equal(t, "10000000000000000", node.last(t).Value().String())

	// The outcome names the chain the transfer was signed for, not the configured one.
	assert.Equal(t, "eth", out.Chain)
	assert.Equal(t, int64(1), out.ChainID.Int64())
	assert.Equal(t, "https://etherscan.io/tx/"+out.Hash.Hex(), out.ExplorerURL)
}

func TestLocalWallet_SwitchChain(t *testing.T) {
	_, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)

	var events []tx.WalletEvent
	unsubscribe := w.Subscribe(func(ev tx.WalletEvent) { events = append(events, ev) })

	require.NoError(t, w.SwitchChain(context.Background(), big.NewInt(137)))
	assert.Equal(t, "matic", w.Network())
	id, err := w.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(137), id.Int64())

	// Switching to the active network is silent.
	require.NoError(t, w.SwitchChain(context.Background(), big.NewInt(137)))

	err = w.SwitchChain(context.Background(), big.NewInt(424242))
	assert.Error(t, err)
	assert.Equal(t, "matic", w.Network())

	require.Len(t, events, 1)
	assert.Equal(t, tx.EventChainChanged, events[0].Kind)
	assert.Equal(t, int64(137), events[0].ChainID.Int64())

	unsubscribe()
	require.NoError(t, w.SwitchChain(context.Background(), big.NewInt(1)))
	assert.Len(t, events, 1)
}

func TestLocalWallet_Disconnect(t *testing.T) {
	_, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)
	signer := w.signer.(*KeySigner)

	var events []tx.WalletEvent
	w.Subscribe(func(ev tx.WalletEvent) { events = append(events, ev) })

	w.Disconnect()
	w.Disconnect()

	assert.False(t, w.Connected())
	assert.Equal(t, common.Address{}, w.Account())
	assert.True(t, signer.Locked())
	require.Len(t, events, 1)
	assert.Equal(t, tx.EventDisconnected, events[0].Kind)

	_, err := w.SendTransaction(context.Background(), tx.TransferRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, w.SwitchChain(context.Background(), big.NewInt(1)), ErrNotConnected)
}

func TestLocalWallet_Provider(t *testing.T) {
	_, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)
	p := w.Provider()
	ctx := context.Background()

	var id hexutil.Big
	require.NoError(t, p.CallContext(ctx, &id, "eth_chainId"))
	assert.Equal(t, int64(56), id.ToInt().Int64())

	var accounts []common.Address
	require.NoError(t, p.CallContext(ctx, &accounts, "eth_accounts"))
	assert.Equal(t, []common.Address{w.Account()}, accounts)

	err := p.CallContext(ctx, nil, "wallet_watchAsset")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 4200, perr.ErrorCode())

	assert.Error(t, p.CallContext(ctx, nil, "eth_sendTransaction"))
	assert.Error(t, p.CallContext(ctx, nil, "eth_sendTransaction", tx.SendTxArgs{From: w.Account()}))
}

func TestLocalWallet_CanSendOnCurrentNetwork(t *testing.T) {
	_, url := newNode(t, 56)
	w, _ := newTestWallet(t, "bnb", url)

	ok, err := w.CanSendOnCurrentNetwork(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLocalWallet_UnknownChain(t *testing.T) {
	client := chain.NewClient(chain.DefaultRegistry(), nil)
	_, err := NewLocalWallet(newTestSigner(t), client, "solana", nil)
	assert.Error(t, err)
}
