package chain

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    *big.Int
		decimals uint8
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero", big.NewInt(0), 18, "0"},
		{"one BNB", wei(t, "1000000000000000000"), 18, "1"},
		{"tenth of a BNB", wei(t, "100000000000000000"), 18, "0.1"},
		{"one wei", big.NewInt(1), 18, "0.000000000000000001"},
		{"full precision", wei(t, "1234567890123456789"), 18, "1.234567890123456789"},
		{"large balance", wei(t, "1000000000000000000000"), 18, "1000"},
		{"negative", wei(t, "-250000000000000000"), 18, "-0.25"},
		{"two decimals", big.NewInt(10050), 2, "100.5"},
		{"no decimals", big.NewInt(12345), 0, "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUnits(tt.value, tt.decimals))
		})
	}
}

func TestFormatUnits_InvertsToSmallestUnit(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range reg.Names() {
		cfg, err := reg.Get(name)
		require.NoError(t, err)
		for _, amount := range []string{"0.1", "1e-5", "0.000000000000000001", "42", "1.5"} {
			v, err := ToSmallestUnit(amount, cfg.Decimals)
			require.NoError(t, err, "%s on %s", amount, name)

			back, err := ToSmallestUnit(FormatUnits(v, cfg.Decimals), cfg.Decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, v.Cmp(back), "%s on %s", amount, name)
		}
	}
	assert.Equal(t, "0.00001", FormatUnits(mustSmallest(t, "1e-5", 18), 18))
}

func mustSmallest(t *testing.T, amount string, decimals uint8) *big.Int {
	t.Helper()
	v, err := ToSmallestUnit(amount, decimals)
	require.NoError(t, err)
	return v
}

func TestNativeBalance_String(t *testing.T) {
	b := &NativeBalance{Chain: "bnb", Symbol: "BNB", Balance: wei(t, "250000000000000000"), Decimals: 18}
	assert.Equal(t, "0.25", b.Amount())
	assert.Equal(t, "0.25 BNB", b.String())

	empty := &NativeBalance{Chain: "matic", Symbol: "MATIC", Decimals: 18}
	assert.Equal(t, "0 MATIC", empty.String())
}

type balanceService struct {
	chainID *big.Int
	balance *big.Int
}

func (s *balanceService) ChainId() *hexutil.Big { return (*hexutil.Big)(s.chainID) }

func (s *balanceService) GetBalance(common.Address, string) *hexutil.Big {
	return (*hexutil.Big)(s.balance)
}

func TestClient_GetNativeBalance(t *testing.T) {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &balanceService{
		chainID: big.NewInt(56),
		balance: wei(t, "1500000000000000000"),
	}))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})

	reg, err := NewRegistry(WithRPCOverrides(DefaultChains(), map[string][]string{"bnb": {ts.URL}}))
	require.NoError(t, err)
	client := NewClient(reg, nil)
	t.Cleanup(client.Close)

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	t.Run("resolves aliases", func(t *testing.T) {
		got, err := client.GetNativeBalance(context.Background(), "bsc", addr)
		require.NoError(t, err)
		assert.Equal(t, "bnb", got.Chain)
		assert.Equal(t, "BNB Smart Chain", got.Label)
		assert.Equal(t, "1.5 BNB", got.String())
	})

	t.Run("unknown chain", func(t *testing.T) {
		_, err := client.GetNativeBalance(context.Background(), "dogecoin", addr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown chain")
	})
}
