package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChains(t *testing.T) {
	chains := DefaultChains()

	t.Run("returns all expected chains", func(t *testing.T) {
		expectedChains := []string{"eth", "bnb", "matic", "monad-testnet", "u2u"}

		assert.Len(t, chains, len(expectedChains))
		for _, name := range expectedChains {
			_, ok := chains[name]
			assert.True(t, ok, "missing chain: %s", name)
		}
	})

	t.Run("bnb config is correct", func(t *testing.T) {
		bnb := chains["bnb"]
		require.NotNil(t, bnb)

		assert.Equal(t, "BNB Smart Chain", bnb.Name)
		assert.Equal(t, int64(56), bnb.ChainID.Int64())
		assert.Equal(t, "BNB", bnb.NativeCurrency)
		assert.Equal(t, uint8(18), bnb.Decimals)
		assert.False(t, bnb.IsTestnet)
	})

	t.Run("monad testnet config is correct", func(t *testing.T) {
		monad := chains["monad-testnet"]
		require.NotNil(t, monad)

		assert.Equal(t, "Monad Testnet", monad.Name)
		assert.Equal(t, int64(10143), monad.ChainID.Int64())
		assert.Equal(t, "MON", monad.NativeCurrency)
		assert.True(t, monad.IsTestnet)
	})

	t.Run("u2u config is correct", func(t *testing.T) {
		u2u := chains["u2u"]
		require.NotNil(t, u2u)

		assert.Equal(t, "U2U Network", u2u.Name)
		assert.Equal(t, int64(39), u2u.ChainID.Int64())
	})

	t.Run("all chains have RPC URLs and explorer", func(t *testing.T) {
		for name, config := range chains {
			assert.NotEmpty(t, config.RPCURLs, "chain %s has no RPC URLs", name)
			assert.NotEmpty(t, config.ExplorerURL, "chain %s has no explorer URL", name)
		}
	})

	t.Run("chainID matches chainIDInt", func(t *testing.T) {
		for name, config := range chains {
			assert.Equal(t, config.ChainIDInt, config.ChainID.Int64(),
				"chain %s: ChainID and ChainIDInt mismatch", name)
		}
	})
}

func TestNewRegistry(t *testing.T) {
	t.Run("rejects duplicate chain ids", func(t *testing.T) {
		chains := DefaultChains()
		chains["bsc-copy"] = &ChainConfig{Name: "copy", ChainID: big.NewInt(56), ChainIDInt: 56}

		_, err := NewRegistry(chains)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain id 56")
	})

	t.Run("rejects mismatched id fields", func(t *testing.T) {
		_, err := NewRegistry(map[string]*ChainConfig{
			"bad": {Name: "bad", ChainID: big.NewInt(2), ChainIDInt: 3},
		})
		require.Error(t, err)
	})

	t.Run("is not affected by later edits to the source map", func(t *testing.T) {
		chains := DefaultChains()
		reg, err := NewRegistry(chains)
		require.NoError(t, err)

		chains["eth"].RPCURLs[0] = "http://mutated"
		chains["eth"].Name = "mutated"

		eth, err := reg.Get("eth")
		require.NoError(t, err)
		assert.Equal(t, "Ethereum", eth.Name)
		assert.NotEqual(t, "http://mutated", eth.RPCURLs[0])
	})

	t.Run("looks up names by id", func(t *testing.T) {
		reg := DefaultRegistry()
		name, ok := reg.NameByID(big.NewInt(137))
		require.True(t, ok)
		assert.Equal(t, "matic", name)

		_, ok = reg.NameByID(big.NewInt(999999))
		assert.False(t, ok)
	})
}

func TestWithRPCOverrides(t *testing.T) {
	chains := WithRPCOverrides(DefaultChains(), map[string][]string{
		"monad-testnet": {"http://127.0.0.1:8545"},
	})

	assert.Equal(t, []string{"http://127.0.0.1:8545"}, chains["monad-testnet"].RPCURLs)
	assert.Equal(t, DefaultChains()["eth"].RPCURLs, chains["eth"].RPCURLs)
}

func TestChainConfig_TxURL(t *testing.T) {
	cfg := DefaultChains()["bnb"]
	assert.Equal(t, "https://bscscan.com/tx/0xabc", cfg.TxURL("0xabc"))

	assert.Empty(t, (&ChainConfig{}).TxURL("0xabc"))
}
