package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return NewKeySigner(key)
}

func TestKeySigner_Address(t *testing.T) {
	assert.Equal(t, testKeyAddress, newTestSigner(t).Address().Hex())
}

func TestKeySigner_SignTransaction(t *testing.T) {
	s := newTestSigner(t)
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	chainID := big.NewInt(56)

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1000),
	})

	signed, err := s.SignTransaction(unsigned, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
	assert.Equal(t, int64(56), signed.ChainId().Int64())
}

func TestKeySigner_Lock(t *testing.T) {
	s := newTestSigner(t)
	unsigned := types.NewTransaction(0, s.Address(), big.NewInt(1), 21000, big.NewInt(1), nil)

	s.Lock()
	s.Lock()
	assert.True(t, s.Locked())

	_, err := s.SignTransaction(unsigned, big.NewInt(1))
	assert.ErrorIs(t, err, ErrAccountLocked)
}
