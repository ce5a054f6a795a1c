package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/testutil"
)

// Well-known development key; never holds funds.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testKeyAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newTestManager(t *testing.T) *KeystoreManager {
	t.Helper()
	km, err := newKeystoreManager(testutil.TempDir(t), keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	return km
}

func TestNewKeystoreManager(t *testing.T) {
	dir := testutil.TempDir(t)

	km1, err := NewKeystoreManager(dir)
	require.NoError(t, err)
	assert.DirExists(t, km1.Dir())

	// Reopening an existing directory is fine.
	km2, err := NewKeystoreManager(dir)
	require.NoError(t, err)
	assert.Equal(t, km1.Dir(), km2.Dir())
}

func TestKeystoreManager_CreateAccount(t *testing.T) {
	km := newTestManager(t)

	acc1, err := km.CreateAccount("pass1")
	require.NoError(t, err)
	acc2, err := km.CreateAccount("")
	require.NoError(t, err)

	assert.NotEqual(t, common.Address{}, acc1.Address)
	assert.NotEqual(t, acc1.Address, acc2.Address)
	assert.Len(t, km.ListAccounts(), 2)
}

func TestKeystoreManager_ImportKey(t *testing.T) {
	for _, key := range []string{testPrivateKey, "0x" + testPrivateKey, "  0x" + testPrivateKey + "\n"} {
		km := newTestManager(t)
		account, err := km.ImportKey(key, "testpassword")
		require.NoError(t, err)
		assert.Equal(t, testKeyAddress, account.Address.Hex())
	}

	km := newTestManager(t)
	for _, bad := range []string{"not-a-valid-hex-key", "abcd1234"} {
		_, err := km.ImportKey(bad, "testpassword")
		assert.ErrorIs(t, err, ErrInvalidKey)
	}
}

func TestKeystoreManager_Default(t *testing.T) {
	km := newTestManager(t)

	_, err := km.Default("")
	assert.ErrorIs(t, err, ErrNoAccounts)

	acc, err := km.ImportKey(testPrivateKey, "pw")
	require.NoError(t, err)

	got, err := km.Default("")
	require.NoError(t, err)
	assert.Equal(t, acc.Address, got)

	got, err = km.Default(testKeyAddress)
	require.NoError(t, err)
	assert.Equal(t, acc.Address, got)

	_, err = km.Default("0x1234567890123456789012345678901234567890")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = km.Default("nope")
	assert.Error(t, err)
}

func TestKeystoreManager_Unlock(t *testing.T) {
	t.Run("correct password", func(t *testing.T) {
		km := newTestManager(t)
		account, err := km.CreateAccount("correct")
		require.NoError(t, err)

		signer, err := km.Unlock(account.Address, "correct")
		require.NoError(t, err)
		assert.Equal(t, account.Address, signer.Address())
		assert.False(t, signer.Locked())
	})

	t.Run("wrong password", func(t *testing.T) {
		km := newTestManager(t)
		account, err := km.CreateAccount("correct")
		require.NoError(t, err)

		_, err = km.Unlock(account.Address, "wrong")
		assert.Error(t, err)
	})

	t.Run("unknown address", func(t *testing.T) {
		km := newTestManager(t)
		_, err := km.Unlock(common.HexToAddress("0x1234567890123456789012345678901234567890"), "pw")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
