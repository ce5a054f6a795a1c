package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
	ErrNoAccounts      = errors.New("no accounts in keystore")
)

// KeystoreManager manages the encrypted keystore under the data directory.
type KeystoreManager struct {
	ks  *keystore.KeyStore
	dir string
}

// NewKeystoreManager opens (creating if needed) <dataDir>/keystore.
func NewKeystoreManager(dataDir string) (*KeystoreManager, error) {
	return newKeystoreManager(dataDir, keystore.StandardScryptN, keystore.StandardScryptP)
}

func newKeystoreManager(dataDir string, scryptN, scryptP int) (*KeystoreManager, error) {
	dir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &KeystoreManager{
		ks:  keystore.NewKeyStore(dir, scryptN, scryptP),
		dir: dir,
	}, nil
}

// Dir returns the keystore directory.
func (km *KeystoreManager) Dir() string {
	return km.dir
}

// CreateAccount creates a new account with the given password
func (km *KeystoreManager) CreateAccount(password string) (accounts.Account, error) {
	return km.ks.NewAccount(password)
}

// ImportKey imports a hex private key and encrypts it with the password
func (km *KeystoreManager) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return km.ks.ImportECDSA(privateKey, password)
}

// ListAccounts returns all accounts in the keystore
func (km *KeystoreManager) ListAccounts() []accounts.Account {
	return km.ks.Accounts()
}

// Find returns the keystore account for address.
func (km *KeystoreManager) Find(address common.Address) (accounts.Account, error) {
	for _, acc := range km.ks.Accounts() {
		if acc.Address == address {
			return acc, nil
		}
	}
	return accounts.Account{}, ErrAccountNotFound
}

// Default returns address if set, otherwise the only or first account.
func (km *KeystoreManager) Default(address string) (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid wallet address: %s", address)
		}
		acc, err := km.Find(common.HexToAddress(address))
		if err != nil {
			return common.Address{}, err
		}
		return acc.Address, nil
	}
	accs := km.ks.Accounts()
	if len(accs) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accs[0].Address, nil
}

// Unlock decrypts the key for address and returns a signer holding it.
func (km *KeystoreManager) Unlock(address common.Address, password string) (*KeySigner, error) {
	acc, err := km.Find(address)
	if err != nil {
		return nil, err
	}

	keyJSON, err := os.ReadFile(acc.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock account: %w", err)
	}
	return NewKeySigner(key.PrivateKey), nil
}
