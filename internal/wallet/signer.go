package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transfers for a single account.
type Signer interface {
	// Address returns the Ethereum address of the signer
	Address() common.Address

	// SignTransaction signs a transaction with the given chain ID
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner holds an unlocked private key.
type KeySigner struct {
	// mu keeps signing from racing with Lock, which zeros the key.
	mu      sync.RWMutex
	address common.Address
	key     *ecdsa.PrivateKey // nil when locked
}

// NewKeySigner wraps an already decrypted key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTransaction signs tx for chainID with the latest signer rules.
func (s *KeySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, ErrAccountLocked
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Lock zeros the key material. Safe to call multiple times; afterwards
// signing returns ErrAccountLocked.
func (s *KeySigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		s.key.D.SetInt64(0)
		s.key = nil
	}
}

// Locked reports whether the key has been zeroed.
func (s *KeySigner) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key == nil
}
