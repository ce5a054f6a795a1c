package tx

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monagent/chainpilot/internal/envelope"
)

// Pending is a validated intent awaiting the user's decision.
type Pending struct {
	ID         uint64
	Envelope   envelope.Envelope
	ChainLabel string // display name, e.g. "BNB Smart Chain"
	ChainValue string // chain as the agent sent it
	Chain      string // canonical registry name
	ChainID    *big.Int
	Decimals   uint8
	Recipient  common.Address
	Amount     string
	Value      *big.Int
	Account    common.Address
	ReceivedAt time.Time
}

func (p *Pending) clone() Pending {
	c := *p
	if p.ChainID != nil {
		c.ChainID = new(big.Int).Set(p.ChainID)
	}
	if p.Value != nil {
		c.Value = new(big.Int).Set(p.Value)
	}
	return c
}

// Overrides are the user's edits from the confirmation gate. Empty fields
// keep the pending value.
type Overrides struct {
	Recipient string
	Amount    string
}

// Outcome describes a transfer the wallet accepted.
type Outcome struct {
	Hash        common.Hash
	ChainID     *big.Int // network the wallet reported after sending, if known
	Chain       string   // canonical name for ChainID, if known
	To          common.Address
	Amount      string
	Value       *big.Int
	Fallback    bool // submitted through the provider after a network mismatch
	ExplorerURL string
}
