package tx

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monagent/chainpilot/internal/chain"
)

// Gate holds the editable fields shown before a transfer is confirmed.
type Gate struct {
	ChainLabel string
	Recipient  string
	Amount     string

	decimals uint8
	busy     bool
}

// NewGate seeds a gate from p.
func NewGate(p *Pending) *Gate {
	return &Gate{
		ChainLabel: p.ChainLabel,
		Recipient:  p.Recipient.Hex(),
		Amount:     p.Amount,
		decimals:   p.Decimals,
	}
}

// SetRecipient replaces the edited recipient.
func (g *Gate) SetRecipient(s string) { g.Recipient = strings.TrimSpace(s) }

// SetAmount replaces the edited amount, in the chain's native unit.
func (g *Gate) SetAmount(s string) { g.Amount = strings.TrimSpace(s) }

// SetBusy marks a send as in flight.
func (g *Gate) SetBusy(busy bool) { g.busy = busy }

func (g *Gate) Busy() bool { return g.busy }

// Validate checks the edited fields.
func (g *Gate) Validate() error {
	if !common.IsHexAddress(g.Recipient) {
		return newError(KindInvalidRecipient, nil, "invalid recipient address: %q", g.Recipient)
	}
	if _, err := chain.ToSmallestUnit(g.Amount, g.decimals); err != nil {
		return newError(KindInvalidAmount, err, "invalid amount: %v", err)
	}
	return nil
}

// CanSend reports whether the send actions should be enabled.
func (g *Gate) CanSend() bool {
	return !g.busy && g.Validate() == nil
}

// Overrides returns the edited fields for Confirm or SwitchAndConfirm.
func (g *Gate) Overrides() Overrides {
	return Overrides{Recipient: g.Recipient, Amount: g.Amount}
}
