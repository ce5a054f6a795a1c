package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeBalance is an account's holding of a chain's native currency.
type NativeBalance struct {
	Chain    string   `json:"chain"`
	Label    string   `json:"label"`
	Symbol   string   `json:"symbol"`
	Balance  *big.Int `json:"balance"`
	Decimals uint8    `json:"decimals"`
}

// Amount is the exact balance in the native unit, e.g. "0.25".
func (b *NativeBalance) Amount() string {
	return FormatUnits(b.Balance, b.Decimals)
}

// String renders the balance with its currency symbol, e.g. "0.25 BNB".
func (b *NativeBalance) String() string {
	return b.Amount() + " " + b.Symbol
}

// GetNativeBalance reads address's native balance on chainName. Aliases such
// as "bsc" resolve to their canonical chain.
func (c *Client) GetNativeBalance(ctx context.Context, chainName string, address common.Address) (*NativeBalance, error) {
	name, ok := c.registry.Canonical(chainName)
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", chainName)
	}
	cfg, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}

	balance, err := c.GetBalance(ctx, name, address)
	if err != nil {
		return nil, fmt.Errorf("%s balance: %w", name, err)
	}

	return &NativeBalance{
		Chain:    name,
		Label:    cfg.Name,
		Symbol:   cfg.NativeCurrency,
		Balance:  balance,
		Decimals: cfg.Decimals,
	}, nil
}
