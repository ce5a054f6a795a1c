package tx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Intent captures a state-changing transfer ready for policy checks.
type Intent struct {
	Chain    string         // canonical chain name
	From     common.Address // signer address
	To       common.Address // recipient
	ValueWei *big.Int       // native value in base units
	Data     []byte         // calldata (empty for native send)
}

// Policy enforces safety constraints before sending.
type Policy struct {
	MaxPerTxWei *big.Int
	AllowTo     []common.Address
	DenyTo      []common.Address
}

// SuggestedFees carries gas estimates so the caller can render them.
type SuggestedFees struct {
	GasLimit         uint64
	MaxFeePerGas     *big.Int
	MaxPriorityFee   *big.Int
	EstimatedCostWei *big.Int
}

// Validate applies simple allow/deny and spend limits.
func Validate(intent Intent, policy Policy) error {
	if intent.ValueWei == nil {
		return fmt.Errorf("value missing")
	}

	for _, a := range policy.DenyTo {
		if a == intent.To {
			return fmt.Errorf("destination denied by policy")
		}
	}
	if len(policy.AllowTo) > 0 {
		allowed := false
		for _, a := range policy.AllowTo {
			if a == intent.To {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("destination not in allowlist")
		}
	}
	if policy.MaxPerTxWei != nil && intent.ValueWei.Cmp(policy.MaxPerTxWei) > 0 {
		return fmt.Errorf("value exceeds max per tx limit")
	}
	return nil
}

// Backend is the node access needed to prepare a transfer. *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// BuildUnsignedTx prepares an unsigned transfer for chainID. It builds an
// EIP-1559 transaction and falls back to a legacy one when the node cannot
// suggest a priority fee.
func BuildUnsignedTx(ctx context.Context, b Backend, chainID *big.Int, intent Intent) (*types.Transaction, SuggestedFees, error) {
	if intent.ValueWei == nil {
		return nil, SuggestedFees{}, fmt.Errorf("value missing")
	}

	nonce, err := b.PendingNonceAt(ctx, intent.From)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("suggest gas price: %w", err)
	}
	tip, tipErr := b.SuggestGasTipCap(ctx)

	call := ethereum.CallMsg{
		From:  intent.From,
		To:    &intent.To,
		Value: intent.ValueWei,
		Data:  intent.Data,
	}
	if tipErr == nil {
		call.GasFeeCap = gasPrice
		call.GasTipCap = tip
	} else {
		call.GasPrice = gasPrice
	}
	gasLimit, err := b.EstimateGas(ctx, call)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("estimate gas: %w", err)
	}

	var unsigned *types.Transaction
	fees := SuggestedFees{GasLimit: gasLimit, MaxFeePerGas: gasPrice}
	if tipErr == nil {
		maxFee := gasPrice
		if maxFee.Cmp(tip) < 0 {
			maxFee = tip
		}
		fees.MaxFeePerGas = maxFee
		fees.MaxPriorityFee = tip
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: maxFee,
			Gas:       gasLimit,
			To:        &intent.To,
			Value:     intent.ValueWei,
			Data:      intent.Data,
		})
	} else {
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &intent.To,
			Value:    intent.ValueWei,
			Data:     intent.Data,
		})
	}

	total := new(big.Int).Mul(fees.MaxFeePerGas, new(big.Int).SetUint64(gasLimit))
	total.Add(total, intent.ValueWei)
	fees.EstimatedCostWei = total

	return unsigned, fees, nil
}
