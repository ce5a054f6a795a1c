package agent

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ReceiptWaiter blocks until a transaction is mined. *chain.Client satisfies it.
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error)
}

// receiptWaitTimeout bounds how long a sent transfer is watched.
const receiptWaitTimeout = 2 * time.Minute

// WatchReceipt waits for hash on chainName and stores the receipt in history.
// It returns nil when the wait times out; the transfer stays recorded as sent.
func WatchReceipt(ctx context.Context, w ReceiptWaiter, history *HistoryStore, chainName string, hash common.Hash, logger *zap.Logger) *types.Receipt {
	if logger == nil {
		logger = zap.NewNop()
	}
	waitCtx, cancel := context.WithTimeout(ctx, receiptWaitTimeout)
	defer cancel()

	receipt, err := w.WaitMined(waitCtx, chainName, hash)
	if err != nil || receipt == nil {
		logger.Debug("receipt not available", zap.String("hash", hash.Hex()), zap.Error(err))
		return nil
	}
	if history != nil {
		if err := history.SetReceipt(ctx, receipt); err != nil {
			logger.Warn("failed to store receipt", zap.String("hash", hash.Hex()), zap.Error(err))
		}
	}
	return receipt
}
