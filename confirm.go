package rewards

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/questlabs/rewards-go/ledger"
	"github.com/questlabs/rewards-go/mechanisms/evm"
	"github.com/questlabs/rewards-go/pkg/chainclient"
)

// awaitReceipt polls for the receipt up to the configured number of attempts.
// Lookup errors count as "not mined yet". A nil receipt means the poll ran out
// or ctx was cancelled.
func (d *Disburser) awaitReceipt(ctx context.Context, hash common.Hash) *evm.TransactionReceipt {
	for attempt := 1; attempt <= d.attempts; attempt++ {
		receipt, err := d.gateway.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt
		}
		if err != nil && !errors.Is(err, chainclient.ErrReceiptNotFound) {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"tx_hash": hash.Hex(),
				"attempt": attempt,
			}).Debug("receipt lookup failed")
		}
		if attempt == d.attempts {
			break
		}

		timer := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	return nil
}

// applyReceipt records the confirmation outcome in the ledger and maps it to
// an Outcome or a TransactionReverted error.
func (d *Disburser) applyReceipt(ctx context.Context, txHash string, receipt *evm.TransactionReceipt) (Outcome, *DisbursementError) {
	entry := d.logger.WithField("tx_hash", txHash)

	switch {
	case receipt == nil:
		d.updateLedger(ctx, txHash, ledger.Update{Status: ledger.StatusPending})
		entry.Warn("reward transfer not confirmed in time")
		return OutcomePending, nil

	case receipt.Succeeded():
		d.updateLedger(ctx, txHash, ledger.Update{
			Status:      ledger.StatusConfirmed,
			BlockNumber: receipt.BlockNumber,
			GasUsed:     receipt.GasUsed,
		})
		entry.WithFields(logrus.Fields{
			"block_number": receipt.BlockNumber,
			"gas_used":     receipt.GasUsed,
		}).Info("reward transfer confirmed")
		return OutcomeSucceeded, nil

	default:
		d.updateLedger(ctx, txHash, ledger.Update{
			Status:      ledger.StatusReverted,
			BlockNumber: receipt.BlockNumber,
			GasUsed:     receipt.GasUsed,
		})
		entry.WithField("block_number", receipt.BlockNumber).Error("reward transfer reverted")
		derr := NewDisbursementError(ErrCodeTransactionReverted, StageConfirming, "transaction reverted", nil)
		derr.TxHash = txHash
		return "", derr
	}
}

func (d *Disburser) updateLedger(ctx context.Context, txHash string, update ledger.Update) {
	if err := d.ledger.Update(ctx, txHash, update); err != nil {
		d.logger.WithError(err).WithField("tx_hash", txHash).Warn("failed to update disbursement record")
	}
}

// confirmInBackground polls for the receipt on a context owned by the
// Disburser, so the caller's request can complete immediately.
// After Close the transfer is recorded as pending without polling.
func (d *Disburser) confirmInBackground(hash common.Hash) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.updateLedger(context.Background(), hash.Hex(), ledger.Update{Status: ledger.StatusPending})
		d.logger.WithField("tx_hash", hash.Hex()).Warn("disburser closed; transfer left pending")
		return
	}
	d.backgroundWaitGroup.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.backgroundWaitGroup.Done()

		txHash := hash.Hex()
		receipt := d.awaitReceipt(d.backgroundCtx, hash)
		outcome, derr := d.applyReceipt(context.Background(), txHash, receipt)
		if derr != nil {
			outcome = ""
		}

		d.mu.RLock()
		hooks := append([]OnConfirmationHook(nil), d.confirmationHooks...)
		d.mu.RUnlock()
		for _, hook := range hooks {
			hook(ConfirmationContext{TxHash: txHash, Outcome: outcome, Error: derr})
		}
	}()
}

// Close stops background confirmations and waits for them to record their
// state. Transfers still unmined are left as pending in the ledger.
func (d *Disburser) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancelBackground()
	d.backgroundWaitGroup.Wait()
}

// ============================================================================
// Status and Health
// ============================================================================

// Status returns the ledger record for txHash. A record that is not yet final
// is refreshed with one receipt lookup first.
func (d *Disburser) Status(ctx context.Context, txHash string) (*ledger.Record, error) {
	record, err := d.ledger.Get(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if record.Status.Final() || d.gateway == nil {
		return record, nil
	}

	receipt, err := d.gateway.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil || receipt == nil {
		return record, nil
	}

	update := ledger.Update{Status: ledger.StatusReverted, BlockNumber: receipt.BlockNumber, GasUsed: receipt.GasUsed}
	if receipt.Succeeded() {
		update.Status = ledger.StatusConfirmed
	}
	d.updateLedger(ctx, txHash, update)

	record.Status = update.Status
	record.BlockNumber = update.BlockNumber
	record.GasUsed = update.GasUsed
	return record, nil
}

// Health reads the chain height and reports the reward wallet.
func (d *Disburser) Health(ctx context.Context) (*HealthReport, error) {
	if d.gateway == nil {
		return nil, NewDisbursementError(ErrCodeConfiguration, "", "rpc url not configured", d.configErr)
	}
	height, err := d.gateway.BlockNumber(ctx)
	if err != nil {
		return nil, chainFailure("", "failed to read block number", err)
	}
	if d.signer == nil {
		return nil, NewDisbursementError(ErrCodeConfiguration, "", "reward signer not configured", d.configErr)
	}
	if d.configErr != nil {
		return nil, NewDisbursementError(ErrCodeConfiguration, "", "reward service is not configured", d.configErr)
	}
	return &HealthReport{
		BlockNumber:   height,
		WalletAddress: d.signer.Address().Hex(),
		Contract:      d.token.Hex(),
		ChainID:       d.chainID.Int64(),
	}, nil
}

// ExplorerURL returns the explorer link for txHash.
func (d *Disburser) ExplorerURL(txHash string) string {
	return evm.ExplorerTxURL(d.explorerURL, txHash)
}
