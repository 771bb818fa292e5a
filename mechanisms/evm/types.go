package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionReceipt is the subset of an on-chain receipt the disbursement flow reads.
type TransactionReceipt struct {
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
	TxHash      common.Hash
}

// Succeeded reports whether the receipt carries the success status.
func (r *TransactionReceipt) Succeeded() bool {
	return r != nil && r.Status == TxStatusSuccess
}

// UnsignedTransaction is a fully built legacy transaction awaiting a signature.
type UnsignedTransaction struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
}

// Transaction converts the unsigned description into a go-ethereum legacy transaction.
func (u *UnsignedTransaction) Transaction() *types.Transaction {
	to := u.To
	value := u.Value
	if value == nil {
		value = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    u.Nonce,
		GasPrice: new(big.Int).Set(u.GasPrice),
		Gas:      u.GasLimit,
		To:       &to,
		Value:    new(big.Int).Set(value),
		Data:     common.CopyBytes(u.Data),
	})
}

// TxSigner signs reward transfers on behalf of the reward wallet.
// Implementations may hold a raw key or delegate to a remote signing service.
type TxSigner interface {
	Address() common.Address
	SignTransaction(ctx context.Context, tx *UnsignedTransaction) (*types.Transaction, error)
}
