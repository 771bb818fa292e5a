package evm

import (
	"math/big"
	"time"
)

const (
	// Reward token decimals
	TokenDecimals = 18

	// Fixed gas limit for a single ERC-20 transfer
	TransferGasLimit = 100000

	// Quoted gas price is multiplied by GasPriceBufferPercent/100
	GasPriceBufferPercent = 130

	// Transaction status
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// Receipt polling defaults
	DefaultConfirmationAttempts = 60
	DefaultConfirmationInterval = time.Second

	// ERC-20 function names
	FunctionTransfer = "transfer"

	// Error codes
	ErrInvalidSignature   = "invalid_reward_claim_signature"
	ErrSignatureMismatch  = "invalid_reward_claim_signer_mismatch"
	ErrInvalidAddress     = "invalid_reward_claim_address"
	ErrAmountOutOfRange   = "invalid_reward_amount_out_of_range"
	ErrMissingTransaction = "missing_unsigned_transaction"
)

// transferSelector is the 4-byte function selector for ERC-20 transfer(address,uint256).
// keccak256("transfer(address,uint256)") = 0xa9059cbb...
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

var (
	// Network chain IDs
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)

	// DefaultExplorerURL is the block explorer for Base Sepolia.
	DefaultExplorerURL = "https://sepolia.basescan.org"
)

// ERC20TransferABI is the ABI fragment of the ERC-20 transfer function.
var ERC20TransferABI = []byte(`[
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)
