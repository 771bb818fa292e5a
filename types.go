package rewards

import (
	"math/big"
	"time"
)

// RewardClaim is a signed request from a user to be paid for a task.
type RewardClaim struct {
	TaskID         string `json:"taskId,omitempty"`
	Address        string `json:"address"`
	Message        string `json:"message"`
	Signature      string `json:"signature"`
	Nonce          string `json:"nonce"`
	Expiry         int64  `json:"expiry"`
	Reward         int64  `json:"reward"`
	IsWelcomeBonus bool   `json:"isWelcomeBonus,omitempty"`
}

// Stage names a step of the disbursement state machine.
type Stage string

const (
	StageValidating         Stage = "validating"
	StageAuthenticating     Stage = "authenticating"
	StageReplayChecking     Stage = "replay_checking"
	StagePolicyChecking     Stage = "policy_checking"
	StageReadingChainParams Stage = "reading_chain_params"
	StageBuilding           Stage = "building"
	StageSigning            Stage = "signing"
	StageBroadcasting       Stage = "broadcasting"
	StageConfirming         Stage = "confirming"
)

// Outcome is the terminal, non-error state of a disbursement.
type Outcome string

const (
	// OutcomeSucceeded means the transfer was mined with success status.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePending means polling ended before the transfer was mined.
	OutcomePending Outcome = "pending"
	// OutcomeSubmitted means the transfer was broadcast and is confirmed in the background.
	OutcomeSubmitted Outcome = "submitted"
)

// DisbursementResult describes a broadcast reward transfer.
type DisbursementResult struct {
	Outcome         Outcome
	TxHash          string
	BlockNumber     uint64
	GasUsed         uint64
	Amount          int64
	AmountBaseUnits *big.Int
	Recipient       string
	Contract        string
	ExplorerURL     string
	Timestamp       time.Time
}

// ConfirmationMode selects whether claims wait for the receipt.
type ConfirmationMode string

const (
	// ConfirmationBlocking polls for the receipt before responding.
	ConfirmationBlocking ConfirmationMode = "blocking"
	// ConfirmationAsync responds after broadcast and polls in the background.
	ConfirmationAsync ConfirmationMode = "async"
)

// HealthReport is the liveness view of the chain connection and reward wallet.
type HealthReport struct {
	BlockNumber   uint64
	WalletAddress string
	Contract      string
	ChainID       int64
}
