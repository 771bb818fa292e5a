// Package ledger records broadcast reward transfers and their confirmation state.
//
// The ledger backs the status endpoint: a claim that returned "pending" or
// "submitted" can be looked up later by transaction hash.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a broadcast transfer.
type Status string

const (
	// StatusSubmitted means the transaction was accepted by the node and is being tracked.
	StatusSubmitted Status = "submitted"
	// StatusPending means confirmation polling gave up before the transaction was mined.
	StatusPending Status = "pending"
	// StatusConfirmed means the transaction was mined with success status.
	StatusConfirmed Status = "confirmed"
	// StatusReverted means the transaction was mined but reverted.
	StatusReverted Status = "reverted"
)

// Final reports whether no further transitions are expected.
func (s Status) Final() bool {
	return s == StatusConfirmed || s == StatusReverted
}

// ErrNotFound is returned when no record exists for a transaction hash.
var ErrNotFound = errors.New("ledger: record not found")

// Record is a single broadcast reward transfer.
type Record struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TxHash       string    `gorm:"type:varchar(66);uniqueIndex;not null" json:"txHash"`
	Recipient    string    `gorm:"type:varchar(42);index;not null" json:"recipient"`
	TaskID       string    `gorm:"type:varchar(64)" json:"taskId,omitempty"`
	WelcomeBonus bool      `json:"isWelcomeBonus"`
	ClaimNonce   string    `gorm:"type:varchar(128)" json:"nonce"`
	Reward       int64     `json:"reward"`
	Status       Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	BlockNumber  uint64    `json:"blockNumber,omitempty"`
	GasUsed      uint64    `json:"gasUsed,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName implements the GORM tabler interface.
func (Record) TableName() string { return "reward_disbursements" }

// Update is a status transition for an existing record.
type Update struct {
	Status      Status
	BlockNumber uint64
	GasUsed     uint64
}

// Store persists disbursement records. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, record *Record) error
	Update(ctx context.Context, txHash string, update Update) error
	Get(ctx context.Context, txHash string) (*Record, error)
}
