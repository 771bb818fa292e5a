package rewards

import (
	"context"
	"time"
)

// ============================================================================
// Disburser Hook Context Types
// ============================================================================

// DisburseContext contains information passed to disburse hooks
type DisburseContext struct {
	Ctx       context.Context
	Claim     RewardClaim
	Timestamp time.Time
}

// DisburseResultContext contains a completed disbursement and its context
type DisburseResultContext struct {
	DisburseContext
	Result   DisbursementResult
	Duration time.Duration
}

// DisburseFailureContext contains a failed disbursement and its context
type DisburseFailureContext struct {
	DisburseContext
	Error    *DisbursementError
	Duration time.Duration
}

// ConfirmationContext is passed to confirmation hooks once a background
// confirmation reaches a final state.
type ConfirmationContext struct {
	TxHash  string
	Outcome Outcome
	Error   *DisbursementError
}

// ============================================================================
// Disburser Hook Result Types
// ============================================================================

// BeforeDisburseHookResult represents the result of a "before" hook
// If Abort is true, the claim is rejected with the given Reason
type BeforeDisburseHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Disburser Hook Function Types
// ============================================================================

// BeforeDisburseHook is called before a claim enters validation
// If it returns a result with Abort=true, the claim is rejected as a
// policy violation carrying the provided reason
type BeforeDisburseHook func(DisburseContext) (*BeforeDisburseHookResult, error)

// AfterDisburseHook is called after a claim is broadcast and its outcome known
// (succeeded, pending or submitted). Errors are ignored
type AfterDisburseHook func(DisburseResultContext) error

// OnDisburseFailureHook is called when a claim fails at any stage. Errors are ignored
type OnDisburseFailureHook func(DisburseFailureContext) error

// OnConfirmationHook is called when a background confirmation finishes
type OnConfirmationHook func(ConfirmationContext)
