package rewards

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients
const (
	ErrCodeValidation          = "validation_error"
	ErrCodeExpiredClaim        = "expired_claim"
	ErrCodeAuthentication      = "authentication_error"
	ErrCodeDuplicateClaim      = "duplicate_claim"
	ErrCodePolicyViolation     = "policy_violation"
	ErrCodeConfiguration       = "configuration_error"
	ErrCodeChainUnavailable    = "chain_unavailable"
	ErrCodeChainRPC            = "chain_rpc_error"
	ErrCodeSigningFailed       = "signing_failed"
	ErrCodeTransactionReverted = "transaction_reverted"
	ErrCodeInternal            = "internal_error"
)

var statusByCode = map[string]int{
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeExpiredClaim:        http.StatusBadRequest,
	ErrCodeAuthentication:      http.StatusUnauthorized,
	ErrCodeDuplicateClaim:      http.StatusConflict,
	ErrCodePolicyViolation:     http.StatusBadRequest,
	ErrCodeConfiguration:       http.StatusInternalServerError,
	ErrCodeChainUnavailable:    http.StatusServiceUnavailable,
	ErrCodeChainRPC:            http.StatusInternalServerError,
	ErrCodeSigningFailed:       http.StatusInternalServerError,
	ErrCodeTransactionReverted: http.StatusInternalServerError,
	ErrCodeInternal:            http.StatusInternalServerError,
}

// DisbursementError is the single failure type produced by the Disburser.
type DisbursementError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Stage   Stage  `json:"-"`
	TxHash  string `json:"txHash,omitempty"`
	Err     error  `json:"-"`
}

func (e *DisbursementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DisbursementError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to a response status.
func (e *DisbursementError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewDisbursementError creates a new disbursement error
func NewDisbursementError(code string, stage Stage, message string, err error) *DisbursementError {
	return &DisbursementError{
		Code:    code,
		Message: message,
		Stage:   stage,
		Err:     err,
	}
}

// AsDisbursementError converts any error into a *DisbursementError,
// wrapping unknown errors as internal failures.
func AsDisbursementError(err error) *DisbursementError {
	if err == nil {
		return nil
	}
	var de *DisbursementError
	if errors.As(err, &de) {
		return de
	}
	return NewDisbursementError(ErrCodeInternal, "", "internal error", err)
}

// Sentinel errors
var (
	ErrMissingConfiguration = errors.New("rewards: signer, token contract and rpc url must be configured")
	ErrRecipientIsSigner    = errors.New("rewards: recipient cannot be the reward wallet")
	ErrUnknownTask          = errors.New("rewards: unknown task")
	ErrRewardMismatch       = errors.New("rewards: reward does not match policy")
)
