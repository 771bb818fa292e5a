package rewards

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisbursementErrorStatus(t *testing.T) {
	tests := map[string]int{
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
		"something_new":            http.StatusInternalServerError,
	}
	for code, status := range tests {
		err := NewDisbursementError(code, StageValidating, "msg", nil)
		assert.Equal(t, status, err.HTTPStatus(), code)
	}
}

func TestDisbursementErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewDisbursementError(ErrCodeChainRPC, StageBroadcasting, "failed", cause))

	assert.ErrorIs(t, err, cause)
	derr := AsDisbursementError(err)
	assert.Equal(t, ErrCodeChainRPC, derr.Code)
	assert.Equal(t, StageBroadcasting, derr.Stage)
	assert.Equal(t, "chain_rpc_error: failed: boom", derr.Error())

	plain := AsDisbursementError(errors.New("unexpected"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Nil(t, AsDisbursementError(nil))
}
