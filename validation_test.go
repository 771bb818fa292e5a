package rewards

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClaim(t *testing.T) {
	body := []byte(`{
		"taskId": "connect_wallet",
		"address": "0x1111111111111111111111111111111111111111",
		"message": "Claim 10 tokens",
		"signature": "0xabcdef",
		"nonce": "n-1",
		"expiry": 1700000300,
		"reward": 10
	}`)

	claim, err := DecodeClaim(body)
	require.NoError(t, err)
	assert.Equal(t, "connect_wallet", claim.TaskID)
	assert.Equal(t, int64(1700000300), claim.Expiry)
	assert.Equal(t, int64(10), claim.Reward)
	assert.False(t, claim.IsWelcomeBonus)
}

func TestDecodeClaimRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `{"address":`},
		{"missing fields", `{"address": "0x1111111111111111111111111111111111111111"}`},
		{"bad address", `{"address":"0x11","message":"m","signature":"0xab","nonce":"n","expiry":1,"reward":1}`},
		{"non-hex signature", `{"address":"0x1111111111111111111111111111111111111111","message":"m","signature":"zz","nonce":"n","expiry":1,"reward":1}`},
		{"string reward", `{"address":"0x1111111111111111111111111111111111111111","message":"m","signature":"0xab","nonce":"n","expiry":1,"reward":"10"}`},
		{"fractional expiry", `{"address":"0x1111111111111111111111111111111111111111","message":"m","signature":"0xab","nonce":"n","expiry":1.5,"reward":1}`},
		{"empty message", `{"address":"0x1111111111111111111111111111111111111111","message":"","signature":"0xab","nonce":"n","expiry":1,"reward":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClaim([]byte(tt.body))
			derr := AsDisbursementError(err)
			require.NotNil(t, derr)
			assert.Equal(t, ErrCodeValidation, derr.Code)
			assert.Equal(t, http.StatusBadRequest, derr.HTTPStatus())
		})
	}
}

func TestValidateClaimRequiresTaskUnlessWelcomeBonus(t *testing.T) {
	claim := RewardClaim{
		Address:   "0x1111111111111111111111111111111111111111",
		Message:   "m",
		Signature: "0xab",
		Nonce:     "n",
		Expiry:    1,
		Reward:    100,
	}

	_, err := validateClaim(claim)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taskId")

	claim.IsWelcomeBonus = true
	_, err = validateClaim(claim)
	assert.NoError(t, err)

	claim.Reward = -5
	_, err = validateClaim(claim)
	assert.Error(t, err)
}
