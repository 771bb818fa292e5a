package rewards

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xeipuuv/gojsonschema"

	"github.com/questlabs/rewards-go/mechanisms/evm"
)

//go:embed claim_schema.json
var claimSchemaJSON []byte

var (
	claimSchemaOnce sync.Once
	claimSchema     *gojsonschema.Schema
	claimSchemaErr  error
)

func loadClaimSchema() (*gojsonschema.Schema, error) {
	claimSchemaOnce.Do(func() {
		claimSchema, claimSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(claimSchemaJSON))
	})
	return claimSchema, claimSchemaErr
}

// DecodeClaim validates a JSON request body against the claim schema and decodes it.
// Failures are returned as validation errors.
func DecodeClaim(body []byte) (*RewardClaim, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, NewDisbursementError(ErrCodeValidation, StageValidating, "request body is required", nil)
	}

	schema, err := loadClaimSchema()
	if err != nil {
		return nil, NewDisbursementError(ErrCodeInternal, StageValidating, "claim schema unavailable", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, NewDisbursementError(ErrCodeValidation, StageValidating, "request body is not valid JSON", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		sort.Strings(problems)
		return nil, NewDisbursementError(ErrCodeValidation, StageValidating, "invalid claim: "+strings.Join(problems, "; "), nil)
	}

	var claim RewardClaim
	if err := json.Unmarshal(body, &claim); err != nil {
		return nil, NewDisbursementError(ErrCodeValidation, StageValidating, "invalid claim", err)
	}
	return &claim, nil
}

// validateClaim performs the structural checks that do not depend on time,
// configuration or the chain, and returns the parsed recipient.
func validateClaim(claim RewardClaim) (common.Address, error) {
	var missing []string
	if claim.Address == "" {
		missing = append(missing, "address")
	}
	if claim.Message == "" {
		missing = append(missing, "message")
	}
	if claim.Signature == "" {
		missing = append(missing, "signature")
	}
	if claim.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if claim.Expiry == 0 {
		missing = append(missing, "expiry")
	}
	if claim.Reward == 0 {
		missing = append(missing, "reward")
	}
	if claim.TaskID == "" && !claim.IsWelcomeBonus {
		missing = append(missing, "taskId")
	}
	if len(missing) > 0 {
		return common.Address{}, NewDisbursementError(ErrCodeValidation, StageValidating,
			"missing required fields: "+strings.Join(missing, ", "), nil)
	}

	recipient, err := evm.ParseAddress(claim.Address)
	if err != nil {
		return common.Address{}, NewDisbursementError(ErrCodeValidation, StageValidating, "invalid wallet address", err)
	}
	if claim.Reward < 0 {
		return common.Address{}, NewDisbursementError(ErrCodeValidation, StageValidating, "reward must be positive", errors.New(evm.ErrAmountOutOfRange))
	}
	return recipient, nil
}
