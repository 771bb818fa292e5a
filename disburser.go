package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/questlabs/rewards-go/ledger"
	"github.com/questlabs/rewards-go/mechanisms/evm"
	"github.com/questlabs/rewards-go/pkg/chainclient"
	"github.com/questlabs/rewards-go/replay"
)

// ChainGateway is the node access the Disburser needs.
// *chainclient.Client implements it.
type ChainGateway interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*evm.TransactionReceipt, error)
}

var _ ChainGateway = (*chainclient.Client)(nil)

// Settings identifies the reward token and the chain it lives on.
type Settings struct {
	TokenContract string
	ChainID       int64
	ExplorerURL   string
}

// Disburser turns signed reward claims into on-chain token transfers.
// It is safe for concurrent use.
type Disburser struct {
	token       common.Address
	chainID     *big.Int
	explorerURL string

	gateway   ChainGateway
	signer    evm.TxSigner
	guard     *replay.Guard
	policy    *PolicyTable
	ledger    ledger.Store
	logger    logrus.FieldLogger
	now       func() time.Time
	mode      ConfirmationMode
	attempts  int
	interval  time.Duration
	configErr error

	mu                  sync.RWMutex
	beforeHooks         []BeforeDisburseHook
	afterHooks          []AfterDisburseHook
	failureHooks        []OnDisburseFailureHook
	confirmationHooks   []OnConfirmationHook
	closed              bool
	backgroundCtx       context.Context
	cancelBackground    context.CancelFunc
	backgroundWaitGroup sync.WaitGroup
}

// NewDisburser creates a Disburser.
//
// Missing pieces (signer, gateway, token contract) do not fail construction:
// the Disburser answers every claim with a configuration error instead.
//
// Example:
//
//	d := rewards.NewDisburser(
//	    rewards.Settings{TokenContract: "0x...", ChainID: 84532},
//	    rewards.WithGateway(client),
//	    rewards.WithSigner(signer),
//	    rewards.WithReplayGuard(replay.NewGuard(replay.WithStore(store))),
//	)
//	defer d.Close()
func NewDisburser(settings Settings, opts ...Option) *Disburser {
	cfg := &config{
		now:      time.Now,
		mode:     ConfirmationBlocking,
		attempts: evm.DefaultConfirmationAttempts,
		interval: evm.DefaultConfirmationInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.guard == nil {
		cfg.guard = replay.NewGuard()
	}
	if cfg.policy == nil {
		cfg.policy = DefaultPolicyTable()
	}
	if cfg.ledger == nil {
		cfg.ledger = ledger.NewMemoryStore()
	}
	if cfg.logger == nil {
		cfg.logger = logrus.StandardLogger()
	}

	chainID := settings.ChainID
	if chainID == 0 {
		chainID = evm.ChainIDBaseSepolia.Int64()
	}

	d := &Disburser{
		chainID:     big.NewInt(chainID),
		explorerURL: settings.ExplorerURL,
		gateway:     cfg.gateway,
		signer:      cfg.signer,
		guard:       cfg.guard,
		policy:      cfg.policy,
		ledger:      cfg.ledger,
		logger:      cfg.logger,
		now:         cfg.now,
		mode:        cfg.mode,
		attempts:    cfg.attempts,
		interval:    cfg.interval,
		configErr:   cfg.configErr,
	}
	d.backgroundCtx, d.cancelBackground = context.WithCancel(context.Background())

	if d.configErr == nil {
		d.configErr = d.checkConfiguration(settings.TokenContract)
	}
	if d.configErr == nil {
		d.token, _ = evm.ParseAddress(settings.TokenContract)
	}
	return d
}

func (d *Disburser) checkConfiguration(tokenContract string) error {
	var missing []string
	if d.signer == nil {
		missing = append(missing, "signer")
	}
	if d.gateway == nil {
		missing = append(missing, "rpc gateway")
	}
	if tokenContract == "" {
		missing = append(missing, "token contract")
	} else if _, err := evm.ParseAddress(tokenContract); err != nil {
		return fmt.Errorf("%w: token contract: %v", ErrMissingConfiguration, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// ConfigurationError returns the reason claims are being refused, or nil.
func (d *Disburser) ConfigurationError() error {
	return d.configErr
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

// OnBeforeDisburse registers a hook run before validation.
func (d *Disburser) OnBeforeDisburse(hook BeforeDisburseHook) *Disburser {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beforeHooks = append(d.beforeHooks, hook)
	return d
}

// OnAfterDisburse registers a hook run after a transfer is broadcast and its outcome known.
func (d *Disburser) OnAfterDisburse(hook AfterDisburseHook) *Disburser {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.afterHooks = append(d.afterHooks, hook)
	return d
}

// OnDisburseFailure registers a hook run when a claim fails.
func (d *Disburser) OnDisburseFailure(hook OnDisburseFailureHook) *Disburser {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failureHooks = append(d.failureHooks, hook)
	return d
}

// OnConfirmation registers a hook run when a background confirmation finishes.
func (d *Disburser) OnConfirmation(hook OnConfirmationHook) *Disburser {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmationHooks = append(d.confirmationHooks, hook)
	return d
}

// ============================================================================
// Disbursement
// ============================================================================

// Disburse runs a claim through the full state machine:
//
//	Validating → Authenticating → ReplayChecking → PolicyChecking →
//	ReadingChainParams → Building → Signing → Broadcasting → Confirming
//
// On success the result outcome is Succeeded, Pending or Submitted.
// Every failure is returned as a *DisbursementError.
func (d *Disburser) Disburse(ctx context.Context, claim RewardClaim) (*DisbursementResult, error) {
	start := d.now()
	hookCtx := DisburseContext{Ctx: ctx, Claim: claim, Timestamp: start}

	d.mu.RLock()
	beforeHooks := append([]BeforeDisburseHook(nil), d.beforeHooks...)
	afterHooks := append([]AfterDisburseHook(nil), d.afterHooks...)
	d.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, d.fail(hookCtx, NewDisbursementError(ErrCodeInternal, StageValidating, "pre-disbursement hook failed", err))
		}
		if result != nil && result.Abort {
			return nil, d.fail(hookCtx, NewDisbursementError(ErrCodePolicyViolation, StageValidating, result.Reason, nil))
		}
	}

	result, err := d.disburse(ctx, claim, start)
	if err != nil {
		return nil, d.fail(hookCtx, AsDisbursementError(err))
	}

	resultCtx := DisburseResultContext{DisburseContext: hookCtx, Result: *result, Duration: d.now().Sub(start)}
	for _, hook := range afterHooks {
		_ = hook(resultCtx)
	}
	return result, nil
}

func (d *Disburser) fail(hookCtx DisburseContext, derr *DisbursementError) error {
	d.mu.RLock()
	failureHooks := append([]OnDisburseFailureHook(nil), d.failureHooks...)
	d.mu.RUnlock()

	failureCtx := DisburseFailureContext{DisburseContext: hookCtx, Error: derr, Duration: d.now().Sub(hookCtx.Timestamp)}
	for _, hook := range failureHooks {
		_ = hook(failureCtx)
	}
	return derr
}

func (d *Disburser) disburse(ctx context.Context, claim RewardClaim, now time.Time) (*DisbursementResult, error) {
	// Validating
	if d.configErr != nil {
		return nil, NewDisbursementError(ErrCodeConfiguration, StageValidating, "reward service is not configured", d.configErr)
	}
	recipient, err := validateClaim(claim)
	if err != nil {
		return nil, err
	}
	if claim.Expiry <= now.Unix() {
		return nil, NewDisbursementError(ErrCodeExpiredClaim, StageValidating, "claim has expired", nil)
	}
	if recipient == d.signer.Address() {
		return nil, NewDisbursementError(ErrCodeValidation, StageValidating, "recipient cannot be the reward wallet", ErrRecipientIsSigner)
	}

	// Authenticating
	signer, err := evm.RecoverSigner(claim.Message, claim.Signature)
	if err != nil {
		return nil, NewDisbursementError(ErrCodeAuthentication, StageAuthenticating, "invalid signature", err)
	}
	if !strings.EqualFold(signer.Hex(), recipient.Hex()) {
		return nil, NewDisbursementError(ErrCodeAuthentication, StageAuthenticating, "signature does not match wallet address",
			errors.New(evm.ErrSignatureMismatch))
	}

	// ReplayChecking
	seen, err := d.guard.Seen(ctx, claim.Address, claim.Nonce)
	if err != nil {
		return nil, NewDisbursementError(ErrCodeInternal, StageReplayChecking, "replay store unavailable", err)
	}
	if seen {
		return nil, NewDisbursementError(ErrCodeDuplicateClaim, StageReplayChecking, "claim nonce has already been used", replay.ErrDuplicateClaim)
	}

	// PolicyChecking
	amount, err := d.policy.AmountFor(claim.TaskID, claim.IsWelcomeBonus)
	if err != nil {
		return nil, NewDisbursementError(ErrCodePolicyViolation, StagePolicyChecking, "unknown task", err)
	}
	if claim.Reward != amount {
		return nil, NewDisbursementError(ErrCodePolicyViolation, StagePolicyChecking,
			fmt.Sprintf("invalid reward amount: expected %d", amount), ErrRewardMismatch)
	}
	if err := d.guard.Record(ctx, claim.Address, claim.Nonce); err != nil {
		if errors.Is(err, replay.ErrDuplicateClaim) {
			return nil, NewDisbursementError(ErrCodeDuplicateClaim, StagePolicyChecking, "claim nonce has already been used", err)
		}
		return nil, NewDisbursementError(ErrCodeInternal, StagePolicyChecking, "replay store unavailable", err)
	}

	// ReadingChainParams
	if _, err := d.gateway.BlockNumber(ctx); err != nil {
		return nil, chainFailure(StageReadingChainParams, "failed to read block number", err)
	}
	nonce, err := d.gateway.PendingNonceAt(ctx, d.signer.Address())
	if err != nil {
		return nil, chainFailure(StageReadingChainParams, "failed to read wallet nonce", err)
	}
	gasPrice, err := d.gateway.GasPrice(ctx)
	if err != nil {
		return nil, chainFailure(StageReadingChainParams, "failed to read gas price", err)
	}

	// Building
	baseUnits := evm.ToBaseUnits(amount)
	unsigned, err := evm.BuildTransfer(evm.TransferParams{
		Token:     d.token,
		Recipient: recipient,
		Amount:    baseUnits,
		Nonce:     nonce,
		GasPrice:  gasPrice,
		ChainID:   d.chainID,
	})
	if err != nil {
		return nil, NewDisbursementError(ErrCodeInternal, StageBuilding, "failed to build transfer", err)
	}

	// Signing
	signed, err := d.signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return nil, NewDisbursementError(ErrCodeSigningFailed, StageSigning, "failed to sign transaction", err)
	}

	// Broadcasting
	hash, err := d.gateway.SendRawTransaction(ctx, signed)
	if err != nil {
		if chainclient.IsAlreadyKnown(err) {
			return nil, NewDisbursementError(ErrCodeDuplicateClaim, StageBroadcasting, "transaction already submitted", err)
		}
		return nil, chainFailure(StageBroadcasting, "failed to broadcast transaction", err)
	}
	txHash := hash.Hex()

	d.logger.WithFields(logrus.Fields{
		"tx_hash":   txHash,
		"recipient": recipient.Hex(),
		"reward":    amount,
		"task_id":   claim.TaskID,
		"nonce":     nonce,
	}).Info("reward transfer broadcast")

	record := &ledger.Record{
		TxHash:       txHash,
		Recipient:    recipient.Hex(),
		TaskID:       claim.TaskID,
		WelcomeBonus: claim.IsWelcomeBonus,
		ClaimNonce:   claim.Nonce,
		Reward:       amount,
		Status:       ledger.StatusSubmitted,
	}
	if err := d.ledger.Create(context.WithoutCancel(ctx), record); err != nil {
		d.logger.WithError(err).WithField("tx_hash", txHash).Warn("failed to record disbursement")
	}

	result := &DisbursementResult{
		TxHash:          txHash,
		Amount:          amount,
		AmountBaseUnits: baseUnits,
		Recipient:       recipient.Hex(),
		Contract:        d.token.Hex(),
		ExplorerURL:     evm.ExplorerTxURL(d.explorerURL, txHash),
	}

	// Confirming
	if d.mode == ConfirmationAsync {
		d.confirmInBackground(hash)
		result.Outcome = OutcomeSubmitted
		result.Timestamp = d.now()
		return result, nil
	}

	receipt := d.awaitReceipt(ctx, hash)
	outcome, derr := d.applyReceipt(context.WithoutCancel(ctx), txHash, receipt)
	if derr != nil {
		return nil, derr
	}
	result.Outcome = outcome
	if receipt != nil {
		result.BlockNumber = receipt.BlockNumber
		result.GasUsed = receipt.GasUsed
	}
	result.Timestamp = d.now()
	return result, nil
}

// chainFailure maps a gateway error to the taxonomy: unreachable node → 503,
// node rejection → 500.
func chainFailure(stage Stage, message string, err error) *DisbursementError {
	if chainclient.IsRPCError(err) {
		var ce *chainclient.ChainError
		if errors.As(err, &ce) {
			message = message + ": " + ce.Message
		}
		return NewDisbursementError(ErrCodeChainRPC, stage, message, err)
	}
	return NewDisbursementError(ErrCodeChainUnavailable, stage, "blockchain node unavailable", err)
}
