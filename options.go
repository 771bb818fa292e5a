package rewards

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/questlabs/rewards-go/ledger"
	"github.com/questlabs/rewards-go/mechanisms/evm"
	"github.com/questlabs/rewards-go/replay"
)

// config holds the configuration for Disburser.
type config struct {
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
}

// Option configures a Disburser.
type Option func(*config)

// WithGateway sets the chain gateway used for reads, broadcast and receipts.
func WithGateway(gateway ChainGateway) Option {
	return func(c *config) {
		c.gateway = gateway
	}
}

// WithSigner sets the reward wallet signer.
func WithSigner(signer evm.TxSigner) Option {
	return func(c *config) {
		c.signer = signer
	}
}

// WithReplayGuard sets the replay guard.
//
// If not specified, a guard over an in-memory store with the default TTL is used.
func WithReplayGuard(guard *replay.Guard) Option {
	return func(c *config) {
		c.guard = guard
	}
}

// WithPolicyTable overrides the built-in reward table.
func WithPolicyTable(policy *PolicyTable) Option {
	return func(c *config) {
		c.policy = policy
	}
}

// WithLedger sets where broadcast transfers are recorded.
//
// If not specified, an in-memory ledger is used.
func WithLedger(store ledger.Store) Option {
	return func(c *config) {
		c.ledger = store
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock overrides the time source used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithConfirmation sets the confirmation mode and receipt polling bounds.
// Non-positive attempts or interval keep the defaults (60 attempts, 1s apart).
func WithConfirmation(mode ConfirmationMode, attempts int, interval time.Duration) Option {
	return func(c *config) {
		if mode != "" {
			c.mode = mode
		}
		if attempts > 0 {
			c.attempts = attempts
		}
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithConfigurationError marks the Disburser as misconfigured. Every claim
// is then rejected with a configuration error while the process stays up.
func WithConfigurationError(err error) Option {
	return func(c *config) {
		c.configErr = err
	}
}
