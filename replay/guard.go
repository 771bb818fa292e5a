package replay

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a consumed (address, nonce) pair is remembered.
const DefaultTTL = 10 * time.Minute

// ErrDuplicateClaim is returned by Record when the pair was already consumed.
var ErrDuplicateClaim = errors.New("replay: claim nonce already used")

// config holds the configuration for Guard.
type config struct {
	ttl   time.Duration
	store Store
	now   func() time.Time
}

// Option configures a Guard.
type Option func(*config)

// WithTTL sets how long consumed nonces are remembered.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithStore sets a custom store implementation.
//
// Use this for shared backends (Redis) in multi-instance deployments.
// If not specified, a MemoryStore is used.
func WithStore(store Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithClock overrides the time source used for sweeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Guard enforces single use of (address, nonce) pairs within the TTL window.
type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewGuard creates a replay guard.
//
// Example:
//
//	guard := replay.NewGuard(
//	    replay.WithTTL(10*time.Minute),
//	    replay.WithStore(replay.NewRedisStore(client, "")),
//	)
func NewGuard(opts ...Option) *Guard {
	cfg := &config{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemoryStore()
	}
	return &Guard{store: cfg.store, ttl: cfg.ttl, now: cfg.now}
}

// TTL returns the replay window.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Seen is the non-mutating fast path: it reports whether the pair is
// currently recorded. A false result does not reserve the pair.
func (g *Guard) Seen(ctx context.Context, address, nonce string) (bool, error) {
	return g.store.Contains(ctx, Key(address, nonce))
}

// Record atomically consumes the pair. Exactly one concurrent caller
// succeeds; the others get ErrDuplicateClaim.
func (g *Guard) Record(ctx context.Context, address, nonce string) error {
	ok, err := g.store.MarkIfAbsent(ctx, Key(address, nonce), g.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateClaim
	}
	return nil
}

// Sweep evicts expired records from the store.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	return g.store.Sweep(ctx, g.now())
}
