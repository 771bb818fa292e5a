package replay

import (
	"context"
	"strings"
	"time"
)

// Store defines the interface for claim replay storage.
// Implementations must be safe for concurrent use.
//
// The interface supports both an in-process map and shared backends (Redis)
// so several service instances can enforce one claim per (address, nonce).
type Store interface {
	// MarkIfAbsent atomically records key for ttl.
	//
	// Returns:
	//   - true if the key was absent (or expired) and is now recorded
	//   - false if an unexpired record already exists
	MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Contains reports whether an unexpired record exists for key.
	Contains(ctx context.Context, key string) (bool, error)

	// Sweep evicts records whose TTL has elapsed as of now and returns how
	// many were removed. Backends with native expiry may return 0.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Key builds the replay key for a claim. The address is lowercased so the
// same wallet in different checksum casings maps to one key.
func Key(address, nonce string) string {
	return strings.ToLower(address) + ":" + nonce
}
