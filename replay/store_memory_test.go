package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore()
	store.nowFunc = clock.Now
	return store, clock
}

func TestKeyLowercasesAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef:n1", Key("0xAbCdEf", "n1"))
	assert.Equal(t, Key("0xABCDEF", "n1"), Key("0xabcdef", "n1"))
	assert.NotEqual(t, Key("0xabcdef", "n1"), Key("0xabcdef", "N1"))
}

func TestMemoryStoreMarkIfAbsent(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()

	ok, err := store.MarkIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	present, err := store.Contains(ctx, "k")
	require.NoError(t, err)
	assert.True(t, present)

	present, _ = store.Contains(ctx, "other")
	assert.False(t, present)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()

	_, _ = store.MarkIfAbsent(ctx, "k", 10*time.Minute)

	clock.Advance(9 * time.Minute)
	present, _ := store.Contains(ctx, "k")
	assert.True(t, present)

	clock.Advance(time.Minute)
	present, _ = store.Contains(ctx, "k")
	assert.False(t, present, "expired entries are treated as absent")

	ok, _ := store.MarkIfAbsent(ctx, "k", 10*time.Minute)
	assert.True(t, ok, "expired entry can be recorded again")
}

func TestMemoryStoreSweep(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()

	_, _ = store.MarkIfAbsent(ctx, "old", time.Minute)
	clock.Advance(30 * time.Second)
	_, _ = store.MarkIfAbsent(ctx, "new", time.Minute)

	removed, err := store.Sweep(ctx, clock.Now().Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	present, _ := store.Contains(ctx, "new")
	assert.True(t, present)
}

func TestMemoryStoreConcurrentMark(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkIfAbsent(ctx, "0xabc:nonce", time.Minute); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}
