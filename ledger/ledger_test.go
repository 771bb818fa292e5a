package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

const testHash = "0x8f3a2b0e4c1d5f6a7b8c9d0e1f2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c"

func TestStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := &Record{
				TxHash:     testHash,
				Recipient:  "0x1111111111111111111111111111111111111111",
				TaskID:     "daily_checkin",
				ClaimNonce: "n-1",
				Reward:     5,
				Status:     StatusSubmitted,
			}
			require.NoError(t, store.Create(ctx, record))
			assert.NotEmpty(t, record.ID)

			got, err := store.Get(ctx, testHash)
			require.NoError(t, err)
			assert.Equal(t, StatusSubmitted, got.Status)
			assert.Equal(t, "daily_checkin", got.TaskID)
			assert.Equal(t, int64(5), got.Reward)

			require.NoError(t, store.Update(ctx, testHash, Update{Status: StatusConfirmed, BlockNumber: 42, GasUsed: 51234}))

			got, err = store.Get(ctx, testHash)
			require.NoError(t, err)
			assert.Equal(t, StatusConfirmed, got.Status)
			assert.Equal(t, uint64(42), got.BlockNumber)
			assert.Equal(t, uint64(51234), got.GasUsed)
			assert.True(t, got.Status.Final())
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "0xmissing")
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.Update(ctx, "0xmissing", Update{Status: StatusPending})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsDuplicateHash(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Create(ctx, &Record{TxHash: testHash, Recipient: "0x01", Status: StatusSubmitted}))
			assert.Error(t, store.Create(ctx, &Record{TxHash: testHash, Recipient: "0x01", Status: StatusSubmitted}))
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &Record{TxHash: testHash, Status: StatusSubmitted}))

	got, _ := store.Get(ctx, testHash)
	got.Status = StatusReverted

	again, _ := store.Get(ctx, testHash)
	assert.Equal(t, StatusSubmitted, again.Status)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &Record{TxHash: testHash, Status: StatusSubmitted}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(block uint64) {
			defer wg.Done()
			_ = store.Update(ctx, testHash, Update{Status: StatusConfirmed, BlockNumber: block})
			_, _ = store.Get(ctx, testHash)
		}(uint64(i))
	}
	wg.Wait()

	got, err := store.Get(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestStatusFinal(t *testing.T) {
	assert.False(t, StatusSubmitted.Final())
	assert.False(t, StatusPending.Final())
	assert.True(t, StatusConfirmed.Final())
	assert.True(t, StatusReverted.Final())
}
