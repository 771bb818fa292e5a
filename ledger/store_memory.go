package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func normalizeHash(txHash string) string {
	return strings.ToLower(txHash)
}

// Create stores a copy of record, assigning an ID and timestamps when unset.
func (s *MemoryStore) Create(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeHash(record.TxHash)
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("ledger: record for %s already exists", record.TxHash)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	stored := *record
	s.records[key] = &stored
	return nil
}

// Update applies a status transition.
func (s *MemoryStore) Update(_ context.Context, txHash string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[normalizeHash(txHash)]
	if !ok {
		return ErrNotFound
	}
	record.Status = update.Status
	record.BlockNumber = update.BlockNumber
	record.GasUsed = update.GasUsed
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the record for txHash.
func (s *MemoryStore) Get(_ context.Context, txHash string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[normalizeHash(txHash)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *record
	return &out, nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
