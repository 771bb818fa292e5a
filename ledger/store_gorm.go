package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore persists records through GORM (PostgreSQL in production, SQLite for local runs).
type GormStore struct {
	db *gorm.DB
}

// Open connects to the database named by dsn.
//
// DSNs starting with "sqlite://" or "file:", or ending in ".db", use the pure-Go
// SQLite driver. Anything else is handed to the PostgreSQL driver.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the schema and returns a store backed by db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Create inserts a new record.
func (s *GormStore) Create(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.TxHash = normalizeHash(record.TxHash)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("ledger: create %s: %w", record.TxHash, err)
	}
	return nil
}

// Update applies a status transition.
func (s *GormStore) Update(ctx context.Context, txHash string, update Update) error {
	res := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("tx_hash = ?", normalizeHash(txHash)).
		Updates(map[string]interface{}{
			"status":       update.Status,
			"block_number": update.BlockNumber,
			"gas_used":     update.GasUsed,
		})
	if res.Error != nil {
		return fmt.Errorf("ledger: update %s: %w", txHash, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads the record for txHash.
func (s *GormStore) Get(ctx context.Context, txHash string) (*Record, error) {
	var record Record
	err := s.db.WithContext(ctx).First(&record, "tx_hash = ?", normalizeHash(txHash)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", txHash, err)
	}
	return &record, nil
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)
