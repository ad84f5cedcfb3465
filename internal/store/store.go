package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Status is the lifecycle state of the persisted bot row. Idle has no row.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// BotConfig is the durable record of the current (or last) trading job.
// One logical row, keyed by symbol; at most one row is running at a time.
type BotConfig struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Symbol         string          `gorm:"uniqueIndex;not null" json:"symbol"`
	Status         Status          `gorm:"not null" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,8)" json:"initial_balance"`
	LongInterval   int             `json:"long_interval"`
	ShortInterval  int             `json:"short_interval"`
	TradeAmount    decimal.Decimal `gorm:"type:decimal(20,8)" json:"trade_amount"`
	Strategy       string          `json:"strategy"`
}

// TableName pins the table name instead of gorm's pluralized default
func (BotConfig) TableName() string { return "bot" }

// PersistenceError wraps store read/write failures; the HTTP layer maps it
// to a 500
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Repository is the typed access layer over the bot row
type Repository interface {
	GetRunning(ctx context.Context) (*BotConfig, error)
	Get(ctx context.Context, symbol string) (*BotConfig, error)
	Replace(ctx context.Context, cfg *BotConfig) error
	SetStatus(ctx context.Context, symbol string, status Status) error
	StopAll(ctx context.Context) error
}

// Store implements Repository on gorm
type Store struct {
	db *gorm.DB
}

// Open opens the sqlite database at path and migrates the schema
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&BotConfig{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

// New creates a Store over an open gorm handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetRunning returns the running row, or nil when no job is running
func (s *Store) GetRunning(ctx context.Context) (*BotConfig, error) {
	var cfg BotConfig
	err := s.db.WithContext(ctx).Where("status = ?", StatusRunning).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get running", Err: err}
	}
	return &cfg, nil
}

// Get returns the row for symbol, or nil when none exists
func (s *Store) Get(ctx context.Context, symbol string) (*BotConfig, error) {
	var cfg BotConfig
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return &cfg, nil
}

// Replace atomically replaces any existing row for cfg.Symbol with a fresh
// one. Last writer wins; nothing from a previous row is merged.
func (s *Store) Replace(ctx context.Context, cfg *BotConfig) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("symbol = ?", cfg.Symbol).Delete(&BotConfig{}).Error; err != nil {
			return err
		}
		cfg.ID = 0
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = time.Now().UTC()
		}
		return tx.Create(cfg).Error
	})
	if err != nil {
		return &PersistenceError{Op: "replace", Err: err}
	}
	return nil
}

// SetStatus updates the status of the row for symbol
func (s *Store) SetStatus(ctx context.Context, symbol string, status Status) error {
	err := s.db.WithContext(ctx).
		Model(&BotConfig{}).
		Where("symbol = ?", symbol).
		Update("status", status).Error
	if err != nil {
		return &PersistenceError{Op: "set status", Err: err}
	}
	return nil
}

// StopAll marks every running row stopped
func (s *Store) StopAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Model(&BotConfig{}).
		Where("status = ?", StatusRunning).
		Update("status", StatusStopped).Error
	if err != nil {
		return &PersistenceError{Op: "stop all", Err: err}
	}
	return nil
}
