package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/quantwise/chartsync/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements core.RunStorage using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// FromSQLite creates a new SQLite storage instance with default configuration
func FromSQLite(dbPath string, opts ...gorm.Option) (core.RunStorage, error) {
	return NewFromSQLite(dbPath, DefaultConfig(), opts...)
}

// NewFromSQLite creates a new SQLite storage instance
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (core.RunStorage, error) {
	dialect := sqlite.Open(dbPath)
	return newFromSQL(dialect, config, opts...)
}

// newFromSQL creates a new SQL storage instance with the specified configuration
func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (core.RunStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Auto migrate the run model
	if err = db.AutoMigrate(&core.BacktestRun{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// CreateRun stores a completed backtest run
func (s *SQLStorage) CreateRun(ctx context.Context, run *core.BacktestRun) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(run); result.Error != nil {
		return fmt.Errorf("failed to create run: %w", result.Error)
	}
	return nil
}

// Runs retrieves runs from the SQL database based on provided filters,
// oldest first
func (s *SQLStorage) Runs(ctx context.Context, filters ...core.RunFilter) ([]*core.BacktestRun, error) {
	tx := s.db.WithContext(ctx)

	var runs []*core.BacktestRun
	if result := tx.Order("created_at").Find(&runs); result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to fetch runs: %w", result.Error)
	}

	// Filters are plain predicates, applied in memory
	if len(filters) > 0 {
		runs = lo.Filter(runs, func(run *core.BacktestRun, _ int) bool {
			for _, filter := range filters {
				if !filter(*run) {
					return false
				}
			}
			return true
		})
	}

	return runs, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
