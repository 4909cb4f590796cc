// Package storage persists completed backtest runs. Two backends are
// provided: an embedded key-value store (BuntDB) and a SQL database via
// GORM.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/quantwise/chartsync/core"
	"github.com/tidwall/buntdb"
)

// DefaultIndexName is the default index used for run retrieval
const DefaultIndexName = "created_index"

// BuntStorage implements core.RunStorage using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		SyncPolicy: buntdb.Never,
	}
}

// FromMemory creates an in-memory storage with default configuration
func FromMemory() (core.RunStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// FromFile creates a file-based storage with default configuration
func FromFile(file string) (core.RunStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a new BuntDB storage instance with the specified configuration
func NewBuntStorage(sourceFile string, config BuntConfig) (core.RunStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	// Default index orders runs by creation time
	if err := db.CreateIndex(DefaultIndexName, "*", buntdb.IndexJSON("created_at")); err != nil {
		return nil, fmt.Errorf("failed to create default index: %w", err)
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// getID generates a unique ID for runs
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// CreateRun stores a completed backtest run
func (b *BuntStorage) CreateRun(_ context.Context, run *core.BacktestRun) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if run.ID == 0 {
			run.ID = b.getID()
		}

		content, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}

		key := strconv.FormatInt(run.ID, 10)
		_, _, err = tx.Set(key, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}

		return nil
	})
}

// Runs retrieves runs from the database based on provided filters,
// oldest first
func (b *BuntStorage) Runs(_ context.Context, filters ...core.RunFilter) ([]*core.BacktestRun, error) {
	runs := make([]*core.BacktestRun, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend(DefaultIndexName, func(key, value string) bool {
			var run core.BacktestRun
			if err := json.Unmarshal([]byte(value), &run); err != nil {
				log.Printf("Failed to unmarshal run %s: %v", key, err)
				return true // Continue iteration
			}

			// Apply all filters
			for _, filter := range filters {
				if !filter(run) {
					return true // Skip this run and continue iteration
				}
			}

			runs = append(runs, &run)
			return true
		})

		if err != nil {
			return fmt.Errorf("failed to iterate over runs: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	return runs, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
