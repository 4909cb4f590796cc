package core

import (
	"context"
)

// RunFilter defines a function type for filtering stored backtest runs
type RunFilter func(run BacktestRun) bool

// RunStorage defines the interface for backtest run persistence
type RunStorage interface {
	// CreateRun stores a completed backtest run
	CreateRun(ctx context.Context, run *BacktestRun) error

	// Runs retrieves runs based on provided filters, oldest first
	Runs(ctx context.Context, filters ...RunFilter) ([]*BacktestRun, error)

	Close() error
}

func WithTicker(ticker string) RunFilter {
	return func(run BacktestRun) bool {
		return run.Ticker == ticker
	}
}

func WithCreatedAfter(unix int64) RunFilter {
	return func(run BacktestRun) bool {
		return run.CreatedAt >= unix
	}
}
