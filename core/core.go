package core

import (
	"context"
)

// Analytics is the external service that owns price history, indicator
// computation and backtest execution. This process never computes any of
// those itself; it only fetches and displays.
type Analytics interface {
	// PriceSeries returns daily OHLC bars for the ticker between start and
	// end (inclusive), in chronological order.
	PriceSeries(ctx context.Context, ticker, startDate, endDate string) ([]PriceBar, error)

	// IndicatorSeries returns the scalar series for one (indicator, period)
	// pair over the same range. Points arrive in the service's raw wire form
	// and must be normalized before charting.
	IndicatorSeries(ctx context.Context, ticker string, req IndicatorRequest, startDate, endDate string) ([]RawIndicatorPoint, error)

	// RunBacktest submits the strategy for evaluation and returns aggregate
	// statistics plus the individual trades.
	RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error)
}

type Notifier interface {
	Notify(string)
	OnBacktest(run *BacktestRun)
	OnError(err error)
}

type NotifierWithStart interface {
	Notifier
	Start()
}
