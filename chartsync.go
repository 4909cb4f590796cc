// Package chartsync keeps a declarative trading strategy, its backtest
// results and the price chart shown to the user in sync. The heavy lifting
// (price history, indicator computation, backtest execution) lives in an
// external analytics service; this process fetches, aligns and displays.
package chartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/metric"
	"github.com/quantwise/chartsync/plot"
	"github.com/quantwise/chartsync/storage"
	"github.com/quantwise/chartsync/strategy"
)

const defaultDatabase = "chartsync.db"

// App wires the strategy, the analytics client, the chart and the
// synchronizer together.
type App struct {
	sync.Mutex
	strategy     strategy.Strategy
	analytics    core.Analytics
	chart        *plot.Chart
	chartOptions []plot.Option
	server       plot.HTTPServer
	synchronizer *Synchronizer
	storage      core.RunStorage
	notifier     core.Notifier
	telegram     core.NotifierWithStart
	log          core.Logger

	lastResult *core.BacktestResult
	lastRunErr error
}

// NewApp creates an application instance with the provided strategy and
// dependencies
func NewApp(analytics core.Analytics, str strategy.Strategy, options ...Option) (*App, error) {
	app := &App{
		analytics: analytics,
		strategy:  str,
		log:       DefaultLog,
		server:    plot.NewStandardHTTPServer(),
	}

	// Apply custom options
	for _, option := range options {
		option(app)
	}

	// Initialize chart
	if app.chart == nil {
		chart, err := plot.NewChart(app.log, app.chartOptions...)
		if err != nil {
			return nil, err
		}
		app.chart = chart
	}

	// Initialize storage
	if app.storage == nil {
		store, err := storage.FromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
		app.storage = store
	}

	app.synchronizer = NewSynchronizer(analytics, app.chart, app.log)

	return app, nil
}

// Chart returns the chart lifecycle manager.
func (a *App) Chart() *plot.Chart {
	return a.chart
}

// Strategy returns the current strategy.
func (a *App) Strategy() strategy.Strategy {
	a.Lock()
	defer a.Unlock()
	return a.strategy
}

// UpdateStrategy replaces the strategy and triggers a synchronization pass
// with the trades from the last completed backtest, if any.
func (a *App) UpdateStrategy(ctx context.Context, str strategy.Strategy) error {
	a.Lock()
	a.strategy = str
	a.Unlock()

	return a.Synchronize(ctx)
}

// Synchronize runs one chart synchronization pass with the current strategy
// and the last backtest's trade history.
func (a *App) Synchronize(ctx context.Context) error {
	a.Lock()
	str := a.strategy
	var trades []core.TradeRecord
	if a.lastResult != nil {
		trades = a.lastResult.TradeHistory
	}
	a.Unlock()

	return a.synchronizer.Synchronize(ctx, str, trades)
}

// RunBacktest submits the current strategy to the analytics service, stores
// the completed run and refreshes the chart with the resulting trades.
// Submission failures are tracked separately from chart synchronization
// failures.
func (a *App) RunBacktest(ctx context.Context) error {
	str := a.Strategy()

	if err := str.Validate(); err != nil {
		return a.failRun(err)
	}

	result, err := a.analytics.RunBacktest(ctx, str.BacktestRequest())
	if err != nil {
		return a.failRun(err)
	}

	run, err := newRun(str, result)
	if err != nil {
		return a.failRun(err)
	}

	if err := a.storage.CreateRun(ctx, run); err != nil {
		// The result is still usable when persistence fails
		a.log.WithError(err).Warn("failed to store backtest run")
	}

	a.Lock()
	a.lastResult = result
	a.lastRunErr = nil
	a.Unlock()

	if a.notifier != nil {
		a.notifier.OnBacktest(run)
	}

	err = a.synchronizer.Synchronize(ctx, str, result.TradeHistory)
	if err != nil && !errors.Is(err, core.ErrPrecondition) && !errors.Is(err, core.ErrSuperseded) {
		return err
	}

	return nil
}

// LastResult returns the result of the last successful backtest, or nil.
func (a *App) LastResult() *core.BacktestResult {
	a.Lock()
	defer a.Unlock()
	return a.lastResult
}

// LastRunError returns the failure of the last backtest submission, or nil
// if it succeeded.
func (a *App) LastRunError() error {
	a.Lock()
	defer a.Unlock()
	return a.lastRunErr
}

// LastSyncError returns the failure of the last chart synchronization pass,
// or nil if it succeeded.
func (a *App) LastSyncError() error {
	return a.synchronizer.LastError()
}

func (a *App) failRun(err error) error {
	a.log.WithError(err).Error("backtest submission failed")

	a.Lock()
	a.lastRunErr = err
	a.Unlock()

	if a.notifier != nil {
		a.notifier.OnError(err)
	}

	return err
}

// newRun snapshots a completed submission for persistence.
func newRun(str strategy.Strategy, result *core.BacktestResult) (*core.BacktestRun, error) {
	request, err := json.Marshal(str.BacktestRequest())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	return &core.BacktestRun{
		CreatedAt: time.Now().Unix(),
		Ticker:    str.Ticker,
		StartDate: str.StartDate,
		EndDate:   str.EndDate,
		Request:   request,
		Result:    payload,
	}, nil
}

// Summary displays the last backtest's trades, aggregate statistics, the
// return distribution and bootstrap confidence intervals in stdout
func (a *App) Summary() {
	a.Lock()
	result := a.lastResult
	str := a.strategy
	a.Unlock()

	if result == nil {
		fmt.Println("no backtest results yet")
		return
	}

	trades := result.TradeHistory
	wins := lo.CountBy(trades, func(t core.TradeRecord) bool { return t.PnL >= 0 })
	loses := len(trades) - wins

	returns := lo.Map(trades, func(t core.TradeRecord, _ int) float64 {
		return t.ReturnPct
	})

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Ticker", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "Sharpe", "Max DD", "Return"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{
		str.Ticker,
		strconv.Itoa(len(trades)),
		strconv.Itoa(wins),
		strconv.Itoa(loses),
		formatStat(result.WinRate, "%.1f %%"),
		fmt.Sprintf("%.3f", metric.Payoff(returns)),
		formatStat(result.ProfitFactor, "%.3f"),
		formatStat(result.SharpeRatio, "%.2f"),
		formatStat(result.MaxDrawdown, "%.1f %%"),
		formatStat(result.TotalReturn, "%.2f %%"),
	})
	table.Render()

	fmt.Println(buffer.String())
	fmt.Println("------ RETURN -------")
	returnsPercent := make([]float64, len(returns))
	for i, p := range returns {
		returnsPercent[i] = p * 100
	}
	hist := histogram.Hist(15, returnsPercent)
	histogram.Fprint(os.Stdout, hist, histogram.Linear(10))
	fmt.Println()

	fmt.Println("------ CONFIDENCE INTERVAL (95%) -------")
	returnsInterval := metric.Bootstrap(returns, metric.Mean, 10000, 0.95)
	payoffInterval := metric.Bootstrap(returns, metric.Payoff, 10000, 0.95)
	profitFactorInterval := metric.Bootstrap(returns, metric.ProfitFactor, 10000, 0.95)

	fmt.Printf("RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n",
		returnsInterval.Mean*100, returnsInterval.Lower*100, returnsInterval.Upper*100)
	fmt.Printf("PAYOFF:      %.2f (%.2f ~ %.2f)\n",
		payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
	fmt.Printf("PROF.FACTOR: %.2f (%.2f ~ %.2f)\n",
		profitFactorInterval.Mean, profitFactorInterval.Lower, profitFactorInterval.Upper)

	fmt.Println()
}

func formatStat(s core.Stat, format string) string {
	if s.IsNA() {
		return "N/A"
	}
	return fmt.Sprintf(format, float64(s))
}

// Run mounts the chart on the HTTP server, starts the notifier and serves
// until the server stops.
func (a *App) Run(ctx context.Context) error {
	a.chart.RegisterHandlers(a.server)

	if a.telegram != nil {
		a.telegram.Start()
	}

	// First pass; skipped silently when the strategy is incomplete
	if err := a.Synchronize(ctx); err != nil && !errors.Is(err, core.ErrPrecondition) {
		a.log.WithError(err).Warn("initial chart synchronization failed")
	}

	a.log.Infof("chart available at http://localhost:%d", a.chart.GetPort())
	return a.server.Start(a.chart.GetPort())
}

// Close releases the run storage.
func (a *App) Close() error {
	return a.storage.Close()
}
