package simulator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/metric"
)

const defaultInitialCash = 10_000.0

// evaluator holds the computed series every condition needs, keyed by
// request identity ("SMA_20").
type evaluator struct {
	series map[string][]float64
}

func buildEvaluator(bars []core.PriceBar, conditions []core.Condition) (*evaluator, error) {
	e := &evaluator{series: make(map[string][]float64)}

	for _, cond := range conditions {
		if cond.Indicator == "" || cond.Period <= 0 {
			return nil, fmt.Errorf("invalid condition on %q", cond.Indicator)
		}
		if !cond.Comparison.Valid() {
			return nil, fmt.Errorf("invalid comparison %q", cond.Comparison)
		}

		key := core.IndicatorRequest{Indicator: cond.Indicator, Period: cond.Period}.Key()
		if err := e.ensure(bars, key); err != nil {
			return nil, err
		}

		if mode, ok := cond.Mode().(core.SelfReferencing); ok {
			if mode.Reference == "" {
				return nil, fmt.Errorf("condition on %s requires a reference series", cond.Indicator)
			}
			if err := e.ensure(bars, mode.Reference); err != nil {
				return nil, err
			}
		}
	}

	return e, nil
}

// ensure computes and caches the series behind a request key.
func (e *evaluator) ensure(bars []core.PriceBar, key string) error {
	if _, ok := e.series[key]; ok {
		return nil
	}

	indicator, period, err := parseKey(key)
	if err != nil {
		return err
	}

	values, err := computeIndicator(indicator, bars, period)
	if err != nil {
		return err
	}

	e.series[key] = values
	return nil
}

// holds reports whether the condition is true at bar index i. Warmup
// samples without a defined value never satisfy a condition.
func (e *evaluator) holds(cond core.Condition, i int) bool {
	key := core.IndicatorRequest{Indicator: cond.Indicator, Period: cond.Period}.Key()
	lhs := e.series[key][i]

	var rhs float64
	switch mode := cond.Mode().(type) {
	case core.SelfReferencing:
		rhs = e.series[mode.Reference][i]
	case core.Thresholded:
		rhs = mode.Value
	}

	if !valid(lhs) || !valid(rhs) {
		return false
	}

	switch cond.Comparison {
	case core.CompareGreater:
		return lhs > rhs
	case core.CompareLess:
		return lhs < rhs
	case core.CompareEqual:
		return math.Abs(lhs-rhs) < 1e-9
	}
	return false
}

func parseKey(key string) (indicator string, period int, err error) {
	idx := strings.LastIndexByte(key, '_')
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid series reference %q", key)
	}

	period, err = strconv.Atoi(key[idx+1:])
	if err != nil || period <= 0 {
		return "", 0, fmt.Errorf("invalid series reference %q", key)
	}

	return key[:idx], period, nil
}

// runBacktest executes the rule set over the bars: enter at the close of a
// bar where every entry condition holds, exit at the close of a bar where
// any exit condition holds. One position at a time, long only.
func runBacktest(bars []core.PriceBar, req core.BacktestRequest) (*core.BacktestResult, error) {
	eval, err := buildEvaluator(bars, append(append([]core.Condition{}, req.Params.Conditions...), req.Params.Exits...))
	if err != nil {
		return nil, err
	}

	initialCash := req.InitialCash
	if initialCash <= 0 {
		initialCash = defaultInitialCash
	}

	var (
		cash     = initialCash
		shares   = 0.0
		entryBar = -1
		trades   []core.TradeRecord
		equity   = make([]float64, 0, len(bars))
	)

	for i, bar := range bars {
		inPosition := shares > 0

		if !inPosition && allHold(eval, req.Params.Conditions, i) {
			stake := cash
			if req.Params.FixedCashPerTrade > 0 {
				stake = math.Min(req.Params.FixedCashPerTrade, cash)
			}

			if stake > 0 && bar.Close > 0 {
				shares = stake / bar.Close
				cash -= stake
				cash -= stake * req.Commission
				entryBar = i
			}
		} else if inPosition && anyHolds(eval, req.Params.Exits, i) {
			proceeds := shares * bar.Close
			cash += proceeds - proceeds*req.Commission

			trades = append(trades, closedTrade(bars, entryBar, i, shares, req.Commission))
			shares = 0
			entryBar = -1
		}

		equity = append(equity, cash+shares*bar.Close)
	}

	// A position still open at the end of the range stays open: entry
	// fields only, no exit
	if shares > 0 {
		entry := bars[entryBar]
		trades = append(trades, core.TradeRecord{
			EntryTime:  entry.Date,
			EntryPrice: entry.Close,
			Size:       shares,
			EntryBar:   entryBar,
			Duration:   len(bars) - 1 - entryBar,
		})
	}

	return buildResult(initialCash, equity, trades), nil
}

func allHold(eval *evaluator, conditions []core.Condition, i int) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, cond := range conditions {
		if !eval.holds(cond, i) {
			return false
		}
	}
	return true
}

func anyHolds(eval *evaluator, conditions []core.Condition, i int) bool {
	for _, cond := range conditions {
		if eval.holds(cond, i) {
			return true
		}
	}
	return false
}

func closedTrade(bars []core.PriceBar, entryBar, exitBar int, shares, commission float64) core.TradeRecord {
	entry := bars[entryBar]
	exit := bars[exitBar]

	gross := (exit.Close - entry.Close) * shares
	fees := (entry.Close + exit.Close) * shares * commission

	return core.TradeRecord{
		EntryTime:  entry.Date,
		ExitTime:   exit.Date,
		EntryPrice: entry.Close,
		ExitPrice:  exit.Close,
		Size:       shares,
		PnL:        gross - fees,
		ReturnPct:  (exit.Close - entry.Close) / entry.Close,
		EntryBar:   entryBar,
		ExitBar:    exitBar,
		Duration:   exitBar - entryBar,
	}
}

func buildResult(initialCash float64, equity []float64, trades []core.TradeRecord) *core.BacktestResult {
	pnls := make([]float64, 0, len(trades))
	for _, trade := range trades {
		if trade.Closed() {
			pnls = append(pnls, trade.PnL)
		}
	}

	finalEquity := initialCash
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1]
	}

	dailyReturns := make([]float64, 0, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			dailyReturns = append(dailyReturns, equity[i]/equity[i-1]-1)
		}
	}

	result := &core.BacktestResult{
		TotalReturn:  core.Stat((finalEquity/initialCash - 1) * 100),
		SharpeRatio:  core.Stat(metric.Sharpe(dailyReturns)),
		MaxDrawdown:  core.Stat(metric.MaxDrawdown(equity)),
		TradeHistory: trades,
	}

	if len(pnls) > 0 {
		result.WinRate = core.Stat(metric.WinRate(pnls))
		result.ProfitFactor = core.Stat(metric.ProfitFactor(pnls))
	} else {
		result.WinRate = core.Stat(math.NaN())
		result.ProfitFactor = core.Stat(math.NaN())
	}

	return result
}
