// Package metric provides the statistics used by backtest summaries.
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of average wins to average losses.
// Returns the absolute value of the ratio.
func Payoff(values []float64) float64 {
	wins, losses := partitionTradeResults(values)

	if len(losses) == 0 {
		return 10 // Default value when no losses
	}

	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)

	if avgLoss == 0 {
		return 10 // Prevent division by zero
	}

	return math.Abs(avgWin / avgLoss)
}

// ProfitFactor calculates the ratio of total profits to total losses.
// Returns the absolute value of the ratio.
func ProfitFactor(values []float64) float64 {
	var (
		totalWins   float64
		totalLosses float64
	)

	for _, value := range values {
		if value >= 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return 10 // Default value when no losses
	}

	return math.Abs(totalWins / totalLosses)
}

// WinRate returns the percentage of non-negative results.
func WinRate(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	wins := 0
	for _, value := range values {
		if value >= 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(values)) * 100
}

// Sharpe returns the annualized Sharpe ratio of a daily return series with
// a zero risk-free rate. NaN when the series has no variance.
func Sharpe(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return math.NaN()
	}

	mean, stdDev := stat.MeanStdDev(dailyReturns, nil)
	if stdDev == 0 {
		return math.NaN()
	}

	return mean / stdDev * math.Sqrt(252)
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity
// curve, as a negative percentage.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	worst := 0.0

	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdown := (value - peak) / peak * 100
			if drawdown < worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// partitionTradeResults separates trading results into wins and losses.
func partitionTradeResults(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value >= 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value)) // Store absolute values of losses
		}
	}
	return wins, losses
}
