package simulator

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/quantwise/chartsync/analytics"
	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{ core.Logger }

func (nopLogger) Debug(...any)          {}
func (nopLogger) Error(...any)          {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}

func newTestClient(t *testing.T) (*analytics.Client, *Service) {
	t.Helper()

	service := New(nopLogger{}, WithSeed(42))
	server := httptest.NewServer(service)
	t.Cleanup(server.Close)

	return analytics.NewClient(server.URL, nopLogger{}), service
}

func TestPriceData_Deterministic(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.PriceSeries(ctx, "AAPL", "2024-01-01", "2024-03-31")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := client.PriceSeries(ctx, "AAPL", "2024-01-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := client.PriceSeries(ctx, "MSFT", "2024-01-01", "2024-03-31")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestPriceData_SkipsWeekends(t *testing.T) {
	client, _ := newTestClient(t)

	// 2024-01-06 and 2024-01-07 are a weekend
	bars, err := client.PriceSeries(context.Background(), "AAPL", "2024-01-05", "2024-01-08")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-05", bars[0].Date)
	assert.Equal(t, "2024-01-08", bars[1].Date)
}

func TestPriceData_InvalidDate(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.PriceSeries(context.Background(), "AAPL", "garbage", "2024-03-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestIndicatorData(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	bars, err := client.PriceSeries(ctx, "AAPL", "2024-01-01", "2024-03-31")
	require.NoError(t, err)

	points, err := client.IndicatorSeries(ctx, "AAPL", core.IndicatorRequest{Indicator: "SMA", Period: 20}, "2024-01-01", "2024-03-31")
	require.NoError(t, err)

	// Warmup samples are withheld, the rest align with price days
	require.Len(t, points, len(bars)-20)
	assert.Equal(t, bars[20].Date, points[0].Timestamp())

	for _, p := range points {
		assert.NotZero(t, p.Value)
	}
}

func TestIndicatorData_Unsupported(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.IndicatorSeries(context.Background(), "AAPL", core.IndicatorRequest{Indicator: "MACD", Period: 12}, "2024-01-01", "2024-03-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported indicator")
}

func TestRunBacktest(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.RunBacktest(context.Background(), core.BacktestRequest{
		Ticker:      "AAPL",
		StartDate:   "2023-01-01",
		EndDate:     "2024-06-30",
		InitialCash: 10000,
		Commission:  0.001,
		Params: core.BacktestParams{
			Conditions: []core.Condition{
				{Indicator: "SMA", Period: 10, Comparison: core.CompareGreater, Reference: "SMA_30"},
			},
			Exits: []core.Condition{
				{Indicator: "SMA", Period: 10, Comparison: core.CompareLess, Reference: "SMA_30"},
			},
		},
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.TradeHistory)
	assert.False(t, result.TotalReturn.IsNA())
	assert.False(t, result.MaxDrawdown.IsNA())
	assert.LessOrEqual(t, float64(result.MaxDrawdown), 0.0)

	for i, trade := range result.TradeHistory {
		assert.Positive(t, trade.EntryPrice)
		assert.Positive(t, trade.Size)

		// Only the last trade may still be open
		if i < len(result.TradeHistory)-1 {
			assert.True(t, trade.Closed())
			assert.GreaterOrEqual(t, trade.ExitBar, trade.EntryBar)
		}
	}
}

func TestRunBacktest_RequiresConditions(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.RunBacktest(context.Background(), core.BacktestRequest{
		Ticker:    "AAPL",
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry and one exit condition")
}

func TestRunBacktest_InvalidReference(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.RunBacktest(context.Background(), core.BacktestRequest{
		Ticker:    "AAPL",
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Params: core.BacktestParams{
			Conditions: []core.Condition{
				{Indicator: "SMA", Period: 10, Comparison: core.CompareGreater, Reference: "bogus"},
			},
			Exits: []core.Condition{
				{Indicator: "RSI", Period: 14, Comparison: core.CompareGreater, Value: 70},
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid series reference")
}

func TestEvaluatorThresholds(t *testing.T) {
	bars := make([]core.PriceBar, 0, 40)
	for i := 0; i < 40; i++ {
		price := 100.0 + float64(i)
		bars = append(bars, core.PriceBar{
			Date: "2024-01-01", Open: price, High: price + 1, Low: price - 1, Close: price,
		})
	}

	cond := core.Condition{Indicator: "RSI", Period: 14, Comparison: core.CompareGreater, Value: 50}
	eval, err := buildEvaluator(bars, []core.Condition{cond})
	require.NoError(t, err)

	// Monotonically rising prices push RSI to the top of its range
	assert.True(t, eval.holds(cond, len(bars)-1))

	// Warmup samples never satisfy a condition
	assert.False(t, eval.holds(cond, 0))
}

func TestParseKey(t *testing.T) {
	indicator, period, err := parseKey("SMA_50")
	require.NoError(t, err)
	assert.Equal(t, "SMA", indicator)
	assert.Equal(t, 50, period)

	_, _, err = parseKey("SMA")
	assert.Error(t, err)

	_, _, err = parseKey("SMA_x")
	assert.Error(t, err)
}
