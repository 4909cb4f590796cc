package strategy

import (
	"testing"

	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sma20(cmp core.Comparison) core.Condition {
	return core.Condition{Indicator: "SMA", Period: 20, Comparison: cmp, Reference: "SMA_50"}
}

func rsi14(cmp core.Comparison, value float64) core.Condition {
	return core.Condition{Indicator: "RSI", Period: 14, Comparison: cmp, Value: value}
}

func TestDeriveIndicatorRequests_Dedup(t *testing.T) {
	entries := []core.Condition{sma20(core.CompareGreater), rsi14(core.CompareLess, 30)}
	exits := []core.Condition{sma20(core.CompareLess)}

	requests := DeriveIndicatorRequests(entries, exits)

	require.Len(t, requests, 2)
	assert.Equal(t, core.IndicatorRequest{Indicator: "SMA", Period: 20}, requests[0])
	assert.Equal(t, core.IndicatorRequest{Indicator: "RSI", Period: 14}, requests[1])
}

func TestDeriveIndicatorRequests_OrderIndependent(t *testing.T) {
	a := DeriveIndicatorRequests(
		[]core.Condition{sma20(core.CompareGreater), rsi14(core.CompareLess, 30)},
		[]core.Condition{rsi14(core.CompareGreater, 70)},
	)
	b := DeriveIndicatorRequests(
		[]core.Condition{rsi14(core.CompareLess, 30), sma20(core.CompareGreater)},
		[]core.Condition{sma20(core.CompareLess)},
	)

	assert.ElementsMatch(t, a, b)
}

func TestDeriveIndicatorRequests_SamePeriodDistinctIndicators(t *testing.T) {
	requests := DeriveIndicatorRequests(
		[]core.Condition{
			{Indicator: "SMA", Period: 14},
			{Indicator: "RSI", Period: 14},
		},
		nil,
	)

	assert.Len(t, requests, 2)
}

func TestValidate(t *testing.T) {
	base := Strategy{
		Ticker:    "AAPL",
		StartDate: "2019-01-01",
		EndDate:   "2023-12-31",
		Entries:   []core.Condition{sma20(core.CompareGreater)},
		Exits:     []core.Condition{sma20(core.CompareLess)},
	}

	assert.NoError(t, base.Validate())

	missingTicker := base
	missingTicker.Ticker = ""
	assert.ErrorIs(t, missingTicker.Validate(), core.ErrPrecondition)

	noExits := base
	noExits.Exits = nil
	assert.ErrorIs(t, noExits.Validate(), core.ErrMissingConditions)
}

func TestConditionMode(t *testing.T) {
	assert.Equal(t, core.SelfReferencing{Reference: "SMA_50"}, sma20(core.CompareGreater).Mode())
	assert.Equal(t, core.Thresholded{Value: 30}, rsi14(core.CompareLess, 30).Mode())
}

func TestBacktestRequest(t *testing.T) {
	s := Strategy{
		Ticker:      "AAPL",
		StartDate:   "2019-01-01",
		EndDate:     "2023-12-31",
		Entries:     []core.Condition{sma20(core.CompareGreater)},
		Exits:       []core.Condition{rsi14(core.CompareGreater, 70)},
		InitialCash: 10000,
		Commission:  0.002,
	}

	req := s.BacktestRequest()
	assert.Equal(t, "AAPL", req.Ticker)
	assert.Equal(t, s.Entries, req.Params.Conditions)
	assert.Equal(t, s.Exits, req.Params.Exits)
	assert.Equal(t, 10000.0, req.InitialCash)
}
