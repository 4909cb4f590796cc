package plot

import (
	"testing"

	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{ core.Logger }

func (nopLogger) Debug(...any)          {}
func (nopLogger) Info(...any)           {}
func (nopLogger) Warn(...any)           {}
func (nopLogger) Error(...any)          {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}

func TestProjectMarkers_ClosedTrade(t *testing.T) {
	trades := []core.TradeRecord{
		{EntryTime: "2024-01-02", ExitTime: "2024-01-10", EntryPrice: 100.456, ExitPrice: 110.4},
	}

	markers := ProjectMarkers(trades, nopLogger{})
	require.Len(t, markers, 2)

	assert.Equal(t, "2024-01-02", markers[0].Time)
	assert.Equal(t, core.MarkerEntry, markers[0].Side)
	assert.Equal(t, "Buy @ 100.46", markers[0].Label)

	assert.Equal(t, "2024-01-10", markers[1].Time)
	assert.Equal(t, core.MarkerExit, markers[1].Side)
	assert.Equal(t, "Sell @ 110.40", markers[1].Label)
}

func TestProjectMarkers_OpenTrade(t *testing.T) {
	trades := []core.TradeRecord{
		{EntryTime: "2024-01-02T00:00:00", EntryPrice: 50},
	}

	markers := ProjectMarkers(trades, nopLogger{})
	require.Len(t, markers, 1)
	assert.Equal(t, core.MarkerEntry, markers[0].Side)
	assert.Equal(t, "Buy @ 50.00", markers[0].Label)
}

func TestProjectMarkers_InvalidEntrySkipped(t *testing.T) {
	trades := []core.TradeRecord{
		{EntryTime: "not a date", EntryPrice: 10},
		{EntryTime: "2024-03-01", ExitTime: "2024-03-05", EntryPrice: 20, ExitPrice: 25},
	}

	markers := ProjectMarkers(trades, nopLogger{})
	require.Len(t, markers, 2)
	assert.Equal(t, "2024-03-01", markers[0].Time)
}

func TestProjectMarkers_SameDayMarkersKept(t *testing.T) {
	trades := []core.TradeRecord{
		{EntryTime: "2024-01-02", ExitTime: "2024-01-02", EntryPrice: 10, ExitPrice: 11},
		{EntryTime: "2024-01-02", EntryPrice: 12},
	}

	markers := ProjectMarkers(trades, nopLogger{})
	assert.Len(t, markers, 3)
}

func TestToSeriesMarkers(t *testing.T) {
	out := toSeriesMarkers([]core.Marker{
		{Time: "2024-01-02", Side: core.MarkerEntry, Price: 10, Label: "Buy @ 10.00"},
		{Time: "2024-01-03", Side: core.MarkerExit, Price: 12, Label: "Sell @ 12.00"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "belowBar", out[0].Position)
	assert.Equal(t, "arrowUp", out[0].Shape)
	assert.Equal(t, "green", out[0].Color)

	assert.Equal(t, "aboveBar", out[1].Position)
	assert.Equal(t, "arrowDown", out[1].Shape)
	assert.Equal(t, "red", out[1].Color)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "blue", ColorFor("SMA"))
	assert.Equal(t, "purple", ColorFor("RSI"))
	assert.Equal(t, "gray", ColorFor("SOMETHING_NEW"))
}
