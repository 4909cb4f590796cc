package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(ticker string, createdAt int64) *core.BacktestRun {
	result, _ := json.Marshal(core.BacktestResult{TotalReturn: 12.5})
	return &core.BacktestRun{
		CreatedAt: createdAt,
		Ticker:    ticker,
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Request:   json.RawMessage(`{"ticker":"` + ticker + `"}`),
		Result:    result,
	}
}

func testStorage(t *testing.T, store core.RunStorage) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, sampleRun("AAPL", 100)))
	require.NoError(t, store.CreateRun(ctx, sampleRun("MSFT", 200)))
	require.NoError(t, store.CreateRun(ctx, sampleRun("AAPL", 300)))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Oldest first
	assert.Equal(t, int64(100), runs[0].CreatedAt)
	assert.Equal(t, int64(300), runs[2].CreatedAt)

	// IDs were assigned
	for _, run := range runs {
		assert.NotZero(t, run.ID)
	}

	// Stored payloads survive the round trip
	var result core.BacktestResult
	require.NoError(t, json.Unmarshal(runs[0].Result, &result))
	assert.Equal(t, core.Stat(12.5), result.TotalReturn)

	byTicker, err := store.Runs(ctx, core.WithTicker("AAPL"))
	require.NoError(t, err)
	assert.Len(t, byTicker, 2)

	recent, err := store.Runs(ctx, core.WithCreatedAfter(200))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	both, err := store.Runs(ctx, core.WithTicker("AAPL"), core.WithCreatedAfter(200))
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, int64(300), both[0].CreatedAt)

	require.NoError(t, store.Close())
}

func TestBuntStorage(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)

	testStorage(t, store)
}

func TestBuntStorageFile(t *testing.T) {
	store, err := FromFile(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	testStorage(t, store)
}

func TestSQLStorage(t *testing.T) {
	store, err := FromSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
	require.NoError(t, err)

	testStorage(t, store)
}
