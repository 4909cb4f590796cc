package plot

import (
	"errors"
	"net/http"
	"testing"

	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSurface captures surface operations so lifecycle ordering can be
// asserted.
type recordingSurface struct {
	ticker   string
	calls    []string
	disposed int
	panics   bool
}

func (s *recordingSurface) SetPrices([]core.PriceBar) {
	if s.panics {
		panic("render failure")
	}
	s.calls = append(s.calls, "prices")
}

func (s *recordingSurface) AddOverlay(key, color string, _ []core.IndicatorPoint) {
	s.calls = append(s.calls, "overlay:"+key+":"+color)
}

func (s *recordingSurface) SetMarkers([]core.Marker) {
	s.calls = append(s.calls, "markers")
}

func (s *recordingSurface) FitContent() {
	s.calls = append(s.calls, "fit")
}

func (s *recordingSurface) Dispose() {
	s.disposed++
}

type fakeServer struct{}

func (fakeServer) RegisterHandler(string, http.HandlerFunc)   {}
func (fakeServer) RegisterFileServer(string, http.FileSystem) {}
func (fakeServer) Start(int) error                            { return nil }

func newTestChart(t *testing.T, surfaces *[]*recordingSurface) *Chart {
	t.Helper()

	chart, err := NewChart(nopLogger{}, WithSurfaceFactory(func(ticker string) Surface {
		s := &recordingSurface{ticker: ticker}
		*surfaces = append(*surfaces, s)
		return s
	}))
	require.NoError(t, err)

	return chart
}

func sampleView() *core.ChartView {
	return &core.ChartView{
		Ticker: "AAPL",
		Prices: []core.PriceBar{{Date: "2024-01-02", Open: 1, High: 2, Low: 1, Close: 2}},
		Overlays: []core.Overlay{
			{Key: "SMA_20", Points: []core.IndicatorPoint{{Time: 1704153600, Value: 1.5}}},
		},
		Markers: []core.Marker{{Time: "2024-01-02", Side: core.MarkerEntry, Price: 1, Label: "Buy @ 1.00"}},
	}
}

func TestApply_RequiresMount(t *testing.T) {
	var surfaces []*recordingSurface
	chart := newTestChart(t, &surfaces)

	err := chart.Apply(sampleView(), 1)
	assert.ErrorIs(t, err, core.ErrPrecondition)
	assert.Empty(t, surfaces)
	assert.Equal(t, StateUnmounted, chart.State())
}

func TestApply_PopulatesSurfaceInOrder(t *testing.T) {
	var surfaces []*recordingSurface
	chart := newTestChart(t, &surfaces)
	chart.RegisterHandlers(fakeServer{})

	require.NoError(t, chart.Apply(sampleView(), 1))
	require.Len(t, surfaces, 1)

	assert.Equal(t, "AAPL", surfaces[0].ticker)
	assert.Equal(t, []string{"prices", "overlay:SMA_20:blue", "markers", "fit"}, surfaces[0].calls)
	assert.Equal(t, StateDisplaying, chart.State())
}

func TestApply_DisposesPreviousSurfaceFirst(t *testing.T) {
	var surfaces []*recordingSurface
	chart := newTestChart(t, &surfaces)
	chart.RegisterHandlers(fakeServer{})

	require.NoError(t, chart.Apply(sampleView(), 1))
	require.NoError(t, chart.Apply(sampleView(), 2))

	require.Len(t, surfaces, 2)
	assert.Equal(t, 1, surfaces[0].disposed)
	assert.Equal(t, 0, surfaces[1].disposed)
}

func TestApply_RefusesStaleGeneration(t *testing.T) {
	var surfaces []*recordingSurface
	chart := newTestChart(t, &surfaces)
	chart.RegisterHandlers(fakeServer{})

	require.NoError(t, chart.Apply(sampleView(), 5))

	err := chart.Apply(sampleView(), 3)
	assert.ErrorIs(t, err, core.ErrSuperseded)

	// The displayed surface is untouched by the stale pass
	require.Len(t, surfaces, 1)
	assert.Equal(t, 0, surfaces[0].disposed)
	assert.Equal(t, StateDisplaying, chart.State())
}

func TestApply_DisposesPartialSurfaceOnFailure(t *testing.T) {
	var surfaces []*recordingSurface
	chart, err := NewChart(nopLogger{}, WithSurfaceFactory(func(ticker string) Surface {
		s := &recordingSurface{ticker: ticker, panics: true}
		surfaces = append(surfaces, s)
		return s
	}))
	require.NoError(t, err)
	chart.RegisterHandlers(fakeServer{})

	err = chart.Apply(sampleView(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrPrecondition))

	require.Len(t, surfaces, 1)
	assert.Equal(t, 1, surfaces[0].disposed)
	assert.Equal(t, StateDisposed, chart.State())
}

func TestDispose_Idempotent(t *testing.T) {
	var surfaces []*recordingSurface
	chart := newTestChart(t, &surfaces)
	chart.RegisterHandlers(fakeServer{})

	require.NoError(t, chart.Apply(sampleView(), 1))

	chart.Dispose()
	chart.Dispose()

	require.Len(t, surfaces, 1)
	assert.Equal(t, 1, surfaces[0].disposed)
	assert.Equal(t, StateDisposed, chart.State())
}

func TestWebSurface_IgnoresMutationsAfterDispose(t *testing.T) {
	s := newWebSurface("AAPL", "dark", nil)
	s.SetPrices([]core.PriceBar{{Date: "2024-01-02"}})
	s.Dispose()
	s.Dispose()

	s.SetPrices([]core.PriceBar{{Date: "2024-01-03"}})
	s.AddOverlay("SMA_20", "blue", nil)
	s.SetMarkers([]core.Marker{{Time: "2024-01-02"}})

	snap := s.snapshot()
	assert.Nil(t, snap["candles"])
	assert.Empty(t, snap["indicators"])
	assert.Empty(t, snap["markers"])
}

func TestSplitOverlayKey(t *testing.T) {
	indicator, period, ok := splitOverlayKey("SMA_20")
	assert.True(t, ok)
	assert.Equal(t, "SMA", indicator)
	assert.Equal(t, "20", period)

	indicator, period, ok = splitOverlayKey("Williams %R_14")
	assert.True(t, ok)
	assert.Equal(t, "Williams %R", indicator)
	assert.Equal(t, "14", period)

	indicator, _, ok = splitOverlayKey("MACD")
	assert.False(t, ok)
	assert.Equal(t, "MACD", indicator)
}
