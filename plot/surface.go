package plot

import (
	"sync"

	"github.com/quantwise/chartsync/core"
)

// Surface is the owned handle to one visual chart instance. A surface is
// acquired by the lifecycle manager when inputs are ready, populated
// exactly once per synchronization pass, and must be fully disposed before
// the next surface is acquired.
type Surface interface {
	// SetPrices replaces the candlestick layer.
	SetPrices(bars []core.PriceBar)

	// AddOverlay creates one indicator line layer.
	AddOverlay(key, color string, points []core.IndicatorPoint)

	// SetMarkers applies the trade annotations to the price layer.
	SetMarkers(markers []core.Marker)

	// FitContent makes the view frame all applied data and publishes it.
	FitContent()

	// Dispose releases the surface. Safe to call more than once; after
	// disposal the surface ignores all further mutations.
	Dispose()
}

// webSurface renders to connected browsers through the websocket manager.
// The browser page mirrors surface operations against its own chart
// object, recreating it whenever a new snapshot arrives.
type webSurface struct {
	mu       sync.Mutex
	ticker   string
	theme    string
	prices   []core.PriceBar
	overlays []overlaySeries
	markers  []seriesMarker
	disposed bool
	manager  *WebSocketManager
}

func newWebSurface(ticker, theme string, manager *WebSocketManager) *webSurface {
	return &webSurface{
		ticker:  ticker,
		theme:   theme,
		manager: manager,
	}
}

func (s *webSurface) SetPrices(bars []core.PriceBar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}

	s.prices = bars
}

func (s *webSurface) AddOverlay(key, color string, points []core.IndicatorPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}

	series := overlaySeries{Key: key, Color: color, Points: make([]axisPoint, 0, len(points))}
	for _, p := range points {
		series.Points = append(series.Points, axisPoint{Time: p.Time, Value: p.Value})
	}

	s.overlays = append(s.overlays, series)
}

func (s *webSurface) SetMarkers(markers []core.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}

	s.markers = toSeriesMarkers(markers)
}

func (s *webSurface) FitContent() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	disposed := s.disposed
	s.mu.Unlock()

	if disposed || s.manager == nil {
		return
	}

	s.manager.BroadcastView(snapshot)
}

func (s *webSurface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}

	s.disposed = true
	s.prices = nil
	s.overlays = nil
	s.markers = nil
}

// snapshot returns the current drawable state for new websocket clients.
func (s *webSurface) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *webSurface) snapshotLocked() map[string]any {
	return map[string]any{
		"ticker":     s.ticker,
		"theme":      s.theme,
		"candles":    s.prices,
		"indicators": s.overlays,
		"markers":    s.markers,
	}
}
