package chartsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/plot"
	"github.com/quantwise/chartsync/strategy"
	"github.com/quantwise/chartsync/timeline"
)

// Synchronizer runs full chart synchronization passes: fetch everything the
// strategy needs, normalize it onto the chart axis and hand the finished
// view to the chart. A pass is all-or-nothing; a partially fetched pass
// never reaches the surface.
type Synchronizer struct {
	sync.Mutex
	service    core.Analytics
	chart      *plot.Chart
	log        core.Logger
	generation atomic.Uint64
	lastErr    error
}

// NewSynchronizer creates a synchronizer bound to one chart.
func NewSynchronizer(service core.Analytics, chart *plot.Chart, log core.Logger) *Synchronizer {
	return &Synchronizer{
		service: service,
		chart:   chart,
		log:     log,
	}
}

// Synchronize executes one pass for the given strategy and trade history.
//
// Preconditions (mounted chart, ticker and date range present) are checked
// first; an unmet precondition skips the pass silently. The price series is
// fetched before any indicator series, and the first fetch failure aborts
// the pass with everything fetched so far discarded. Each pass carries a
// generation number so a slow pass can never overwrite the output of a
// newer one.
func (s *Synchronizer) Synchronize(ctx context.Context, str strategy.Strategy, trades []core.TradeRecord) error {
	if !s.chart.Mounted() || str.Ticker == "" || str.StartDate == "" || str.EndDate == "" {
		s.log.Debug("synchronization skipped: inputs not ready")
		return core.ErrPrecondition
	}

	generation := s.generation.Add(1)

	s.log.WithField("ticker", str.Ticker).Infof("synchronizing chart (pass %d)", generation)

	bars, err := s.service.PriceSeries(ctx, str.Ticker, str.StartDate, str.EndDate)
	if err != nil {
		return s.fail(generation, err)
	}
	if len(bars) == 0 {
		return s.fail(generation, core.ErrNoData)
	}

	// Indicators are fetched one at a time, in request order
	requests := str.IndicatorRequests()
	overlays := make([]core.Overlay, 0, len(requests))
	for _, req := range requests {
		raw, err := s.service.IndicatorSeries(ctx, str.Ticker, req, str.StartDate, str.EndDate)
		if err != nil {
			return s.fail(generation, err)
		}

		overlays = append(overlays, core.Overlay{
			Key:    req.Key(),
			Points: timeline.NormalizeIndicator(raw, s.log),
		})
	}

	view := &core.ChartView{
		Ticker:   str.Ticker,
		Prices:   bars,
		Overlays: overlays,
		Markers:  plot.ProjectMarkers(trades, s.log),
	}

	if err := s.chart.Apply(view, generation); err != nil {
		if errors.Is(err, core.ErrSuperseded) {
			// A newer pass owns the surface; nothing to report
			return err
		}
		return s.fail(generation, err)
	}

	s.setLastError(generation, nil)
	return nil
}

// LastError returns the failure of the most recent pass, or nil if the most
// recent pass succeeded. Skipped passes leave the slot untouched.
func (s *Synchronizer) LastError() error {
	s.Lock()
	defer s.Unlock()
	return s.lastErr
}

// fail records and publishes a pass failure. The outcome of a superseded
// pass is discarded outright: its error must not clobber the state left
// behind by a newer pass.
func (s *Synchronizer) fail(generation uint64, err error) error {
	if generation != s.generation.Load() {
		s.log.Debugf("discarding failure of superseded pass %d: %v", generation, err)
		return core.ErrSuperseded
	}

	s.log.WithError(err).Error("chart synchronization failed")
	s.setLastError(generation, err)
	s.chart.GetWSManager().BroadcastError(err.Error())
	return err
}

func (s *Synchronizer) setLastError(generation uint64, err error) {
	s.Lock()
	defer s.Unlock()

	if generation != s.generation.Load() {
		return
	}
	s.lastErr = err
}
