package simulator

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/timeline"
)

var errRangeInverted = errors.New("end date is before start date")

func errInvalidDate(s string) error {
	return fmt.Errorf("invalid date %q", s)
}

// bars generates the synthetic daily series for a ticker. The walk is
// seeded from the ticker name and the configured seed, so repeated requests
// for the same range return identical data. Weekends are skipped.
func (s *Service) bars(ticker string, start, end time.Time) []core.PriceBar {
	rng := rand.New(rand.NewSource(s.seed + tickerSeed(ticker)))

	price := 50.0 + rng.Float64()*150.0
	bars := make([]core.PriceBar, 0, int(end.Sub(start).Hours()/24)+1)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		open := price
		drift := (rng.Float64() - 0.48) * open * 0.02
		close := open + drift

		high := math.Max(open, close) + rng.Float64()*open*0.01
		low := math.Min(open, close) - rng.Float64()*open*0.01

		bars = append(bars, core.PriceBar{
			Date:  timeline.DayKey(day),
			Open:  round2(open),
			High:  round2(high),
			Low:   round2(low),
			Close: round2(close),
		})

		price = close
	}

	return bars
}

func tickerSeed(ticker string) int64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return int64(h.Sum64() % math.MaxInt32)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// computeIndicator returns one value per bar, with NaN for warmup samples
// that have no defined value yet.
func computeIndicator(indicator string, bars []core.PriceBar, period int) ([]float64, error) {
	if len(bars) < period {
		return nil, fmt.Errorf("not enough data for %s with period %d", indicator, period)
	}

	var (
		closes = make([]float64, len(bars))
		highs  = make([]float64, len(bars))
		lows   = make([]float64, len(bars))
	)
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	var values []float64
	switch indicator {
	case "SMA":
		values = talib.Sma(closes, period)
	case "EMA":
		values = talib.Ema(closes, period)
	case "RSI":
		values = talib.Rsi(closes, period)
	case "ATR":
		values = talib.Atr(highs, lows, closes, period)
	case "CCI":
		values = talib.Cci(highs, lows, closes, period)
	case "Williams %R":
		values = talib.WillR(highs, lows, closes, period)
	default:
		return nil, fmt.Errorf("unsupported indicator %q", indicator)
	}

	// talib leaves warmup slots at zero; mark them undefined instead
	for i := 0; i < period && i < len(values); i++ {
		values[i] = math.NaN()
	}

	return values, nil
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
