package core

import (
	"encoding/json"
	"math"
)

// PriceBar is one daily OHLC bar. The service keys bars by calendar-day
// strings and those strings are used verbatim as the chart time axis.
type PriceBar struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// RawIndicatorPoint is an indicator sample as it arrives on the wire.
// Depending on the backend code path the timestamp may be under "Date" or
// "date", as a bare day or a full ISO datetime. Normalization happens in the
// timeline package.
type RawIndicatorPoint struct {
	Date      string  `json:"Date,omitempty"`
	DateLower string  `json:"date,omitempty"`
	Value     float64 `json:"value"`
}

// Timestamp returns whichever wire field carries the sample time.
func (p RawIndicatorPoint) Timestamp() string {
	if p.Date != "" {
		return p.Date
	}
	return p.DateLower
}

// IndicatorPoint is a normalized indicator sample on the chart axis,
// keyed by whole epoch seconds.
type IndicatorPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// TradeRecord is one simulated trade from the backtest trade history.
// Exit fields are empty for a position still open at the end of the range.
type TradeRecord struct {
	EntryTime  string  `json:"EntryTime"`
	ExitTime   string  `json:"ExitTime,omitempty"`
	EntryPrice float64 `json:"EntryPrice"`
	ExitPrice  float64 `json:"ExitPrice,omitempty"`
	Size       float64 `json:"Size"`
	PnL        float64 `json:"PnL"`
	ReturnPct  float64 `json:"ReturnPct"`
	EntryBar   int     `json:"EntryBar"`
	ExitBar    int     `json:"ExitBar,omitempty"`
	Duration   int     `json:"Duration"`
}

// Closed reports whether the trade has an exit.
func (t TradeRecord) Closed() bool {
	return t.ExitTime != ""
}

// MarkerSide distinguishes trade entries from exits on the chart.
type MarkerSide string

const (
	MarkerEntry MarkerSide = "entry"
	MarkerExit  MarkerSide = "exit"
)

// Marker is a positioned, labeled annotation derived from a trade. Markers
// are regenerated on every synchronization pass and never persisted.
type Marker struct {
	Time  string     `json:"time"` // calendar-day key
	Side  MarkerSide `json:"side"`
	Price float64    `json:"price"`
	Label string     `json:"label"`
}

// ChartView is the composed state handed to the chart surface: one price
// series, zero or more named indicator overlays and the trade markers.
// It is owned by the chart lifecycle manager once applied.
type ChartView struct {
	Ticker   string
	Prices   []PriceBar
	Overlays []Overlay
	Markers  []Marker
}

// Overlay is one indicator line keyed by its request identity.
type Overlay struct {
	Key    string           `json:"key"`
	Points []IndicatorPoint `json:"points"`
}

// BacktestRequest is the run-backtest submission body.
type BacktestRequest struct {
	Ticker      string         `json:"ticker"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	Params      BacktestParams `json:"params"`
	InitialCash float64        `json:"initial_cash"`
	Commission  float64        `json:"commission"`
}

type BacktestParams struct {
	Conditions        []Condition `json:"conditions"`
	Exits             []Condition `json:"exits"`
	FixedCashPerTrade float64     `json:"fixed_cash_per_trade"`
}

// Stat is a statistic that the service reports either as a number or as the
// literal "N/A". N/A round-trips as NaN.
type Stat float64

// IsNA reports whether the statistic is unavailable.
func (s Stat) IsNA() bool {
	return math.IsNaN(float64(s))
}

func (s Stat) MarshalJSON() ([]byte, error) {
	if s.IsNA() {
		return []byte(`"N/A"`), nil
	}
	return json.Marshal(float64(s))
}

func (s *Stat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*s = Stat(v)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	// Any non-numeric answer ("N/A", "NaN") means unavailable
	*s = Stat(math.NaN())
	return nil
}

// BacktestResult is the service's answer to a backtest submission.
type BacktestResult struct {
	TotalReturn  Stat          `json:"total_return"`
	WinRate      Stat          `json:"win_rate"`
	ProfitFactor Stat          `json:"profit_factor"`
	SharpeRatio  Stat          `json:"sharpe_ratio"`
	MaxDrawdown  Stat          `json:"max_drawdown"`
	TradeHistory []TradeRecord `json:"trade_history"`
}

// BacktestRun is a completed submission kept for later inspection: the
// request that produced it plus the returned result.
type BacktestRun struct {
	ID        int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt int64           `json:"created_at"`
	Ticker    string          `json:"ticker"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Request   json.RawMessage `json:"request" gorm:"type:text"`
	Result    json.RawMessage `json:"result" gorm:"type:text"`
}
