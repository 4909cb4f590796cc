// Package timeline normalizes the date representations used by the three
// data sources onto one chart axis. Price bars keep their calendar-day
// strings, indicator samples become whole epoch seconds, and trade instants
// are reduced to their UTC day.
package timeline

import (
	"time"

	"github.com/quantwise/chartsync/core"
)

const DayLayout = "2006-01-02"

// instantLayouts are tried in order when parsing a wire timestamp.
// The analytics service emits bare days for price-aligned series and ISO
// datetimes (with or without offset) for everything else.
var instantLayouts = []string{
	DayLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseInstant resolves a bare-date or ISO-datetime string to an absolute
// instant. Bare dates resolve to midnight UTC.
func ParseInstant(s string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EpochSeconds floors an instant to whole seconds, the key granularity used
// by indicator overlays.
func EpochSeconds(t time.Time) int64 {
	return t.Unix()
}

// DayKey reduces an instant to its UTC calendar-day component, the key
// granularity shared by price bars and trade markers.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NormalizeIndicator converts raw indicator samples onto the chart axis.
// Samples with a missing or unparsable timestamp are dropped, not fatal:
// indicator payloads are allowed to be partially malformed. Dropped samples
// are logged at debug level.
func NormalizeIndicator(raw []core.RawIndicatorPoint, log core.Logger) []core.IndicatorPoint {
	points := make([]core.IndicatorPoint, 0, len(raw))

	for _, p := range raw {
		ts := p.Timestamp()
		if ts == "" {
			if log != nil {
				log.Debug("indicator sample without timestamp dropped")
			}
			continue
		}

		instant, ok := ParseInstant(ts)
		if !ok {
			if log != nil {
				log.Debugf("indicator sample with invalid timestamp %q dropped", ts)
			}
			continue
		}

		points = append(points, core.IndicatorPoint{
			Time:  EpochSeconds(instant),
			Value: p.Value,
		})
	}

	return points
}

// TradeDayKeys resolves a trade's entry and exit instants to marker day
// keys. The exit key is empty for an open position or an unparsable exit
// timestamp.
func TradeDayKeys(trade core.TradeRecord) (entry, exit string, ok bool) {
	entryInstant, ok := ParseInstant(trade.EntryTime)
	if !ok {
		return "", "", false
	}

	entry = DayKey(entryInstant)

	if trade.Closed() {
		if exitInstant, parsed := ParseInstant(trade.ExitTime); parsed {
			exit = DayKey(exitInstant)
		}
	}

	return entry, exit, true
}
