package plot

import (
	"fmt"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/timeline"
	"github.com/samber/lo"
)

// ProjectMarkers converts backtest trades into chart annotations. Every
// trade yields one entry marker; closed trades additionally yield one exit
// marker. Output order follows the input trade order and same-day markers
// are never merged.
func ProjectMarkers(trades []core.TradeRecord, log core.Logger) []core.Marker {
	return lo.FlatMap(trades, func(trade core.TradeRecord, _ int) []core.Marker {
		entryDay, exitDay, ok := timeline.TradeDayKeys(trade)
		if !ok {
			if log != nil {
				log.Warnf("trade with invalid entry time %q skipped", trade.EntryTime)
			}
			return nil
		}

		markers := []core.Marker{{
			Time:  entryDay,
			Side:  core.MarkerEntry,
			Price: trade.EntryPrice,
			Label: fmt.Sprintf("Buy @ %.2f", trade.EntryPrice),
		}}

		if exitDay != "" {
			markers = append(markers, core.Marker{
				Time:  exitDay,
				Side:  core.MarkerExit,
				Price: trade.ExitPrice,
				Label: fmt.Sprintf("Sell @ %.2f", trade.ExitPrice),
			})
		}

		return markers
	})
}

// toSeriesMarkers maps domain markers to the browser wire form: entries sit
// below the bar pointing up, exits above the bar pointing down.
func toSeriesMarkers(markers []core.Marker) []seriesMarker {
	return lo.Map(markers, func(m core.Marker, _ int) seriesMarker {
		out := seriesMarker{
			Time:  m.Time,
			Text:  m.Label,
			Price: m.Price,
		}

		if m.Side == core.MarkerEntry {
			out.Position = "belowBar"
			out.Shape = "arrowUp"
			out.Color = "green"
		} else {
			out.Position = "aboveBar"
			out.Shape = "arrowDown"
			out.Color = "red"
		}

		return out
	})
}
