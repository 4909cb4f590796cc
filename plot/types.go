package plot

// State tracks the lifecycle of the chart's visual surface.
type State int8

const (
	StateUnmounted State = iota
	StateReady
	StateDisplaying
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateReady:
		return "ready"
	case StateDisplaying:
		return "displaying"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// indicatorColors maps known indicator names to their line color. Unknown
// names fall back to gray so every overlay always renders.
var indicatorColors = map[string]string{
	"SMA":               "blue",
	"EMA":               "green",
	"RSI":               "purple",
	"ATR":               "orange",
	"CCI":               "brown",
	"CMF":               "cyan",
	"Williams %R":       "magenta",
	"Donchian Channels": "pink",
	"Parabolic SAR":     "yellow",
	"MACD":              "red",
}

const fallbackColor = "gray"

// ColorFor returns the line color for an indicator name. Total over all
// inputs: unrecognized indicators get the fallback color.
func ColorFor(indicator string) string {
	if color, ok := indicatorColors[indicator]; ok {
		return color
	}
	return fallbackColor
}

// seriesMarker is the wire form of a trade marker, matching what the
// browser chart library expects.
type seriesMarker struct {
	Time     string  `json:"time"`
	Position string  `json:"position"`
	Color    string  `json:"color"`
	Shape    string  `json:"shape"`
	Text     string  `json:"text"`
	Price    float64 `json:"price"`
}

// overlaySeries is the wire form of one indicator overlay.
type overlaySeries struct {
	Key    string      `json:"key"`
	Color  string      `json:"color"`
	Points []axisPoint `json:"points"`
}

type axisPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}
