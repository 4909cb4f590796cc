package core

import "fmt"

// Comparison is the operator relating an indicator to its reference value
type Comparison string

const (
	CompareGreater Comparison = ">"
	CompareLess    Comparison = "<"
	CompareEqual   Comparison = "="
)

// Valid reports whether the comparison is one of the allowed operators
func (c Comparison) Valid() bool {
	switch c {
	case CompareGreater, CompareLess, CompareEqual:
		return true
	}
	return false
}

// Condition is one declarative rule comparing an indicator against either
// another indicator series or a fixed threshold. Which of the two applies is
// decided by the indicator identity, not by which field happens to be set;
// use Mode to get the effective shape.
type Condition struct {
	Indicator  string     `json:"indicator"`
	Period     int        `json:"period"`
	Comparison Comparison `json:"comparison"`
	Reference  string     `json:"reference,omitempty"`
	Value      float64    `json:"value,omitempty"`
}

// ComparisonMode is the tagged variant over the two condition shapes:
// moving averages compare against another series, everything else compares
// against a numeric threshold.
type ComparisonMode interface {
	comparisonMode()
}

// SelfReferencing compares the indicator against another series identified
// by its request key, e.g. "SMA_50".
type SelfReferencing struct {
	Reference string
}

// Thresholded compares the indicator against a fixed numeric value.
type Thresholded struct {
	Value float64
}

func (SelfReferencing) comparisonMode() {}
func (Thresholded) comparisonMode()     {}

// ComparesToSeries reports whether conditions on the given indicator use a
// reference series instead of a threshold.
func ComparesToSeries(indicator string) bool {
	return indicator == "SMA" || indicator == "EMA"
}

// Mode returns the effective comparison shape for the condition.
func (c Condition) Mode() ComparisonMode {
	if ComparesToSeries(c.Indicator) {
		return SelfReferencing{Reference: c.Reference}
	}
	return Thresholded{Value: c.Value}
}

// IndicatorRequest identifies one distinct indicator series to fetch.
// Requests are deduplicated on the (indicator, period) pair.
type IndicatorRequest struct {
	Indicator string `json:"indicator"`
	Period    int    `json:"period"`
}

// Key returns the request identity used for dedup and overlay naming,
// e.g. "SMA_20".
func (r IndicatorRequest) Key() string {
	return fmt.Sprintf("%s_%d", r.Indicator, r.Period)
}
