// Package strategy holds the declarative rule set a user submits for
// backtesting and derives the indicator series the chart needs to display
// it.
package strategy

import (
	"fmt"

	"github.com/StudioSol/set"
	"github.com/quantwise/chartsync/core"
)

// Strategy is the full host-facing input set: what to test, over which
// range, with which rules.
type Strategy struct {
	Ticker            string           `json:"ticker"`
	StartDate         string           `json:"start_date"`
	EndDate           string           `json:"end_date"`
	Entries           []core.Condition `json:"entries"`
	Exits             []core.Condition `json:"exits"`
	InitialCash       float64          `json:"initial_cash"`
	Commission        float64          `json:"commission"`
	FixedCashPerTrade float64          `json:"fixed_cash_per_trade"`
}

// Validate checks submittability: ticker and range present, at least one
// entry and one exit rule. Individual malformed conditions are tolerated
// here; the fetch stage rejects them.
func (s Strategy) Validate() error {
	if s.Ticker == "" || s.StartDate == "" || s.EndDate == "" {
		return fmt.Errorf("ticker, start date and end date are required: %w", core.ErrPrecondition)
	}

	if len(s.Entries) == 0 || len(s.Exits) == 0 {
		return core.ErrMissingConditions
	}

	return nil
}

// BacktestRequest builds the submission body for the analytics service.
func (s Strategy) BacktestRequest() core.BacktestRequest {
	return core.BacktestRequest{
		Ticker:      s.Ticker,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		InitialCash: s.InitialCash,
		Commission:  s.Commission,
		Params: core.BacktestParams{
			Conditions:        s.Entries,
			Exits:             s.Exits,
			FixedCashPerTrade: s.FixedCashPerTrade,
		},
	}
}

// IndicatorRequests derives the distinct indicator series referenced by the
// strategy's rules.
func (s Strategy) IndicatorRequests() []core.IndicatorRequest {
	return DeriveIndicatorRequests(s.Entries, s.Exits)
}

// DeriveIndicatorRequests returns the deduplicated set of (indicator,
// period) pairs across both condition lists. The set keeps first-seen order
// so the fetch sequence is deterministic for a given rule set.
func DeriveIndicatorRequests(entries, exits []core.Condition) []core.IndicatorRequest {
	seen := set.NewLinkedHashSetString()
	requests := make([]core.IndicatorRequest, 0, len(entries)+len(exits))

	for _, cond := range append(append([]core.Condition{}, entries...), exits...) {
		req := core.IndicatorRequest{Indicator: cond.Indicator, Period: cond.Period}
		if seen.InArray(req.Key()) {
			continue
		}

		seen.Add(req.Key())
		requests = append(requests, req)
	}

	return requests
}
