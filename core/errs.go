package core

import "errors"

var (
	// ErrPrecondition marks an input set that is not ready to synchronize
	// (missing ticker, dates or mount target). Not reported to the user.
	ErrPrecondition = errors.New("synchronization preconditions unmet")

	// ErrNoData is returned when the service answers with an empty price
	// series for a valid request.
	ErrNoData = errors.New("no price data available for the selected ticker and date range")

	// ErrSuperseded marks a pass whose result was discarded because a newer
	// pass started while it was in flight.
	ErrSuperseded = errors.New("synchronization pass superseded")

	ErrMissingConditions = errors.New("at least one entry and one exit condition are required")
)
