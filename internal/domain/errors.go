package domain

import "errors"

var (
	// ErrVenueUnavailable marks transient connectivity or timeout failures on
	// one venue. Aggregators recover by omitting the venue.
	ErrVenueUnavailable = errors.New("venue unavailable")

	// ErrMarketDataUnavailable means no live quote exists for the symbol.
	ErrMarketDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientVenueData means fewer than two venues responded; a spread
	// cannot be computed and the cycle aborts without trading.
	ErrInsufficientVenueData = errors.New("insufficient venue data")

	ErrOrderRejected = errors.New("order rejected")
	ErrOrderTimeout  = errors.New("order timeout")
)
