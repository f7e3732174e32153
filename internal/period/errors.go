package period

import "errors"

var (
	// ErrUnsupportedPeriod is returned (or panicked, from the catalog
	// accessors) for a period value outside the closed catalog. It is a
	// configuration/programmer error, never a runtime condition.
	ErrUnsupportedPeriod = errors.New("unsupported candle period")

	// ErrInvalidRange is returned when a span's upper bound precedes its
	// lower bound. Valid planner output never produces it.
	ErrInvalidRange = errors.New("invalid time range: to precedes from")
)
