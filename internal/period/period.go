// Package period models the fixed candle granularities supported by the
// Coinbase Exchange API together with the window arithmetic built on them:
// splitting arbitrary spans into API-legal request windows and truncating
// "now" down to the last fully closed candle boundary.
package period

import (
	"fmt"
	"time"
)

// Period identifies one of the fixed candle granularities accepted by the
// exchange. The set is closed; the API rejects any other granularity value.
type Period string

const (
	OneMin      Period = "1m"
	FiveMins    Period = "5m"
	FifteenMins Period = "15m"
	OneHour     Period = "1h"
	SixHours    Period = "6h"
	OneDay      Period = "1d"
)

// Epsilon is the finest time unit used when pulling a range's upper bound
// back from the next split boundary, so two adjacent requests never both
// ask for the candle sitting exactly on the boundary.
const Epsilon = time.Microsecond

// maxCandlesPerRequest is the exchange's page-size cap. Every window in the
// catalog satisfies window/granularity <= this value.
const maxCandlesPerRequest = 300

// attrs bundles the two numeric attributes of a period variant.
type attrs struct {
	granularity time.Duration // candle bucket width
	window      time.Duration // largest span a single request may cover
	table       string        // storage table suffix
}

// catalog is the closed lookup table over all supported periods. Each window
// is exactly 300 candles wide, matching the API's per-response cap.
var catalog = map[Period]attrs{
	OneMin:      {granularity: time.Minute, window: 300 * time.Minute, table: "1m"},
	FiveMins:    {granularity: 5 * time.Minute, window: 1500 * time.Minute, table: "5m"},
	FifteenMins: {granularity: 15 * time.Minute, window: 4500 * time.Minute, table: "15m"},
	OneHour:     {granularity: time.Hour, window: 300 * time.Hour, table: "1h"},
	SixHours:    {granularity: 6 * time.Hour, window: 1800 * time.Hour, table: "6h"},
	OneDay:      {granularity: 24 * time.Hour, window: 300 * 24 * time.Hour, table: "1d"},
}

// All returns every supported period in ascending granularity order.
func All() []Period {
	return []Period{OneMin, FiveMins, FifteenMins, OneHour, SixHours, OneDay}
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Granularity returns the candle bucket width.
// Panics with ErrUnsupportedPeriod via mustAttrs for unknown periods: an
// unknown period this deep in the engine is a programmer error, not input.
func (p Period) Granularity() time.Duration {
	return p.mustAttrs().granularity
}

// GranularitySeconds returns the bucket width in seconds, the unit the
// exchange's granularity query parameter expects.
func (p Period) GranularitySeconds() int {
	return int(p.mustAttrs().granularity / time.Second)
}

// Window returns the largest time span a single candles request may cover
// without exceeding the exchange's page-size cap.
func (p Period) Window() time.Duration {
	return p.mustAttrs().window
}

// TableSuffix returns the storage table suffix for this period.
func (p Period) TableSuffix() string {
	return p.mustAttrs().table
}

func (p Period) String() string { return string(p) }

func (p Period) mustAttrs() attrs {
	a, ok := catalog[p]
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrUnsupportedPeriod, string(p)))
	}
	return a
}

// Parse converts a user-supplied string into a Period, returning
// ErrUnsupportedPeriod for anything outside the catalog.
func Parse(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, s)
	}
	return p, nil
}

// TruncateClosed returns the end instant of the last fully closed candle at
// or before now: it floors now to the start of the bucket containing it and
// steps back one Epsilon. Requesting past this instant would fetch the
// in-progress candle, whose values still change.
//
// The floor is computed on now+Epsilon so the function is a fixed point of
// itself: re-truncating an already truncated instant returns it unchanged.
func TruncateClosed(now time.Time, p Period) (time.Time, error) {
	if !p.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, string(p))
	}
	return now.UTC().Add(Epsilon).Truncate(p.Granularity()).Add(-Epsilon), nil
}
