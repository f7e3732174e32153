package period

import (
	"fmt"
	"time"
)

// Span is one [From, To] slice of a larger request window. Both bounds are
// inclusive; interior split points carry an Epsilon back-off on To so the
// boundary candle is fetched exactly once.
type Span struct {
	From time.Time
	To   time.Time
}

// Duration returns the inclusive length of the span.
func (s Span) Duration() time.Duration {
	return s.To.Sub(s.From)
}

// Split slices [from, to] into consecutive spans that each fit inside a
// single candles request for p (at most 300 candles per span).
//
// The cursor advances by p's window; every interior span ends one Epsilon
// before the next cursor position, while the final span ends exactly at to.
// A zero-length input yields no spans; to < from is rejected rather than
// silently returning empty, since it indicates a caller bug.
func Split(from, to time.Time, p Period) ([]Span, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, string(p))
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from=%s to=%s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if to.Equal(from) {
		return nil, nil
	}

	window := p.Window()
	spans := make([]Span, 0, to.Sub(from)/window+1)
	for cursor := from; cursor.Before(to); {
		next := cursor.Add(window)
		if !next.Before(to) {
			spans = append(spans, Span{From: cursor, To: to})
			break
		}
		spans = append(spans, Span{From: cursor, To: next.Add(-Epsilon)})
		cursor = next
	}
	return spans, nil
}
