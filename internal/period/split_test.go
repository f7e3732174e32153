package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan15 := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("hourly window over two weeks yields two ranges", func(t *testing.T) {
		spans, err := Split(jan1, jan15, OneHour)
		require.NoError(t, err)
		require.Len(t, spans, 2)

		boundary := jan1.Add(300 * time.Hour)
		assert.Equal(t, jan1, spans[0].From)
		assert.Equal(t, boundary.Add(-Epsilon), spans[0].To)
		assert.Equal(t, boundary, spans[1].From)
		assert.Equal(t, jan15, spans[1].To)
	})

	t.Run("minute window over two weeks yields 68 ranges", func(t *testing.T) {
		spans, err := Split(jan1, jan15, OneMin)
		require.NoError(t, err)
		require.Len(t, spans, 68)

		assert.Equal(t, jan1, spans[0].From)
		assert.Equal(t, jan1.Add(300*time.Minute).Add(-Epsilon), spans[0].To)
		assert.Equal(t, jan15, spans[len(spans)-1].To)
	})

	t.Run("span within one window is returned verbatim", func(t *testing.T) {
		jan2 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

		spans, err := Split(jan1, jan2, OneDay)
		require.NoError(t, err)
		require.Len(t, spans, 1)

		// No epsilon back-off on a single, non-split range.
		assert.Equal(t, Span{From: jan1, To: jan2}, spans[0])
	})

	t.Run("zero-length span yields no ranges", func(t *testing.T) {
		for _, p := range All() {
			spans, err := Split(jan1, jan1, p)
			require.NoError(t, err)
			assert.Empty(t, spans, "period %s", p)
		}
	})

	t.Run("reversed bounds are rejected", func(t *testing.T) {
		_, err := Split(jan15, jan1, OneHour)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("unsupported period is rejected", func(t *testing.T) {
		_, err := Split(jan1, jan15, Period("3h"))
		assert.ErrorIs(t, err, ErrUnsupportedPeriod)
	})

	t.Run("exact multiple of the window", func(t *testing.T) {
		to := jan1.Add(2 * 300 * time.Hour)

		spans, err := Split(jan1, to, OneHour)
		require.NoError(t, err)
		require.Len(t, spans, 2)

		assert.Equal(t, 300*time.Hour-Epsilon, spans[0].Duration())
		assert.Equal(t, 300*time.Hour, spans[1].Duration())
		assert.Equal(t, to, spans[1].To)
	})

	t.Run("spans tile the input with no gaps or overlaps", func(t *testing.T) {
		cases := []struct {
			p  Period
			to time.Time
		}{
			{OneMin, jan1.Add(17*time.Hour + 23*time.Minute)},
			{FiveMins, jan1.Add(8 * 24 * time.Hour)},
			{FifteenMins, jan15},
			{OneHour, jan1.Add(1000 * time.Hour)},
			{SixHours, jan1.Add(91 * 24 * time.Hour)},
			{OneDay, jan1.Add(700 * 24 * time.Hour)},
		}
		for _, tc := range cases {
			spans, err := Split(jan1, tc.to, tc.p)
			require.NoError(t, err)
			require.NotEmpty(t, spans, "period %s", tc.p)

			assert.Equal(t, jan1, spans[0].From, "period %s", tc.p)
			assert.Equal(t, tc.to, spans[len(spans)-1].To, "period %s", tc.p)
			for i := 1; i < len(spans); i++ {
				// Chronological, and each span resumes exactly one
				// epsilon after its predecessor ends.
				assert.Equal(t, spans[i-1].To.Add(Epsilon), spans[i].From,
					"period %s span %d", tc.p, i)
			}
		}
	})
}
