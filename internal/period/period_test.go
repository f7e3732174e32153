package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	t.Run("contains exactly six periods", func(t *testing.T) {
		assert.Len(t, All(), 6)
	})

	t.Run("granularities match the exchange's accepted values", func(t *testing.T) {
		expected := map[Period]int{
			OneMin:      60,
			FiveMins:    300,
			FifteenMins: 900,
			OneHour:     3600,
			SixHours:    21600,
			OneDay:      86400,
		}
		for p, seconds := range expected {
			assert.Equal(t, seconds, p.GranularitySeconds(), "period %s", p)
		}
	})

	t.Run("every window fits the page-size cap", func(t *testing.T) {
		for _, p := range All() {
			candles := int(p.Window() / p.Granularity())
			assert.LessOrEqual(t, candles, maxCandlesPerRequest, "period %s", p)
			// The catalog windows are sized to exactly one full page.
			assert.Equal(t, maxCandlesPerRequest, candles, "period %s", p)
		}
	})

	t.Run("accessors panic on unknown period", func(t *testing.T) {
		bogus := Period("42s")
		assert.Panics(t, func() { bogus.Granularity() })
		assert.Panics(t, func() { bogus.Window() })
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Period
		wantErr bool
	}{
		{"1m", OneMin, false},
		{"5m", FiveMins, false},
		{"15m", FifteenMins, false},
		{"1h", OneHour, false},
		{"6h", SixHours, false},
		{"1d", OneDay, false},
		{"2h", "", true},
		{"", "", true},
		{"1H", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateClosed(t *testing.T) {
	t.Run("floors to bucket start minus epsilon", func(t *testing.T) {
		now := time.Date(2025, 3, 5, 14, 37, 9, 0, time.UTC)

		got, err := TruncateClosed(now, OneHour)
		require.NoError(t, err)

		want := time.Date(2025, 3, 5, 13, 59, 59, 999999000, time.UTC)
		assert.Equal(t, want, got)
	})

	t.Run("daily granularity floors to midnight", func(t *testing.T) {
		now := time.Date(2025, 3, 5, 14, 37, 9, 0, time.UTC)

		got, err := TruncateClosed(now, OneDay)
		require.NoError(t, err)

		want := time.Date(2025, 3, 4, 23, 59, 59, 999999000, time.UTC)
		assert.Equal(t, want, got)
	})

	t.Run("idempotent under re-truncation", func(t *testing.T) {
		for _, p := range All() {
			now := time.Date(2025, 3, 5, 14, 37, 9, 123456789, time.UTC)

			once, err := TruncateClosed(now, p)
			require.NoError(t, err)
			twice, err := TruncateClosed(once, p)
			require.NoError(t, err)

			assert.Equal(t, once, twice, "period %s", p)
		}
	})

	t.Run("never reaches the current bucket start", func(t *testing.T) {
		instants := []time.Time{
			time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC), // exactly on a boundary
			time.Date(2025, 3, 5, 14, 37, 9, 0, time.UTC),
			time.Date(2025, 3, 5, 17, 59, 59, 0, time.UTC),
		}
		for _, p := range All() {
			for _, now := range instants {
				got, err := TruncateClosed(now, p)
				require.NoError(t, err)

				bucketStart := now.Truncate(p.Granularity())
				assert.True(t, got.Before(bucketStart),
					"period %s now %s: got %s", p, now, got)
			}
		}
	})

	t.Run("rejects unsupported period", func(t *testing.T) {
		_, err := TruncateClosed(time.Now(), Period("7m"))
		assert.ErrorIs(t, err, ErrUnsupportedPeriod)
	})
}
