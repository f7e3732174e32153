package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	productsBody = `[
		{"id": "BTC-USD", "status": "online"},
		{"id": "ETH-USD", "status": "online"},
		{"id": "LUNA-USD", "status": "delisted"}
	]`

	// Exchange API candle rows: [ts, low, high, open, close, volume],
	// newest first.
	candlesBody = `[
		[1640998800, 47000.01, 47800, 47200, 47600, 2.34567890],
		[1640995200, 46500, 47500, 47000, 47200, 1.23456789]
	]`
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CoinbaseClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCoinbaseClient(
		WithBaseURL(server.URL),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
}

func TestCoinbaseClient_ListPairs(t *testing.T) {
	t.Run("decodes products with status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(productsBody))
		})

		pairs, err := client.ListPairs(context.Background())
		require.NoError(t, err)
		require.Len(t, pairs, 3)

		assert.Equal(t, "BTC-USD", pairs[0].ID)
		assert.False(t, pairs[0].Delisted())
		assert.Equal(t, "LUNA-USD", pairs[2].ID)
		assert.True(t, pairs[2].Delisted())
	})

	t.Run("server error surfaces as APIError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		})

		_, err := client.ListPairs(context.Background())
		require.Error(t, err)
		assert.True(t, IsTransient(err))
		assert.False(t, IsRateLimited(err))
	})
}

func TestCoinbaseClient_FetchCandles(t *testing.T) {
	t.Run("decodes candle rows and query parameters", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products/BTC-USD/candles", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "3600", q.Get("granularity"))
			assert.Equal(t, "1640995200", q.Get("start"))
			assert.Equal(t, "1641002399", q.Get("end"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(candlesBody))
		})

		candles, err := client.FetchCandles(context.Background(),
			"BTC-USD", 3600, 1640995200, 1641002399)
		require.NoError(t, err)
		require.Len(t, candles, 2)

		first := candles[0]
		assert.Equal(t, "BTC-USD", first.Pair)
		assert.Equal(t, int64(1640998800), first.Ts)
		assert.Equal(t, "47000.01", first.Low)
		assert.Equal(t, "47800", first.High)
		assert.Equal(t, "47200", first.Open)
		assert.Equal(t, "47600", first.Close)
		assert.Equal(t, "2.34567890", first.Volume)
	})

	t.Run("empty response means no trading activity", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

		candles, err := client.FetchCandles(context.Background(), "XYZ-USD", 3600, 0, 3600)
		require.NoError(t, err)
		assert.Empty(t, candles)
	})

	t.Run("429 is distinguishable and never retried here", func(t *testing.T) {
		var requests int
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			requests++
			http.Error(w, `{"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
		})

		_, err := client.FetchCandles(context.Background(), "BTC-USD", 3600, 0, 3600)
		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.Equal(t, 1, requests, "client must perform exactly one attempt")
	})

	t.Run("malformed rows are skipped, valid rows kept", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				[1640995200, 46500, 47500, 47000, 47200, 1.5],
				[1640998800, 46500]
			]`))
		})

		candles, err := client.FetchCandles(context.Background(), "BTC-USD", 3600, 0, 7200)
		require.NoError(t, err)
		require.Len(t, candles, 1)
		assert.Equal(t, int64(1640995200), candles[0].Ts)
	})
}

func TestCoinbaseClient_RateLimiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	// 5 req/s, burst 1: three requests need roughly 400ms of admission waits.
	client := NewCoinbaseClient(
		WithBaseURL(server.URL),
		WithRateLimiter(rate.NewLimiter(rate.Limit(5), 1)),
	)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.FetchCandles(context.Background(), "BTC-USD", 3600, 0, 3600)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond,
		"requests should be paced by the limiter")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"not found", &APIError{StatusCode: 404}, false},
		{"rate limited", &APIError{StatusCode: 429}, false},
		{"context canceled", context.Canceled, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
