// Package exchange defines the interfaces the sync engine consumes to talk
// to a candle data source, plus the Coinbase Exchange API implementation.
//
// The interfaces are small and composable; the engine depends on them, not
// on the concrete client, so tests can substitute fakes freely.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/johnayoung/go-candle-sync/internal/models"
)

// TradingPair is the metadata snapshot for one tradable instrument.
// Delisted pairs are reported so the planner can exclude them explicitly.
type TradingPair struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StatusDelisted is the product status the exchange reports for pairs that
// no longer trade.
const StatusDelisted = "delisted"

// Delisted reports whether the pair is no longer tradable.
func (p TradingPair) Delisted() bool {
	return p.Status == StatusDelisted
}

// PairProvider lists the exchange's tradable instruments. Called once per
// sync cycle.
type PairProvider interface {
	ListPairs(ctx context.Context) ([]TradingPair, error)
}

// CandleFetcher retrieves OHLCV candles for a single pair and window.
//
// Implementations must return candles for buckets inside [start, end],
// surface rate limiting as an *APIError with status 429, and never retry
// a 429 themselves. An empty slice is a valid response for windows with no
// trading activity.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, pair string, granularitySeconds int, start, end int64) ([]models.Candle, error)
}

// Client combines everything the sync engine needs from a data source.
type Client interface {
	PairProvider
	CandleFetcher
}

// APIError is a non-success HTTP response from the exchange.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// IsRateLimited reports whether err is the exchange's request-per-second
// ceiling (HTTP 429). Rate-limited calls must not be retried immediately;
// doing so worsens the limiting condition.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is worth a bounded retry: server-side
// failures and transport errors, but not 4xx responses.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Transport-level failures (timeouts, resets) arrive as plain errors.
	return err != nil && !errors.Is(err, context.Canceled)
}
