// Coinbase Exchange API client used as the candle data source.
//
// Each request waits on a shared token-bucket limiter before dispatch; the
// exchange enforces a hard request-per-second ceiling and answers 429 when
// it is exceeded. Retry policy lives in the caller, not here: the client
// performs exactly one attempt per call and classifies the failure.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnayoung/go-candle-sync/internal/models"
)

const (
	coinbaseBaseURL = "https://api.exchange.coinbase.com"

	productsEndpoint = "/products"
	candlesEndpoint  = "/products/%s/candles"

	// The public exchange API allows 10 requests per second per IP; stay
	// one below the ceiling.
	maxRequestsPerSecond = 9
	rateLimitBurst       = 1

	requestTimeout = 3 * time.Second
)

// CoinbaseClient implements Client against the public Coinbase Exchange API.
type CoinbaseClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	logger      *slog.Logger
}

// Option customizes a CoinbaseClient.
type Option func(*CoinbaseClient)

// WithBaseURL points the client at a different API host (tests).
func WithBaseURL(u string) Option {
	return func(c *CoinbaseClient) { c.baseURL = u }
}

// WithRateLimiter substitutes the request limiter. The limiter is scoped to
// this client instance so independent sync cycles or tests never share
// token budgets.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *CoinbaseClient) { c.rateLimiter = l }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *CoinbaseClient) { c.httpClient = h }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *CoinbaseClient) { c.logger = l.With("component", "coinbase_client") }
}

// NewCoinbaseClient creates a client with a pooled transport and a fresh
// token-bucket limiter.
func NewCoinbaseClient(opts ...Option) *CoinbaseClient {
	c := &CoinbaseClient{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(maxRequestsPerSecond), rateLimitBurst),
		baseURL:     coinbaseBaseURL,
		logger:      slog.Default().With("component", "coinbase_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPairs implements PairProvider via GET /products.
func (c *CoinbaseClient) ListPairs(ctx context.Context) ([]TradingPair, error) {
	body, err := c.get(ctx, c.baseURL+productsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trading pairs: %w", err)
	}

	var pairs []TradingPair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse trading pairs response: %w", err)
	}

	c.logger.Debug("fetched trading pairs", "count", len(pairs))
	return pairs, nil
}

// FetchCandles implements CandleFetcher via GET /products/{pair}/candles.
// The exchange answers an array of [ts, low, high, open, close, volume]
// rows, newest first; numbers are decoded as json.Number so prices
// round-trip without float distortion.
func (c *CoinbaseClient) FetchCandles(ctx context.Context, pair string, granularitySeconds int, start, end int64) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("granularity", strconv.Itoa(granularitySeconds))
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))

	requestURL := fmt.Sprintf(c.baseURL+candlesEndpoint, url.PathEscape(pair)) + "?" + params.Encode()

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", pair, err)
	}

	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse candles response for %s: %w", pair, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := convertCandleRow(pair, row)
		if err != nil {
			c.logger.Warn("skipping malformed candle row", "pair", pair, "error", err)
			continue
		}
		candles = append(candles, candle)
	}

	c.logger.Debug("fetched candles",
		"pair", pair,
		"granularity", granularitySeconds,
		"count", len(candles))
	return candles, nil
}

// get waits for a limiter token, performs one GET and returns the body.
// Non-2xx statuses become *APIError so callers can classify them.
func (c *CoinbaseClient) get(ctx context.Context, requestURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "go-candle-sync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			URL:        requestURL,
			Body:       string(body),
		}
	}

	return body, nil
}

// convertCandleRow maps one [ts, low, high, open, close, volume] wire row
// into a Candle.
func convertCandleRow(pair string, row []json.Number) (models.Candle, error) {
	if len(row) != 6 {
		return models.Candle{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	ts, err := row[0].Int64()
	if err != nil {
		return models.Candle{}, fmt.Errorf("invalid timestamp %q: %w", row[0].String(), err)
	}

	candle := models.Candle{
		Pair:   pair,
		Ts:     ts,
		Low:    row[1].String(),
		High:   row[2].String(),
		Open:   row[3].String(),
		Close:  row[4].String(),
		Volume: row[5].String(),
	}
	if err := candle.Validate(); err != nil {
		return models.Candle{}, err
	}
	return candle, nil
}
