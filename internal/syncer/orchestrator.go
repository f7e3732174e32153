package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/johnayoung/go-candle-sync/internal/exchange"
	"github.com/johnayoung/go-candle-sync/internal/models"
)

const (
	defaultRetryWait   = 3 * time.Second
	defaultMaxAttempts = 3
)

// FetchResult is the outcome of fetching exactly one range: either the
// candle payload or the error that exhausted its attempts. Failures are
// values, not panics, so one bad pair never aborts its siblings.
type FetchResult struct {
	Range   models.Range
	Candles []models.Candle
	Err     error
}

// Orchestrator dispatches a batch of fetch ranges concurrently. The shared
// rate limiter lives inside the candle fetcher, so concurrency here is
// effectively bounded by the exchange's request-per-second ceiling.
type Orchestrator struct {
	fetcher     exchange.CandleFetcher
	logger      *slog.Logger
	retryWait   time.Duration
	maxAttempts uint64
}

// NewOrchestrator creates an orchestrator with fixed-delay retry defaults
// matching the upstream client's tolerance (3 attempts, 3s apart).
func NewOrchestrator(fetcher exchange.CandleFetcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		logger:      logger.With("component", "orchestrator"),
		retryWait:   defaultRetryWait,
		maxAttempts: defaultMaxAttempts,
	}
}

// WithRetryPolicy overrides the per-range retry policy.
func (o *Orchestrator) WithRetryPolicy(wait time.Duration, maxAttempts uint64) *Orchestrator {
	o.retryWait = wait
	if maxAttempts > 0 {
		o.maxAttempts = maxAttempts
	}
	return o
}

// FetchAll fetches every range concurrently and returns one result per
// input range, in input order, regardless of completion order. A failing
// range surfaces in its slot; it never cancels or blocks the others.
func (o *Orchestrator) FetchAll(ctx context.Context, ranges []models.Range) []FetchResult {
	results := make([]FetchResult, len(ranges))

	var wg sync.WaitGroup
	for i, rng := range ranges {
		wg.Add(1)
		go func(i int, rng models.Range) {
			defer wg.Done()
			candles, err := o.fetchOne(ctx, rng)
			results[i] = FetchResult{Range: rng, Candles: candles, Err: err}
		}(i, rng)
	}
	wg.Wait()

	return results
}

// fetchOne performs one range fetch with bounded fixed-delay retry.
// Transient faults (transport errors, 5xx) are retried up to the attempt
// budget; a 429 is terminal for this attempt window, since hammering a
// rate-limited endpoint only extends the limiting condition. Other client
// errors are not retried at all.
func (o *Orchestrator) fetchOne(ctx context.Context, rng models.Range) ([]models.Candle, error) {
	var candles []models.Candle

	operation := func() error {
		var err error
		candles, err = o.fetcher.FetchCandles(ctx,
			rng.Pair,
			rng.Period.GranularitySeconds(),
			rng.From.Unix(),
			rng.To.Unix())
		if err == nil {
			return nil
		}

		if exchange.IsRateLimited(err) {
			o.logger.Warn("rate limited, not retrying range", "range", rng.String())
			return backoff.Permanent(err)
		}
		if !exchange.IsTransient(err) {
			return backoff.Permanent(err)
		}

		o.logger.Warn("transient fetch fault, will retry",
			"range", rng.String(),
			"error", err)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryWait), o.maxAttempts-1),
		ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return candles, nil
}
