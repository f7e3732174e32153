package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/go-candle-sync/internal/exchange"
	"github.com/johnayoung/go-candle-sync/internal/models"
	"github.com/johnayoung/go-candle-sync/internal/period"
	"github.com/johnayoung/go-candle-sync/internal/storage"
)

// Report summarizes one sync cycle for the caller: how many rows landed in
// storage and how many ranges failed. Faults are reported, never silently
// dropped, but they also never block progress on the healthy pairs.
type Report struct {
	RowsWritten int64
	FaultCount  int
}

// Service is the engine's single entry point. It owns nothing persistent:
// the exchange client carries the per-cycle rate limiter and storage is the
// sole source of truth for what has already been synced.
type Service struct {
	client       exchange.Client
	store        storage.Store
	orchestrator *Orchestrator
	reconciler   *Reconciler
	logger       *slog.Logger
	now          func() time.Time
}

// NewService wires a sync service from its collaborators.
func NewService(client exchange.Client, store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:       client,
		store:        store,
		orchestrator: NewOrchestrator(client, logger),
		reconciler:   NewReconciler(store, logger),
		logger:       logger.With("component", "sync_service"),
		now:          time.Now,
	}
}

// WithRetryPolicy overrides the orchestrator's per-range retry policy.
func (s *Service) WithRetryPolicy(wait time.Duration, maxAttempts uint64) *Service {
	s.orchestrator.WithRetryPolicy(wait, maxAttempts)
	return s
}

// WithClock substitutes the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SyncPeriod brings every active pair's candle table up to the last closed
// candle boundary for p: read markers, plan gaps, fetch, reconcile.
// An empty plan reports zero work and is not an error.
func (s *Service) SyncPeriod(ctx context.Context, p period.Period) (Report, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "period", p.String())
	start := s.now()

	active, delisted, err := s.listPairs(ctx)
	if err != nil {
		return Report{}, err
	}
	logger.Info("starting sync cycle", "active_pairs", len(active), "delisted_pairs", len(delisted))

	markers, err := s.store.LatestTimestamps(ctx, p, active, delisted)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read sync markers: %w", err)
	}

	ranges, err := Plan(active, delisted, markers, p, s.now())
	if err != nil {
		return Report{}, fmt.Errorf("failed to plan sync ranges: %w", err)
	}
	if len(ranges) == 0 {
		logger.Info("nothing to sync")
		return Report{}, nil
	}
	logger.Info("planned fetch ranges", "ranges", len(ranges), "markers", len(markers))

	report, err := s.fetchAndReconcile(ctx, ranges, p)
	if err != nil {
		return report, err
	}

	logger.Info("sync cycle complete",
		"rows_written", report.RowsWritten,
		"faults", report.FaultCount,
		"duration", s.now().Sub(start))
	return report, nil
}

// SyncWindow fetches an explicit [from, to] window for every active pair,
// bootstrapping empty storage or refilling a historical span. The upper
// bound is truncated to the last closed candle before to, and the window
// is split into API-legal ranges per pair.
func (s *Service) SyncWindow(ctx context.Context, p period.Period, from, to time.Time) (Report, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "period", p.String())

	upper, err := period.TruncateClosed(to, p)
	if err != nil {
		return Report{}, err
	}
	if upper.Before(from) {
		return Report{}, fmt.Errorf("%w: window [%s, %s] contains no closed candle",
			period.ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	active, delisted, err := s.listPairs(ctx)
	if err != nil {
		return Report{}, err
	}

	spans, err := period.Split(from, upper, p)
	if err != nil {
		return Report{}, fmt.Errorf("failed to split window: %w", err)
	}

	ranges := make([]models.Range, 0, len(spans)*len(active))
	for _, pair := range active {
		for _, span := range spans {
			ranges = append(ranges, models.Range{Pair: pair, Period: p, From: span.From, To: span.To})
		}
	}
	if len(ranges) == 0 {
		logger.Info("nothing to sync")
		return Report{}, nil
	}
	logger.Info("starting window sync",
		"from", from.UTC().Format(time.RFC3339),
		"to", upper.UTC().Format(time.RFC3339Nano),
		"active_pairs", len(active),
		"delisted_pairs", len(delisted),
		"ranges", len(ranges))

	report, err := s.fetchAndReconcile(ctx, ranges, p)
	if err != nil {
		return report, err
	}

	logger.Info("window sync complete",
		"rows_written", report.RowsWritten,
		"faults", report.FaultCount)
	return report, nil
}

// listPairs partitions the exchange's metadata snapshot into active and
// delisted pair IDs.
func (s *Service) listPairs(ctx context.Context) (active, delisted []string, err error) {
	pairs, err := s.client.ListPairs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list trading pairs: %w", err)
	}
	for _, p := range pairs {
		if p.Delisted() {
			delisted = append(delisted, p.ID)
		} else {
			active = append(active, p.ID)
		}
	}
	return active, delisted, nil
}

func (s *Service) fetchAndReconcile(ctx context.Context, ranges []models.Range, p period.Period) (Report, error) {
	results := s.orchestrator.FetchAll(ctx, ranges)

	written, faults, err := s.reconciler.Reconcile(ctx, results, p)
	if err != nil {
		return Report{RowsWritten: written, FaultCount: len(faults)}, err
	}
	return Report{RowsWritten: written, FaultCount: len(faults)}, nil
}
