package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnayoung/go-candle-sync/internal/models"
	"github.com/johnayoung/go-candle-sync/internal/period"
	"github.com/johnayoung/go-candle-sync/internal/storage"
)

// Fault is one per-range failure carried out of a sync cycle for
// reporting. The range identifies which pair and window were affected.
type Fault struct {
	Range models.Range
	Err   error
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Range.String(), f.Err)
}

// Reconciler turns a batch of fetch results into storage rows: failures
// are collected and reported, successes are flattened, normalized and
// appended to the period's table.
type Reconciler struct {
	writer storage.Writer
	logger *slog.Logger
}

// NewReconciler creates a reconciler writing through the given storage.
func NewReconciler(writer storage.Writer, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		writer: writer,
		logger: logger.With("component", "reconciler"),
	}
}

// Reconcile partitions results into successes and faults, logs every fault
// without aborting, drops empty payloads (a window with no trading
// activity is not an error) and appends the remaining rows.
//
// A storage-level failure aborts this call and is surfaced; rows already
// committed stay committed, and the unique (pair, ts) index makes a replay
// of the same cycle idempotent.
func (r *Reconciler) Reconcile(ctx context.Context, results []FetchResult, p period.Period) (int64, []Fault, error) {
	var faults []Fault
	var rows []models.Candle

	for _, res := range results {
		if res.Err != nil {
			faults = append(faults, Fault{Range: res.Range, Err: res.Err})
			continue
		}
		if len(res.Candles) == 0 {
			continue
		}
		for _, c := range res.Candles {
			if err := c.Normalize(); err != nil {
				faults = append(faults, Fault{Range: res.Range, Err: err})
				continue
			}
			rows = append(rows, c)
		}
	}

	for _, f := range faults {
		r.logger.Error("range failed", "range", f.Range.String(), "error", f.Err)
	}

	written, err := r.writer.AppendRows(ctx, rows, p)
	if err != nil {
		return 0, faults, fmt.Errorf("failed to append candle rows: %w", err)
	}

	r.logger.Info("reconciled fetch results",
		"period", p.String(),
		"ranges", len(results),
		"faults", len(faults),
		"rows_written", written)
	return written, faults, nil
}
