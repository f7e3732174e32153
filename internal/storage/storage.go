// Package storage persists candle rows to SQLite, one table per supported
// period, and answers the per-pair high-water marks the planner reads.
package storage

import (
	"context"
	"fmt"

	"github.com/johnayoung/go-candle-sync/internal/models"
	"github.com/johnayoung/go-candle-sync/internal/period"
)

// Reader answers the last-synced markers for a period: the maximum candle
// timestamp per pair, restricted to the include set minus the exclude set.
type Reader interface {
	LatestTimestamps(ctx context.Context, p period.Period, include, exclude []string) ([]models.SyncMarker, error)
}

// Writer appends candle rows to the table owned by a period.
// Returns the number of rows actually inserted; rows already present for
// the same (pair, ts) are ignored rather than duplicated.
type Writer interface {
	AppendRows(ctx context.Context, rows []models.Candle, p period.Period) (int64, error)
}

// Store combines everything the sync engine needs from storage.
type Store interface {
	Reader
	Writer
	Initialize(ctx context.Context) error
	Close() error
}

// StorageError wraps a storage-level failure with the operation and table
// it occurred in. Write failures abort the reconcile call that issued them
// and are surfaced to the caller, never retried automatically.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage %s on %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a StorageError with context information.
func NewStorageError(op, table string, err error) *StorageError {
	return &StorageError{Op: op, Table: table, Err: err}
}
