package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/johnayoung/go-candle-sync/internal/models"
	"github.com/johnayoung/go-candle-sync/internal/period"
)

// SQLiteStorage implements Store on a single SQLite database file.
// One candles table exists per supported period; rows are keyed by
// (pair_name, ts) through a unique index so re-running a sync cycle over an
// already-covered gap is idempotent.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// NewSQLiteStorage opens (or creates) the database at dbPath. Use
// ":memory:" for an in-memory database in tests.
func NewSQLiteStorage(dbPath string, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, NewStorageError("open", "", fmt.Errorf("failed to open sqlite database: %w", err))
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under the concurrent reconcile path.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

// tableName returns the candles table for a period, e.g. "candles_1h".
func tableName(p period.Period) string {
	return "candles_" + p.TableSuffix()
}

// Initialize creates the per-period candle tables and their indexes.
func (s *SQLiteStorage) Initialize(ctx context.Context) error {
	s.logger.Info("initializing sqlite storage", "db_path", s.dbPath)

	for _, p := range period.All() {
		if err := s.createCandlesTable(ctx, p); err != nil {
			return err
		}
	}

	s.logger.Info("sqlite storage initialized")
	return nil
}

func (s *SQLiteStorage) createCandlesTable(ctx context.Context, p period.Period) error {
	table := tableName(p)

	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair_name TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_pair_ts ON %[1]s(pair_name, ts);`, table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return NewStorageError("initialize", table, fmt.Errorf("failed to create table: %w", err))
	}
	return nil
}

// LatestTimestamps implements Reader. Markers are returned for pairs in the
// include set and never for pairs in the exclude set; pairs with no rows
// yet simply do not appear.
func (s *SQLiteStorage) LatestTimestamps(ctx context.Context, p period.Period, include, exclude []string) ([]models.SyncMarker, error) {
	table := tableName(p)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT pair_name, MAX(ts) FROM %s GROUP BY pair_name`, table))
	if err != nil {
		return nil, NewStorageError("latest_timestamps", table, err)
	}
	defer rows.Close()

	included := make(map[string]bool, len(include))
	for _, pair := range include {
		included[pair] = true
	}
	excluded := make(map[string]bool, len(exclude))
	for _, pair := range exclude {
		excluded[pair] = true
	}

	var markers []models.SyncMarker
	for rows.Next() {
		var m models.SyncMarker
		if err := rows.Scan(&m.Pair, &m.MaxTs); err != nil {
			return nil, NewStorageError("latest_timestamps", table, err)
		}
		if excluded[m.Pair] {
			continue
		}
		if len(included) > 0 && !included[m.Pair] {
			continue
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("latest_timestamps", table, err)
	}

	s.logger.Debug("read sync markers", "table", table, "count", len(markers))
	return markers, nil
}

// AppendRows implements Writer. All rows go through one transaction with a
// prepared INSERT OR IGNORE, so a crash mid-call leaves either none or all
// of this call's rows, and replayed rows never duplicate.
func (s *SQLiteStorage) AppendRows(ctx context.Context, candles []models.Candle, p period.Period) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	table := tableName(p)
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewStorageError("append", table, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (pair_name, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, table))
	if err != nil {
		return 0, NewStorageError("append", table, fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	var written int64
	for _, c := range candles {
		res, err := stmt.ExecContext(ctx, c.Pair, c.Ts, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return 0, NewStorageError("append", table, fmt.Errorf("failed to insert row for %s@%d: %w", c.Pair, c.Ts, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, NewStorageError("append", table, err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, NewStorageError("append", table, fmt.Errorf("failed to commit: %w", err))
	}

	s.logger.Debug("appended candle rows",
		"table", table,
		"rows", written,
		"skipped", int64(len(candles))-written,
		"duration", time.Since(start))
	return written, nil
}

// CountRows returns the number of rows stored for a pair, or for every pair
// when pair is empty. Used by the CLI status output.
func (s *SQLiteStorage) CountRows(ctx context.Context, p period.Period, pair string) (int64, error) {
	table := tableName(p)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	args := []any{}
	if strings.TrimSpace(pair) != "" {
		query += ` WHERE pair_name = ?`
		args = append(args, pair)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, NewStorageError("count", table, err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
