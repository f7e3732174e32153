// Candle sync CLI
//
// Incrementally synchronizes Coinbase OHLC candles into SQLite.
//
// Usage:
//
//	candlesync sync --period 1h
//	candlesync backfill --period 1d --from 2020-01-01 --to 2024-01-01
//
// Configuration comes from candlesync.json (see --config) with environment
// variable overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnayoung/go-candle-sync/internal/config"
	"github.com/johnayoung/go-candle-sync/internal/exchange"
	"github.com/johnayoung/go-candle-sync/internal/logger"
	"github.com/johnayoung/go-candle-sync/internal/period"
	"github.com/johnayoung/go-candle-sync/internal/storage"
	"github.com/johnayoung/go-candle-sync/internal/syncer"
)

const defaultConfigFile = "candlesync.json"

// Exit codes following standard conventions.
const (
	exitSuccess     = 0
	exitUsageError  = 1
	exitConfigError = 2
	exitRunError    = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsageError
	}

	command := args[0]
	switch command {
	case "sync", "backfill":
	case "help", "-h", "--help":
		usage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		return exitUsageError
	}

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := flags.String("config", defaultConfigFile, "path to configuration file")
	periodArg := flags.String("period", "1h", "candle period: 1m, 5m, 15m, 1h, 6h, 1d")
	fromArg := flags.String("from", "", "window start, YYYY-MM-DD or RFC 3339 (backfill only)")
	toArg := flags.String("to", "", "window end, YYYY-MM-DD or RFC 3339 (backfill defaults to now)")
	if err := flags.Parse(args[1:]); err != nil {
		return exitUsageError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	log, logCloser, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		return exitConfigError
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	p, err := period.Parse(*periodArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid period: %v\n", err)
		return exitUsageError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStorage(cfg.Storage.Path, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		return exitRunError
	}
	defer store.Close()

	if err := store.Initialize(ctx); err != nil {
		log.Error("failed to initialize storage", "error", err)
		return exitRunError
	}

	clientOpts := []exchange.Option{
		exchange.WithLogger(log),
		exchange.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Exchange.RateLimit), 1)),
		exchange.WithHTTPClient(&http.Client{Timeout: cfg.Exchange.Timeout()}),
	}
	if cfg.Exchange.BaseURL != "" {
		clientOpts = append(clientOpts, exchange.WithBaseURL(cfg.Exchange.BaseURL))
	}
	client := exchange.NewCoinbaseClient(clientOpts...)

	service := syncer.NewService(client, store, log).
		WithRetryPolicy(cfg.Sync.RetryWait(), uint64(cfg.Sync.RetryAttempts))

	var report syncer.Report
	switch command {
	case "sync":
		report, err = service.SyncPeriod(ctx, p)
	case "backfill":
		from, to, perr := parseWindow(*fromArg, *toArg)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "invalid window: %v\n", perr)
			return exitUsageError
		}
		report, err = service.SyncWindow(ctx, p, from, to)
	}
	if err != nil {
		log.Error("sync failed", "command", command, "error", err)
		return exitRunError
	}

	fmt.Printf("%s %s: %d rows written, %d faults\n", command, p, report.RowsWritten, report.FaultCount)
	return exitSuccess
}

// parseWindow parses the backfill bounds. The end defaults to now; the
// start is required.
func parseWindow(fromArg, toArg string) (time.Time, time.Time, error) {
	if fromArg == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required for backfill")
	}
	from, err := parseTime(fromArg)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to := time.Now().UTC()
	if toArg != "" {
		if to, err = parseTime(toArg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as YYYY-MM-DD or RFC 3339", s)
}

func usage() {
	fmt.Fprint(os.Stderr, `candlesync - incremental Coinbase OHLC candle synchronization

Usage:
  candlesync sync     --period 1h [--config candlesync.json]
  candlesync backfill --period 1d --from 2020-01-01 [--to 2024-01-01]

Commands:
  sync      catch every active pair up to the last closed candle
  backfill  fetch an explicit window for every active pair
`)
}
