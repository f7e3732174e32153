// Package models provides the data structures moved between the fetch,
// planning and storage layers: candle rows, request ranges and sync markers.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-candle-sync/internal/period"
)

// Candle is one persisted OHLCV row. Prices and volume are decimal strings
// exactly as the exchange reported them; Ts is the bucket start in epoch
// seconds.
type Candle struct {
	Pair   string `json:"pair" db:"pair_name"`
	Ts     int64  `json:"ts" db:"ts"`
	Open   string `json:"open" db:"open"`
	High   string `json:"high" db:"high"`
	Low    string `json:"low" db:"low"`
	Close  string `json:"close" db:"close"`
	Volume string `json:"volume" db:"volume"`
}

// ValidationError reports which candle field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the candle carries a pair, a positive timestamp and
// numeric OHLCV fields. Volume may be zero (no trades in the bucket);
// prices must parse but are otherwise taken as the exchange sent them.
func (c *Candle) Validate() error {
	if c.Pair == "" {
		return &ValidationError{Field: "pair", Message: "pair cannot be empty"}
	}
	if c.Ts <= 0 {
		return &ValidationError{Field: "ts", Message: "timestamp must be positive epoch seconds"}
	}

	fields := []struct {
		name  string
		value string
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
	}
	for _, f := range fields {
		if _, err := decimal.NewFromString(f.value); err != nil {
			return &ValidationError{Field: f.name, Message: fmt.Sprintf("invalid decimal %q: %v", f.value, err)}
		}
	}
	return nil
}

// Normalize re-serializes every numeric field through decimal so rows from
// different response encodings (plain, exponent notation, trailing zeros)
// land in storage with one consistent representation.
func (c *Candle) Normalize() error {
	norm := func(field, value string) (string, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return "", &ValidationError{Field: field, Message: fmt.Sprintf("invalid decimal %q: %v", value, err)}
		}
		return d.String(), nil
	}

	var err error
	if c.Open, err = norm("open", c.Open); err != nil {
		return err
	}
	if c.High, err = norm("high", c.High); err != nil {
		return err
	}
	if c.Low, err = norm("low", c.Low); err != nil {
		return err
	}
	if c.Close, err = norm("close", c.Close); err != nil {
		return err
	}
	c.Volume, err = norm("volume", c.Volume)
	return err
}

// Time returns the candle bucket start as a UTC time.
func (c *Candle) Time() time.Time {
	return time.Unix(c.Ts, 0).UTC()
}

func (c *Candle) String() string {
	return fmt.Sprintf("Candle{Pair: %s, Ts: %d, O: %s, H: %s, L: %s, C: %s, V: %s}",
		c.Pair, c.Ts, c.Open, c.High, c.Low, c.Close, c.Volume)
}

// Range is one API-legal fetch request: a pair, a period and an inclusive
// [From, To] window sized by the range splitter. Ranges are created by the
// planner and consumed exactly once by the orchestrator.
type Range struct {
	Pair   string
	Period period.Period
	From   time.Time
	To     time.Time
}

func (r Range) String() string {
	return fmt.Sprintf("%s %s [%s, %s]", r.Pair, r.Period,
		r.From.UTC().Format(time.RFC3339Nano), r.To.UTC().Format(time.RFC3339Nano))
}

// SyncMarker records the maximum candle timestamp already present in
// storage for one (pair, period) combination. Storage is the sole owner;
// markers are read once per sync cycle and never cached across cycles.
type SyncMarker struct {
	Pair  string
	MaxTs int64
}
