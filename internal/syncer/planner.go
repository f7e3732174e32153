// Package syncer implements the incremental candle synchronization engine:
// planning per-pair catch-up gaps, fetching them concurrently under a rate
// limit, and reconciling the results into storage.
package syncer

import (
	"fmt"
	"sort"
	"time"

	"github.com/johnayoung/go-candle-sync/internal/models"
	"github.com/johnayoung/go-candle-sync/internal/period"
)

// Plan computes the API-legal fetch ranges needed to bring every active
// pair up to the last closed candle boundary before now.
//
// Each marker contributes the gap [marker+granularity, truncate(now)],
// restricted to pairs that are active and not delisted. Active pairs with
// no marker yet inherit the earliest lower bound among the marker-derived
// gaps; this bootstrap policy trades historical completeness for one less
// metadata round-trip and is intentional. Gaps too short to contain a
// single closed candle are dropped. An empty plan means nothing to sync,
// not an error: with no markers at all the caller is expected to run an
// explicit window sync first.
//
// Output ranges are grouped per pair and chronological within a pair.
func Plan(active, delisted []string, markers []models.SyncMarker, p period.Period, now time.Time) ([]models.Range, error) {
	upper, err := period.TruncateClosed(now, p)
	if err != nil {
		return nil, err
	}

	activeSet := make(map[string]bool, len(active))
	for _, pair := range active {
		activeSet[pair] = true
	}
	delistedSet := make(map[string]bool, len(delisted))
	for _, pair := range delisted {
		delistedSet[pair] = true
	}

	granularity := p.Granularity()

	type gap struct {
		pair string
		from time.Time
	}

	gaps := make([]gap, 0, len(markers))
	seen := make(map[string]bool, len(markers))
	var earliest time.Time
	for _, m := range markers {
		if !activeSet[m.Pair] || delistedSet[m.Pair] {
			continue
		}
		from := time.Unix(m.MaxTs, 0).UTC().Add(granularity)
		gaps = append(gaps, gap{pair: m.Pair, from: from})
		seen[m.Pair] = true
		if earliest.IsZero() || from.Before(earliest) {
			earliest = from
		}
	}

	// First-ever run: no history to extend, so nothing to do here.
	if len(gaps) == 0 {
		return nil, nil
	}

	// Pairs listed after the last cycle have no marker; they join at the
	// oldest in-flight lower bound rather than a pair-specific genesis.
	var fresh []string
	for _, pair := range active {
		if !seen[pair] && !delistedSet[pair] {
			fresh = append(fresh, pair)
		}
	}
	sort.Strings(fresh)
	for _, pair := range fresh {
		gaps = append(gaps, gap{pair: pair, from: earliest})
	}

	minSpan := granularity - period.Epsilon

	var ranges []models.Range
	for _, g := range gaps {
		if upper.Sub(g.from) < minSpan {
			continue
		}
		spans, err := period.Split(g.from, upper, p)
		if err != nil {
			return nil, fmt.Errorf("failed to split gap for %s: %w", g.pair, err)
		}
		for _, span := range spans {
			ranges = append(ranges, models.Range{
				Pair:   g.pair,
				Period: p,
				From:   span.From,
				To:     span.To,
			})
		}
	}

	return ranges, nil
}
