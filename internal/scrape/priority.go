// Package scrape contains the cycle coordinator, the periodic scheduler,
// and the stale-run watchdog.
package scrape

import (
	"sort"

	"pawarisk/pkg/types"
)

// Prioritize orders targets for scraping: soonest kickoff first, then wider
// platform coverage, then reference-platform presence as the tiebreak.
// Sorting is stable-keyed on event id so identical inputs produce identical
// order.
func Prioritize(targets []types.EventTarget) []types.EventTarget {
	out := make([]types.EventTarget, len(targets))
	copy(out, targets)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Kickoff.Equal(b.Kickoff) {
			return a.Kickoff.Before(b.Kickoff)
		}
		if a.Coverage() != b.Coverage() {
			return a.Coverage() > b.Coverage()
		}
		if a.HasBetPawa() != b.HasBetPawa() {
			return a.HasBetPawa()
		}
		return a.EventID < b.EventID
	})
	return out
}

// Batches partitions ordered targets into slices of at most size.
func Batches(targets []types.EventTarget, size int) [][]types.EventTarget {
	if size <= 0 {
		size = 50
	}
	var out [][]types.EventTarget
	for start := 0; start < len(targets); start += size {
		end := start + size
		if end > len(targets) {
			end = len(targets)
		}
		out = append(out, targets[start:end])
	}
	return out
}
