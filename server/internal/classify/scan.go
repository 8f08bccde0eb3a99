package classify

import (
	"slices"
	"time"
)

// NewestFirst returns a copy of records stably sorted by completion time,
// most recent first. A zero completion time sorts as now.
func NewestFirst[T any](records []T, completedAt func(T) time.Time, now time.Time) []T {
	at := func(r T) time.Time {
		if t := completedAt(r); !t.IsZero() {
			return t
		}
		return now
	}
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b T) int {
		return at(b).Compare(at(a))
	})
	return out
}

// Break is one broken definition found by ScanBreaks.
type Break[T any] struct {
	Definition string
	// Latest is the first failure seen for the definition, i.e. the newest.
	Latest T
	// Oldest is the last failure seen before the scan reached a pass for the
	// definition or ran out of records.
	Oldest T
}

// ScanBreaks walks records (already newest first) and reports every
// definition whose newest completed outcome is a failure. Breaks are returned
// in the order the scan found them. Records that are neither pass nor fail are
// skipped.
func ScanBreaks[T any](newestFirst []T, definitionOf func(T) string, p Predicates[T]) []Break[T] {
	passed := make(map[string]bool)
	index := make(map[string]int)
	var out []Break[T]

	for _, r := range newestFirst {
		def := definitionOf(r)
		switch {
		case call(p.Passed, r):
			passed[def] = true
		case call(p.Failed, r):
			if passed[def] {
				continue
			}
			if i, ok := index[def]; ok {
				out[i].Oldest = r
				continue
			}
			index[def] = len(out)
			out = append(out, Break[T]{Definition: def, Latest: r, Oldest: r})
		}
	}
	return out
}
