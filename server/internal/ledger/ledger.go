// Package ledger remembers which one-shot notifications have already fired.
package ledger

import "time"

// DefaultRetention keeps keys well past the longest notification window.
const DefaultRetention = 15 * time.Minute

// Ledger is a set of reported pipeline keys with the time each was marked.
// Keys older than the retention are dropped by Evict. A Ledger is owned by a
// single poll loop and is not safe for concurrent use.
type Ledger struct {
	retention time.Duration
	entries   map[string]time.Time
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Ledger. A retention shorter than minRetention is raised to it
// so a key cannot be forgotten while its record is still inside a window.
func New(retention, minRetention time.Duration) *Ledger {
	if retention < minRetention {
		retention = minRetention
	}
	return &Ledger{
		retention: retention,
		entries:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// WithClock replaces the clock used by Mark. It returns l for chaining.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Seen reports whether key has been marked and not yet evicted.
func (l *Ledger) Seen(key string) bool {
	_, ok := l.entries[key]
	return ok
}

// Mark records key as reported.
func (l *Ledger) Mark(key string) {
	l.entries[key] = l.now()
}

// Len returns the number of retained keys.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Retention returns the effective retention.
func (l *Ledger) Retention() time.Duration {
	return l.retention
}

// Evict drops keys marked more than the retention before now and returns how
// many were removed.
func (l *Ledger) Evict(now time.Time) int {
	cutoff := now.Add(-l.retention)
	removed := 0
	for k, at := range l.entries {
		if at.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}
