package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pipewatch/pipewatch/server/internal/poller"
)

// Entry is the latest cycle of one project together with the time it was stored.
type Entry struct {
	Cycle     poller.Cycle
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory cycle store, keyed by project.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Publish stores c as the latest cycle of c.Project. It satisfies
// poller.Publisher.
func (s *Store) Publish(c poller.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.Project] = &Entry{
		Cycle:     c,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for project. The entry may be stale if TTL has elapsed;
// use Live to exclude those.
func (s *Store) Get(project string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[project]
	return e, ok
}

// Live returns the entry for project only if it is within the TTL.
func (s *Store) Live(project string) (*Entry, bool) {
	e, ok := s.Get(project)
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return nil, false
	}
	return e, true
}

// List returns all entries within the TTL, sorted by project.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle.Project < out[j].Cycle.Project })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// TTL returns the configured retention.
func (s *Store) TTL() time.Duration { return s.ttl }

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for project, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, project)
			removed++
		}
	}
	return removed
}

// Run evicts stale entries every half TTL (at least once a second) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale projects", "count", n)
			}
		}
	}
}
