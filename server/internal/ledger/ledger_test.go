package ledger

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMarkSeen(t *testing.T) {
	l := New(time.Minute, 0).WithClock(fixedClock(baseTime))
	if l.Seen("ci|1") {
		t.Fatal("fresh ledger must not report keys as seen")
	}
	l.Mark("ci|1")
	if !l.Seen("ci|1") {
		t.Error("marked key should be seen")
	}
	if l.Seen("ci|2") {
		t.Error("unmarked key should not be seen")
	}
	if l.Len() != 1 {
		t.Errorf("Len: got %d, want 1", l.Len())
	}
}

func TestRetentionRaisedToMinimum(t *testing.T) {
	l := New(time.Minute, 5*time.Minute)
	if got := l.Retention(); got != 5*time.Minute {
		t.Errorf("Retention: got %v, want 5m", got)
	}
}

func TestEvict_DropsOnlyExpiredKeys(t *testing.T) {
	l := New(10*time.Minute, 0).WithClock(fixedClock(baseTime))
	l.Mark("old")
	l.now = fixedClock(baseTime.Add(8 * time.Minute))
	l.Mark("recent")

	if n := l.Evict(baseTime.Add(10 * time.Minute)); n != 0 {
		t.Fatalf("Evict at exactly retention: removed %d, want 0", n)
	}
	if n := l.Evict(baseTime.Add(11 * time.Minute)); n != 1 {
		t.Fatalf("Evict: removed %d, want 1", n)
	}
	if l.Seen("old") {
		t.Error("old key should be evicted")
	}
	if !l.Seen("recent") {
		t.Error("recent key should be kept")
	}
}

func TestRemarkRefreshesAge(t *testing.T) {
	l := New(time.Minute, 0).WithClock(fixedClock(baseTime))
	l.Mark("k")
	l.now = fixedClock(baseTime.Add(50 * time.Second))
	l.Mark("k")

	l.Evict(baseTime.Add(90 * time.Second))
	if !l.Seen("k") {
		t.Error("re-marked key should survive eviction")
	}
}
