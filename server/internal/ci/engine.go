package ci

import (
	"regexp"
	"strings"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/classify"
	"github.com/pipewatch/pipewatch/server/internal/ledger"
)

// NotifyWindow is how long after completion a build can still be announced.
const NotifyWindow = 60 * time.Second

var pullRequestRef = regexp.MustCompile(`^refs/pull/`)

// Predicates buckets builds. Partially succeeded builds count as failures.
var Predicates = classify.Predicates[types.PipelineRecord]{
	Passed: func(r types.PipelineRecord) bool { return r.Status == types.StatusSucceeded },
	Failed: func(r types.PipelineRecord) bool {
		return r.Status == types.StatusFailed || r.Status == types.StatusPartiallySucceeded
	},
	Ongoing: func(r types.PipelineRecord) bool { return r.Status == types.StatusInProgress },
}

// Summary is the per-group partition of the current builds.
type Summary struct {
	Pull  classify.Buckets[types.PipelineRecord]
	Merge classify.Buckets[types.PipelineRecord]
}

// Engine evaluates build checks. It is driven by a single poll loop and is not
// safe for concurrent use.
type Engine struct {
	builds []types.PipelineRecord
	ledger *ledger.Ledger
	now    func() time.Time // injectable for deterministic tests
}

// New returns an Engine that records fired notifications in l.
func New(l *ledger.Ledger) *Engine {
	return &Engine{ledger: l, now: time.Now}
}

// WithClock replaces the engine clock. It returns e for chaining.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SetBuilds replaces the builds evaluated by every check.
func (e *Engine) SetBuilds(builds []types.PipelineRecord) {
	e.builds = builds
}

// Ledger returns the notification ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// IsPullRequest reports whether r validated a pull request.
func IsPullRequest(r types.PipelineRecord) bool {
	return pullRequestRef.MatchString(r.SourceBranch)
}

// Summary partitions builds into pull request and merge groups.
func (e *Engine) Summary() Summary {
	groups := classify.GroupBy(e.builds, func(r types.PipelineRecord) string {
		if IsPullRequest(r) {
			return "pull"
		}
		return "merge"
	}, Predicates)
	return Summary{Pull: groups["pull"], Merge: groups["merge"]}
}

// BrokenCheck reports how many definitions currently end in a failure and how
// long ago the oldest of those failures completed. It returns nil when every
// definition's latest completed build passed.
func (e *Engine) BrokenCheck() *types.PipelineStatus {
	now := e.now()
	sorted := classify.NewestFirst(e.builds, completedAt, now)
	breaks := classify.ScanBreaks(sorted, types.PipelineRecord.DefinitionKey, Predicates)
	if len(breaks) == 0 {
		return nil
	}

	earliest := now
	for _, b := range breaks {
		if t := b.Oldest.CompletionTime; !t.IsZero() && t.Before(earliest) {
			earliest = t
		}
	}
	s := types.CountStatus(types.EventCI, types.ModeBroken, len(breaks), now.Sub(earliest).Milliseconds())
	return &s
}

// BuildingCheck reports in-progress builds and the time since the earliest
// of them started.
func (e *Engine) BuildingCheck() *types.PipelineStatus {
	ongoing := classify.Partition(e.builds, Predicates).Ongoing
	if len(ongoing) == 0 {
		return nil
	}

	now := e.now()
	earliest := now
	for _, r := range ongoing {
		if !r.StartTime.IsZero() && r.StartTime.Before(earliest) {
			earliest = r.StartTime
		}
	}
	s := types.CountStatus(types.EventCI, types.ModeBuilding, len(ongoing), now.Sub(earliest).Milliseconds())
	return &s
}

// BuiltCheck announces the most recently completed build if it passed.
func (e *Engine) BuiltCheck() *types.PipelineStatus {
	return e.oneShot(Predicates.Passed, types.ModeBuilt)
}

// FailedCheck announces the most recently completed build if it failed.
func (e *Engine) FailedCheck() *types.PipelineStatus {
	return e.oneShot(Predicates.Failed, types.ModeBuildFailed)
}

func (e *Engine) oneShot(outcome func(types.PipelineRecord) bool, mode types.Mode) *types.PipelineStatus {
	now := e.now()
	// Input order breaks ties between builds that completed at the same time.
	var completed []types.PipelineRecord
	for _, r := range e.builds {
		if !Predicates.Passed(r) && !Predicates.Failed(r) {
			continue
		}
		if _, ok := r.SettledAt(); ok {
			completed = append(completed, r)
		}
	}
	if len(completed) == 0 {
		return nil
	}

	latest := classify.NewestFirst(completed, settledAt, now)[0]
	if !outcome(latest) || e.ledger.Seen(latest.Key()) {
		return nil
	}
	if now.Sub(settledAt(latest)) > NotifyWindow {
		return nil
	}

	e.ledger.Mark(latest.Key())
	s := types.BranchStatus(types.EventCI, mode, strings.ToUpper(Branch(latest)))
	return &s
}

// Branch returns the branch a build ran for: the pull request source branch for
// pull request validation, otherwise the last segment of the ref.
func Branch(r types.PipelineRecord) string {
	if IsPullRequest(r) {
		return strings.TrimPrefix(r.Trigger(types.TriggerPRSourceBranch), "refs/heads/")
	}
	ref := r.SourceBranch
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func completedAt(r types.PipelineRecord) time.Time { return r.CompletionTime }

func settledAt(r types.PipelineRecord) time.Time {
	t, _ := r.SettledAt()
	return t
}
