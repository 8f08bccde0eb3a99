package cd

import (
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/classify"
	"github.com/pipewatch/pipewatch/server/internal/ledger"
)

// NotifyWindow is how long after completion a deployment can still be announced.
const NotifyWindow = 5 * time.Minute

// Predicates buckets deployments.
var Predicates = classify.Predicates[types.PipelineRecord]{
	Passed: func(r types.PipelineRecord) bool { return r.Status == types.StatusSucceeded },
	Failed: func(r types.PipelineRecord) bool {
		return r.Status == types.StatusFailed || r.Status == types.StatusPartiallySucceeded
	},
	Ongoing: func(r types.PipelineRecord) bool { return r.Status == types.StatusInProgress },
}

// IsPending reports whether r is waiting on an approval.
func IsPending(r types.PipelineRecord) bool {
	return r.Operation == types.OperationPending
}

// Summary is the single-group partition of the current deployments.
type Summary struct {
	Deploy classify.Buckets[types.PipelineRecord]
}

// Engine evaluates deployment checks for one poll loop. It is not safe for
// concurrent use.
type Engine struct {
	deploys []types.PipelineRecord
	ledger  *ledger.Ledger
	now     func() time.Time
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

// SetDeploys replaces the deployments evaluated by every check.
func (e *Engine) SetDeploys(deploys []types.PipelineRecord) {
	e.deploys = deploys
}

// Ledger returns the notification ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

func (e *Engine) Summary() Summary {
	return Summary{Deploy: classify.Partition(e.deploys, Predicates)}
}

// DeployBrokenCheck names the first release definition, newest first, whose
// latest completed deployment failed.
func (e *Engine) DeployBrokenCheck() *types.PipelineStatus {
	sorted := classify.NewestFirst(e.deploys, completedAt, e.now())
	breaks := classify.ScanBreaks(sorted, types.PipelineRecord.DefinitionKey, Predicates)
	if len(breaks) == 0 {
		return nil
	}
	return branchStatus(types.ModeDeployBroken, breaks[0].Latest)
}

// DeployingCheck names the first in-progress deployment.
func (e *Engine) DeployingCheck() *types.PipelineStatus {
	for _, r := range e.deploys {
		if Predicates.Ongoing(r) {
			return branchStatus(types.ModeDeploying, r)
		}
	}
	return nil
}

// PendingCheck names the first deployment awaiting approval.
func (e *Engine) PendingCheck() *types.PipelineStatus {
	for _, r := range e.deploys {
		if IsPending(r) {
			return branchStatus(types.ModePending, r)
		}
	}
	return nil
}

// DeployFailureCheck announces the latest deployment if it failed.
func (e *Engine) DeployFailureCheck() *types.PipelineStatus {
	return e.oneShot(types.ModeDeployFailed)
}

// PendingStartCheck announces the latest deployment if it is awaiting approval.
func (e *Engine) PendingStartCheck() *types.PipelineStatus {
	return e.oneShot(types.ModePending)
}

// DeploySuccessCheck announces the latest deployment if it succeeded.
func (e *Engine) DeploySuccessCheck() *types.PipelineStatus {
	return e.oneShot(types.ModeDeployed)
}

// outcome maps a completed or pending deployment to its notification mode.
// A failure wins over a pending approval, and so does a success.
func outcome(r types.PipelineRecord) (types.Mode, bool) {
	switch {
	case Predicates.Failed(r):
		return types.ModeDeployFailed, true
	case Predicates.Passed(r):
		return types.ModeDeployed, true
	case IsPending(r):
		return types.ModePending, true
	default:
		return "", false
	}
}

func (e *Engine) oneShot(want types.Mode) *types.PipelineStatus {
	now := e.now()
	var candidates []types.PipelineRecord
	for _, r := range e.deploys {
		if _, ok := outcome(r); !ok {
			continue
		}
		if _, ok := r.SettledAt(); ok {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	latest := classify.NewestFirst(candidates, settledAt, now)[0]
	if mode, _ := outcome(latest); mode != want || e.ledger.Seen(latest.Key()) {
		return nil
	}
	// A pending approval has no completion time; its start anchors the window
	// so it ages out before the ledger forgets it.
	if now.Sub(settledAt(latest)) > NotifyWindow {
		return nil
	}

	e.ledger.Mark(latest.Key())
	return branchStatus(want, latest)
}

func branchStatus(mode types.Mode, r types.PipelineRecord) *types.PipelineStatus {
	s := types.BranchStatus(types.EventCD, mode, r.DefinitionName)
	return &s
}

func completedAt(r types.PipelineRecord) time.Time { return r.CompletionTime }

func settledAt(r types.PipelineRecord) time.Time {
	t, _ := r.SettledAt()
	return t
}
