package types

import "time"

// CompletionStatus is the provider-reported state of a build or deployment.
type CompletionStatus string

const (
	StatusSucceeded          CompletionStatus = "succeeded"
	StatusFailed             CompletionStatus = "failed"
	StatusPartiallySucceeded CompletionStatus = "partiallySucceeded"
	StatusInProgress         CompletionStatus = "inProgress"
	StatusNotStarted         CompletionStatus = "notStarted"
	StatusCanceled           CompletionStatus = "canceled"
	StatusUndefined          CompletionStatus = "undefined"
)

// OperationStatus carries approval state for deployments.
type OperationStatus string

const (
	OperationNone    OperationStatus = ""
	OperationPending OperationStatus = "pending"
)

// TriggerPRSourceBranch is the trigger metadata key holding a pull request's
// source branch.
const TriggerPRSourceBranch = "pr.sourceBranch"

// PipelineRecord is one build or deployment as returned by a provider.
// Zero times mean the provider did not report them.
type PipelineRecord struct {
	ID             string
	DefinitionID   string
	DefinitionName string
	Status         CompletionStatus
	Operation      OperationStatus
	SourceBranch   string
	TriggerInfo    map[string]string
	StartTime      time.Time
	CompletionTime time.Time
}

// Key is the identity used for notification deduplication.
func (r PipelineRecord) Key() string {
	return r.DefinitionName + "|" + r.ID
}

// DefinitionKey groups records of the same definition. The numeric id is
// preferred; the name is used when the provider omitted it.
func (r PipelineRecord) DefinitionKey() string {
	if r.DefinitionID != "" {
		return r.DefinitionID
	}
	return r.DefinitionName
}

// Trigger returns the trigger metadata value for key, or "".
func (r PipelineRecord) Trigger(key string) string {
	if r.TriggerInfo == nil {
		return ""
	}
	return r.TriggerInfo[key]
}

// SettledAt returns when the record reached its current state: completion
// time, then start time. ok is false when neither is set.
func (r PipelineRecord) SettledAt() (t time.Time, ok bool) {
	switch {
	case !r.CompletionTime.IsZero():
		return r.CompletionTime, true
	case !r.StartTime.IsZero():
		return r.StartTime, true
	default:
		return time.Time{}, false
	}
}

// ActiveSince returns the time used to decide whether a record belongs to the
// current day: start time, then completion time. ok is false when neither is set.
func (r PipelineRecord) ActiveSince() (t time.Time, ok bool) {
	switch {
	case !r.StartTime.IsZero():
		return r.StartTime, true
	case !r.CompletionTime.IsZero():
		return r.CompletionTime, true
	default:
		return time.Time{}, false
	}
}
