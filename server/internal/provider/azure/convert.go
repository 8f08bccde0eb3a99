package azure

import (
	"strconv"
	"strings"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
)

type reference struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// build is the raw Azure DevOps shape of a build.
type build struct {
	ID           int               `json:"id"`
	Definition   *reference        `json:"definition"`
	Status       string            `json:"status"`
	Result       string            `json:"result"`
	SourceBranch string            `json:"sourceBranch"`
	TriggerInfo  map[string]string `json:"triggerInfo"`
	StartTime    string            `json:"startTime"`
	FinishTime   string            `json:"finishTime"`
}

func (b build) toRecord() types.PipelineRecord {
	id, name := b.Definition.split()
	return types.PipelineRecord{
		ID:             strconv.Itoa(b.ID),
		DefinitionID:   id,
		DefinitionName: name,
		Status:         buildStatus(b.Status, b.Result),
		SourceBranch:   b.SourceBranch,
		TriggerInfo:    b.TriggerInfo,
		StartTime:      parseTime(b.StartTime),
		CompletionTime: parseTime(b.FinishTime),
	}
}

// deployment is the raw Azure DevOps shape of a release deployment.
type deployment struct {
	ID                int        `json:"id"`
	ReleaseDefinition *reference `json:"releaseDefinition"`
	DeploymentStatus  string     `json:"deploymentStatus"`
	OperationStatus   string     `json:"operationStatus"`
	StartedOn         string     `json:"startedOn"`
	CompletedOn       string     `json:"completedOn"`
}

func (d deployment) toRecord() types.PipelineRecord {
	id, name := d.ReleaseDefinition.split()
	r := types.PipelineRecord{
		ID:             strconv.Itoa(d.ID),
		DefinitionID:   id,
		DefinitionName: name,
		Status:         deploymentStatus(d.DeploymentStatus),
		StartTime:      parseTime(d.StartedOn),
		CompletionTime: parseTime(d.CompletedOn),
	}
	if strings.EqualFold(d.OperationStatus, "pending") {
		r.Operation = types.OperationPending
	}
	return r
}

func (r *reference) split() (id, name string) {
	if r == nil {
		return "", ""
	}
	if r.ID != 0 {
		id = strconv.Itoa(r.ID)
	}
	return id, r.Name
}

func buildStatus(status, result string) types.CompletionStatus {
	switch status {
	case "inProgress", "cancelling":
		return types.StatusInProgress
	case "notStarted", "postponed":
		return types.StatusNotStarted
	case "completed":
		switch result {
		case "succeeded":
			return types.StatusSucceeded
		case "partiallySucceeded":
			return types.StatusPartiallySucceeded
		case "failed":
			return types.StatusFailed
		case "canceled":
			return types.StatusCanceled
		}
	}
	return types.StatusUndefined
}

func deploymentStatus(s string) types.CompletionStatus {
	switch s {
	case "succeeded":
		return types.StatusSucceeded
	case "partiallySucceeded":
		return types.StatusPartiallySucceeded
	case "failed":
		return types.StatusFailed
	case "inProgress":
		return types.StatusInProgress
	case "notDeployed":
		return types.StatusNotStarted
	default:
		return types.StatusUndefined
	}
}

// parseTime accepts RFC 3339 timestamps with or without fractional seconds.
// Anything else, including Azure's zero date, is treated as absent.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}
