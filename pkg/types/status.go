package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Event separates build (ci) statuses from deployment (cd) statuses.
type Event string

const (
	EventCI Event = "ci"
	EventCD Event = "cd"
)

// Mode names a health signal or a one-shot notification.
type Mode string

const (
	ModeBroken      Mode = "broken"
	ModeBuilding    Mode = "building"
	ModeBuilt       Mode = "built"
	ModeBuildFailed Mode = "build-failed"
	ModePassing     Mode = "passing"

	ModeDeployBroken Mode = "deploy-broken"
	ModeDeploying    Mode = "deploying"
	ModePending      Mode = "pending"
	ModeDeployFailed Mode = "deploy-failed"
	ModeDeployed     Mode = "deployed"
)

// PipelineStatus is an immutable {event, mode, data} value. Data is copied on
// the way in and on the way out. JSON decoding only fills a zero value; it
// never overwrites a populated status.
type PipelineStatus struct {
	event Event
	mode  Mode
	data  map[string]any
}

// NewStatus builds a PipelineStatus. data may be nil.
func NewStatus(event Event, mode Mode, data map[string]any) PipelineStatus {
	return PipelineStatus{event: event, mode: mode, data: maps.Clone(data)}
}

// BranchStatus is the {branch} shaped status used by most one-shots.
func BranchStatus(event Event, mode Mode, branch string) PipelineStatus {
	return NewStatus(event, mode, map[string]any{"branch": branch})
}

// CountStatus is the {total, time} shaped status used by broken and building.
// elapsedMs is milliseconds.
func CountStatus(event Event, mode Mode, total int, elapsedMs int64) PipelineStatus {
	return NewStatus(event, mode, map[string]any{"total": total, "time": elapsedMs})
}

func (s PipelineStatus) Event() Event { return s.event }
func (s PipelineStatus) Mode() Mode   { return s.mode }

// Data returns a copy of the payload.
func (s PipelineStatus) Data() map[string]any { return maps.Clone(s.data) }

// Branch returns data.branch, or "" if the status has no branch.
func (s PipelineStatus) Branch() string {
	b, _ := s.data["branch"].(string)
	return b
}

func (s PipelineStatus) String() string {
	return fmt.Sprintf("%s/%s", s.event, s.mode)
}

type statusJSON struct {
	Event Event          `json:"event"`
	Mode  Mode           `json:"mode"`
	Data  map[string]any `json:"data"`
}

func (s PipelineStatus) MarshalJSON() ([]byte, error) {
	data := s.data
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(statusJSON{Event: s.event, Mode: s.mode, Data: data})
}

// ErrPopulated is returned when decoding into a PipelineStatus that already
// holds a value.
var ErrPopulated = errors.New("types: status already populated")

func (s *PipelineStatus) UnmarshalJSON(b []byte) error {
	if s.event != "" || s.mode != "" || s.data != nil {
		return ErrPopulated
	}
	var raw statusJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NewStatus(raw.Event, raw.Mode, raw.Data)
	return nil
}
