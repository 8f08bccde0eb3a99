package types_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
)

func TestPipelineStatus_DataIsCopied(t *testing.T) {
	in := map[string]any{"branch": "MAIN"}
	s := types.NewStatus(types.EventCI, types.ModeBuilt, in)

	in["branch"] = "CHANGED"
	if s.Branch() != "MAIN" {
		t.Errorf("input mutation leaked: got %q", s.Branch())
	}

	out := s.Data()
	out["branch"] = "CHANGED"
	if s.Branch() != "MAIN" {
		t.Errorf("output mutation leaked: got %q", s.Branch())
	}
}

func TestPipelineStatus_JSON(t *testing.T) {
	cases := []struct {
		name string
		s    types.PipelineStatus
		want string
	}{
		{
			"branch",
			types.BranchStatus(types.EventCD, types.ModeDeployed, "PROD"),
			`{"event":"cd","mode":"deployed","data":{"branch":"PROD"}}`,
		},
		{
			"count",
			types.CountStatus(types.EventCI, types.ModeBroken, 2, 90000),
			`{"event":"ci","mode":"broken","data":{"time":90000,"total":2}}`,
		},
		{
			"nil data is an empty object",
			types.NewStatus(types.EventCD, types.ModePending, nil),
			`{"event":"cd","mode":"pending","data":{}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.s)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tc.want {
				t.Errorf("got %s, want %s", b, tc.want)
			}
		})
	}
}

func TestPipelineStatus_Unmarshal(t *testing.T) {
	var s types.PipelineStatus
	if err := json.Unmarshal([]byte(`{"event":"ci","mode":"build-failed","data":{"branch":"FEATURE/X"}}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Event() != types.EventCI || s.Mode() != types.ModeBuildFailed || s.Branch() != "FEATURE/X" {
		t.Errorf("got %v %q", s, s.Branch())
	}
	if s.String() != "ci/build-failed" {
		t.Errorf("String: got %q", s.String())
	}
}

func TestPipelineStatus_UnmarshalDoesNotOverwrite(t *testing.T) {
	s := types.BranchStatus(types.EventCD, types.ModeDeployed, "PROD")
	held := s

	err := json.Unmarshal([]byte(`{"event":"ci","mode":"built","data":{"branch":"MAIN"}}`), &s)

	if !errors.Is(err, types.ErrPopulated) {
		t.Fatalf("got err %v, want ErrPopulated", err)
	}
	if s.Mode() != types.ModeDeployed || s.Branch() != "PROD" || held.Branch() != "PROD" {
		t.Errorf("status changed: %v %q", s, s.Branch())
	}
}

func TestPipelineRecord_Keys(t *testing.T) {
	r := types.PipelineRecord{ID: "42", DefinitionID: "7", DefinitionName: "web-ci"}
	if r.Key() != "web-ci|42" {
		t.Errorf("Key: got %q", r.Key())
	}
	if r.DefinitionKey() != "7" {
		t.Errorf("DefinitionKey: got %q", r.DefinitionKey())
	}

	r.DefinitionID = ""
	if r.DefinitionKey() != "web-ci" {
		t.Errorf("DefinitionKey without id: got %q", r.DefinitionKey())
	}
	if r.Trigger(types.TriggerPRSourceBranch) != "" {
		t.Error("Trigger on nil map should be empty")
	}
}

func TestPipelineRecord_ActiveSince(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	if got, ok := (types.PipelineRecord{StartTime: start, CompletionTime: end}).ActiveSince(); !ok || !got.Equal(start) {
		t.Errorf("start preferred: got %v, %v", got, ok)
	}
	if got, ok := (types.PipelineRecord{CompletionTime: end}).ActiveSince(); !ok || !got.Equal(end) {
		t.Errorf("completion fallback: got %v, %v", got, ok)
	}
	if _, ok := (types.PipelineRecord{}).ActiveSince(); ok {
		t.Error("no times should report ok=false")
	}
}

func TestPipelineRecord_SettledAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	if got, ok := (types.PipelineRecord{StartTime: start, CompletionTime: end}).SettledAt(); !ok || !got.Equal(end) {
		t.Errorf("completion preferred: got %v, %v", got, ok)
	}
	if got, ok := (types.PipelineRecord{StartTime: start}).SettledAt(); !ok || !got.Equal(start) {
		t.Errorf("start fallback: got %v, %v", got, ok)
	}
	if _, ok := (types.PipelineRecord{}).SettledAt(); ok {
		t.Error("no times should report ok=false")
	}
}
