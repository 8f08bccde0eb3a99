package notifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pipewatch/pipewatch/pkg/types"
)

func httpBody(payload []types.PipelineStatus) ([]byte, error) {
	return json.Marshal(payload)
}

func slackBody(project string, payload []types.PipelineStatus, now time.Time) ([]byte, error) {
	lines := make([]string, 0, len(payload))
	for _, s := range payload {
		lines = append(lines, fmt.Sprintf("*%s* %s", label(s.Mode()), Describe(project, s, now)))
	}
	return json.Marshal(map[string]string{"text": strings.Join(lines, "\n")})
}

func teamsBody(project string, payload []types.PipelineStatus, now time.Time) ([]byte, error) {
	sections := make([]map[string]string, 0, len(payload))
	color := "00D4FF"
	for _, s := range payload {
		sections = append(sections, map[string]string{
			"activityTitle": label(s.Mode()),
			"text":          Describe(project, s, now),
		})
		if c := modeColor(s.Mode()); c != "00D4FF" {
			color = c
		}
	}
	title := "pipewatch"
	if project != "" {
		title = "pipewatch: " + project
	}
	return json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    title,
		"title":      title,
		"sections":   sections,
	})
}

// Describe renders s as a single human readable sentence.
func Describe(project string, s types.PipelineStatus, now time.Time) string {
	prefix := ""
	if project != "" {
		prefix = project + ": "
	}
	data := s.Data()
	since := func() string {
		return humanize.RelTime(now.Add(-time.Duration(number(data["time"]))*time.Millisecond), now, "ago", "from now")
	}

	switch s.Mode() {
	case types.ModeBroken:
		return fmt.Sprintf("%s%d definition(s) broken, first failure %s", prefix, number(data["total"]), since())
	case types.ModeBuilding:
		return fmt.Sprintf("%s%d build(s) running, started %s", prefix, number(data["total"]), since())
	case types.ModeBuilt:
		return fmt.Sprintf("%sbuild of %s succeeded", prefix, s.Branch())
	case types.ModeBuildFailed:
		return fmt.Sprintf("%sbuild of %s failed", prefix, s.Branch())
	case types.ModePassing:
		return fmt.Sprintf("%sall pipelines passing (pull %v, merge %v, deploy %v)",
			prefix, data["pull"], data["merge"], data["deploy"])
	case types.ModeDeployBroken:
		return fmt.Sprintf("%srelease %s is broken", prefix, s.Branch())
	case types.ModeDeploying:
		return fmt.Sprintf("%srelease %s is deploying", prefix, s.Branch())
	case types.ModePending:
		return fmt.Sprintf("%srelease %s is waiting for approval", prefix, s.Branch())
	case types.ModeDeployFailed:
		return fmt.Sprintf("%srelease %s failed to deploy", prefix, s.Branch())
	case types.ModeDeployed:
		return fmt.Sprintf("%srelease %s deployed", prefix, s.Branch())
	default:
		return prefix + s.String()
	}
}

// number reads an integer from a status data value, whether it was built in
// process or decoded from JSON.
func number(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func label(m types.Mode) string {
	return "[" + strings.ToUpper(string(m)) + "]"
}

func modeColor(m types.Mode) string {
	switch m {
	case types.ModeBroken, types.ModeBuildFailed, types.ModeDeployBroken, types.ModeDeployFailed:
		return "FF4F6A"
	case types.ModePending, types.ModeBuilding, types.ModeDeploying:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
