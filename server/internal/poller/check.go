package poller

import (
	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/cd"
	"github.com/pipewatch/pipewatch/server/internal/ci"
)

// Check is one named entry of a priority chain.
type Check struct {
	Name string
	Run  func() *types.PipelineStatus
}

// resolve returns the first non-nil status in chain and the name of the check
// that produced it.
func resolve(chain []Check) (*types.PipelineStatus, string) {
	for _, c := range chain {
		if s := c.Run(); s != nil {
			return s, c.Name
		}
	}
	return nil, ""
}

func statusChain(b *ci.Engine, d *cd.Engine) []Check {
	return []Check{
		{Name: "deploying", Run: d.DeployingCheck},
		{Name: "building", Run: b.BuildingCheck},
		{Name: "deploy-broken", Run: d.DeployBrokenCheck},
		{Name: "broken", Run: b.BrokenCheck},
		{Name: "pending", Run: d.PendingCheck},
		{Name: "passing", Run: func() *types.PipelineStatus { return passing(b, d) }},
	}
}

func notificationChain(b *ci.Engine, d *cd.Engine) []Check {
	return []Check{
		{Name: "deploy-failed", Run: d.DeployFailureCheck},
		{Name: "build-failed", Run: b.FailedCheck},
		{Name: "pending-started", Run: d.PendingStartCheck},
		{Name: "deployed", Run: d.DeploySuccessCheck},
		{Name: "built", Run: b.BuiltCheck},
	}
}

// passing summarises the window as [fail, pass, total] per group.
func passing(b *ci.Engine, d *cd.Engine) *types.PipelineStatus {
	builds := b.Summary()
	deploys := d.Summary()
	s := types.NewStatus(types.EventCI, types.ModePassing, map[string]any{
		"pull":   builds.Pull.Counts().Triple(),
		"merge":  builds.Merge.Counts().Triple(),
		"deploy": deploys.Deploy.Counts().Triple(),
	})
	return &s
}
