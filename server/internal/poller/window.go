package poller

import (
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
)

// Default window limits per cycle.
const (
	DefaultBuildLimit  = 120
	DefaultDeployLimit = 50
)

// StartOfDay returns midnight of now's date in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Window keeps records active at or after since, then caps the result at
// limit. Records without any timestamp are kept. A limit of zero or less
// disables the cap. Input order is preserved.
func Window(records []types.PipelineRecord, limit int, since time.Time) []types.PipelineRecord {
	out := make([]types.PipelineRecord, 0, min(len(records), max(limit, 0)))
	for _, r := range records {
		if limit > 0 && len(out) == limit {
			break
		}
		if t, ok := r.ActiveSince(); ok && t.Before(since) {
			continue
		}
		out = append(out, r)
	}
	return out
}
