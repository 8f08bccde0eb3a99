package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/cd"
	"github.com/pipewatch/pipewatch/server/internal/ci"
	"github.com/pipewatch/pipewatch/server/internal/ledger"
)

const defaultInterval = 30 * time.Second

// Provider fetches the most recent builds and deployments of a project,
// newest first.
type Provider interface {
	FetchBuilds(ctx context.Context, project string) ([]types.PipelineRecord, error)
	FetchDeployments(ctx context.Context, project string) ([]types.PipelineRecord, error)
}

// Notifier delivers a cycle's statuses to subscribers. Delivery failures are
// handled by the notifier and never reach the poller.
type Notifier interface {
	Notify(ctx context.Context, payload []types.PipelineStatus)
}

// Publisher receives every completed cycle, successful or not.
type Publisher interface {
	Publish(c Cycle)
}

// Cycle is the outcome of one poll.
type Cycle struct {
	Project      string
	At           time.Time
	Builds       int
	Deploys      int
	Status       *types.PipelineStatus
	Notification *types.PipelineStatus
	// LedgerEntries is the number of remembered notifications per engine.
	LedgerEntries map[string]int
	Err           error
}

// Statuses returns the cycle result in delivery order: status, then
// notification. Missing entries are skipped.
func (c Cycle) Statuses() []types.PipelineStatus {
	out := make([]types.PipelineStatus, 0, 2)
	if c.Status != nil {
		out = append(out, *c.Status)
	}
	if c.Notification != nil {
		out = append(out, *c.Notification)
	}
	return out
}

// Options configures a Poller. Zero values select the defaults.
type Options struct {
	Project         string
	Interval        time.Duration
	BuildLimit      int
	DeployLimit     int
	Location        *time.Location
	LedgerRetention time.Duration
	Logger          *slog.Logger
	// Now overrides the clock shared by the poller and its engines.
	Now func() time.Time
}

// Poller owns the engines and ledgers of a single project.
type Poller struct {
	project     string
	provider    Provider
	notifier    Notifier
	publishers  []Publisher
	buildLimit  int
	deployLimit int
	loc         *time.Location
	interval    atomic.Int64
	now         func() time.Time
	log         *slog.Logger

	ci           *ci.Engine
	cd           *cd.Engine
	statuses     []Check
	notification []Check
}

// New creates a Poller. notifier may be nil.
func New(opts Options, provider Provider, notifier Notifier, publishers ...Publisher) *Poller {
	p := &Poller{
		project:     opts.Project,
		provider:    provider,
		notifier:    notifier,
		publishers:  publishers,
		buildLimit:  opts.BuildLimit,
		deployLimit: opts.DeployLimit,
		loc:         opts.Location,
		now:         opts.Now,
		log:         opts.Logger,
	}
	if p.buildLimit <= 0 {
		p.buildLimit = DefaultBuildLimit
	}
	if p.deployLimit <= 0 {
		p.deployLimit = DefaultDeployLimit
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	p.log = p.log.With("project", opts.Project)
	p.SetInterval(opts.Interval)

	retention := opts.LedgerRetention
	if retention <= 0 {
		retention = ledger.DefaultRetention
	}
	p.ci = ci.New(ledger.New(retention, ci.NotifyWindow).WithClock(p.now)).WithClock(p.now)
	p.cd = cd.New(ledger.New(retention, cd.NotifyWindow).WithClock(p.now)).WithClock(p.now)
	p.statuses = statusChain(p.ci, p.cd)
	p.notification = notificationChain(p.ci, p.cd)
	return p
}

// Project returns the project this poller watches.
func (p *Poller) Project() string { return p.project }

// Interval returns the delay between the end of one cycle and the next.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// SetInterval changes the delay used after the current cycle. Non-positive
// values reset it to the default.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		d = defaultInterval
	}
	p.interval.Store(int64(d))
}

// Poll runs one cycle and returns its result: up to one status followed by up
// to one notification. Errors produce an empty result.
func (p *Poller) Poll(ctx context.Context) []types.PipelineStatus {
	return p.Cycle(ctx).Statuses()
}

// Cycle runs one poll cycle and returns the full outcome without publishing it.
func (p *Poller) Cycle(ctx context.Context) (c Cycle) {
	now := p.now()
	c = Cycle{Project: p.project, At: now}

	defer func() {
		if r := recover(); r != nil {
			c.Status, c.Notification = nil, nil
			c.Err = fmt.Errorf("poller: cycle panicked: %v", r)
			p.log.Error("poller: cycle panicked", "err", c.Err)
		}
	}()

	builds, err := p.provider.FetchBuilds(ctx, p.project)
	if err != nil {
		c.Err = fmt.Errorf("poller: fetch builds: %w", err)
		p.log.Warn("poller: fetch failed", "kind", "builds", "err", err)
		return c
	}
	deploys, err := p.provider.FetchDeployments(ctx, p.project)
	if err != nil {
		c.Err = fmt.Errorf("poller: fetch deployments: %w", err)
		p.log.Warn("poller: fetch failed", "kind", "deployments", "err", err)
		return c
	}

	since := StartOfDay(now, p.loc)
	builds = Window(builds, p.buildLimit, since)
	deploys = Window(deploys, p.deployLimit, since)
	c.Builds, c.Deploys = len(builds), len(deploys)

	p.ci.SetBuilds(builds)
	p.cd.SetDeploys(deploys)
	if n := p.ci.Ledger().Evict(now) + p.cd.Ledger().Evict(now); n > 0 {
		p.log.Debug("poller: evicted ledger entries", "count", n)
	}

	var statusName, notifyName string
	c.Status, statusName = resolve(p.statuses)
	c.Notification, notifyName = resolve(p.notification)
	c.LedgerEntries = map[string]int{
		"ci": p.ci.Ledger().Len(),
		"cd": p.cd.Ledger().Len(),
	}

	p.log.Debug("poller: cycle complete",
		"builds", c.Builds,
		"deploys", c.Deploys,
		"status", statusName,
		"notification", notifyName,
	)
	return c
}

// Run polls until ctx is cancelled. The first cycle starts immediately and
// each following cycle starts one interval after the previous one finished
// publishing.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller: started", "interval", p.Interval())
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller: stopped")
			return
		case <-timer.C:
			p.publish(ctx, p.Cycle(ctx))
			timer.Reset(p.Interval())
		}
	}
}

func (p *Poller) publish(ctx context.Context, c Cycle) {
	for _, pub := range p.publishers {
		pub.Publish(c)
	}
	if p.notifier == nil {
		return
	}
	if payload := c.Statuses(); len(payload) > 0 {
		p.notifier.Notify(ctx, payload)
	}
}
